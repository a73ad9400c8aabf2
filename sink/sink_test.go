package sink

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

func TestLogSinkReport(t *testing.T) {
	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "warn", Format: "json"}, clog.WithWriter(&buf))
	require.NoError(t, err)

	s := NewLogSink(logger)
	s.Report(context.Background(), xerrors.New("boom"), Context{
		OperationClass: "api-call",
		Component:      "breaker",
		Endpoint:       "/v1/users",
		Attempt:        2,
		AdditionalData: map[string]any{"state": "OPEN"},
	})

	out := buf.String()
	assert.Contains(t, out, "failure reported")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "/v1/users")
	assert.Contains(t, out, "api-call")
}

func TestLogSinkNilLogger(t *testing.T) {
	s := NewLogSink(nil)
	// 不应 panic
	s.Report(context.Background(), xerrors.New("boom"), Context{Component: "recovery"})
}

func TestDiscard(t *testing.T) {
	s := Discard()
	s.Report(context.Background(), nil, Context{})
}
