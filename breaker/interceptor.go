package breaker

import (
	"context"

	"google.golang.org/grpc"

	"github.com/ceyewan/aegis/clog"
)

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器，
// 为每个调用提供熔断保护。
//
// 使用示例:
//
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(brk.UnaryClientInterceptor(
//			breaker.WithKeyFunc(breaker.MethodLevelKey()),
//		)),
//	)
func (cb *circuitBreaker) UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	ic := newInterceptorConfig(opts...)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		endpointID := ic.keyFunc(ctx, method, cc)

		cb.logger.Debug("unary call with circuit breaker",
			clog.String("endpoint", endpointID),
			clog.String("method", method))

		_, err := cb.Execute(ctx, endpointID, func() (any, error) {
			return nil, invoker(ctx, method, req, reply, cc, callOpts...)
		})
		return err
	}
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器。
// 熔断只保护流的建立，流上的后续收发不计入熔断统计。
func (cb *circuitBreaker) StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor {
	ic := newInterceptorConfig(opts...)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		endpointID := ic.keyFunc(ctx, method, cc)

		cb.logger.Debug("stream call with circuit breaker",
			clog.String("endpoint", endpointID),
			clog.String("method", method))

		result, err := cb.Execute(ctx, endpointID, func() (any, error) {
			return streamer(ctx, desc, cc, method, callOpts...)
		})
		if err != nil {
			return nil, err
		}
		return result.(grpc.ClientStream), nil
	}
}
