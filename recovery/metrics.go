package recovery

// Metrics 指标常量定义
const (
	// MetricAttemptsTotal 操作尝试次数 (Counter)
	MetricAttemptsTotal = "recovery_attempts_total"

	// MetricExhaustedTotal 重试耗尽次数 (Counter)
	MetricExhaustedTotal = "recovery_exhausted_total"

	// MetricResolutionsTotal 最终处置次数 (Counter)
	MetricResolutionsTotal = "recovery_resolutions_total"

	// MetricBackoffSeconds 退避等待时长 (Histogram)
	MetricBackoffSeconds = "recovery_backoff_seconds"

	// LabelClass 操作类别标签
	LabelClass = "class"

	// LabelKind 策略类型标签
	LabelKind = "kind"

	// LabelResult 结果标签 (success/failure/aborted)
	LabelResult = "result"

	// LabelOutcome 最终处置结果标签 (resolved/reraised)
	LabelOutcome = "outcome"
)
