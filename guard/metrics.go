package guard

// Metrics 指标常量定义
const (
	// MetricRequestsTotal 门面请求总数 (Counter)
	MetricRequestsTotal = "guard_requests_total"

	// MetricRejectionsTotal 准入拒绝次数 (Counter)
	MetricRejectionsTotal = "guard_rejections_total"

	// MetricInflight 在途请求数 (Gauge)
	MetricInflight = "guard_inflight_requests"

	// MetricConcurrencyLimit 当前并发上限 (Gauge)
	MetricConcurrencyLimit = "guard_concurrency_limit"

	// LabelClass 操作类别标签
	LabelClass = "class"

	// LabelCategory 能力类别标签
	LabelCategory = "category"

	// LabelResult 结果标签 (success/failure)
	LabelResult = "result"

	// LabelReason 拒绝原因标签 (feature_disabled/closed)
	LabelReason = "reason"
)
