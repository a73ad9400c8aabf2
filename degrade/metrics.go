package degrade

// Metrics 指标常量定义
const (
	// MetricProfileChanges 档位切换次数 (Counter)
	MetricProfileChanges = "degrade_profile_changes_total"

	// MetricCurrentProfile 当前档位序号，0 为最高档 (Gauge)
	MetricCurrentProfile = "degrade_current_profile_rank"

	// LabelFromProfile 源档位标签
	LabelFromProfile = "from_profile"

	// LabelToProfile 目标档位标签
	LabelToProfile = "to_profile"

	// LabelTrigger 切换来源标签 (telemetry/manual)
	LabelTrigger = "trigger"
)
