package cache

// Config 缓存组件配置
type Config struct {
	// Mode 缓存模式："standalone"（本地内存）或 "distributed"（Redis，默认）
	Mode string `mapstructure:"mode"`

	// Prefix 键前缀，仅分布式模式生效，如 "aegis:"
	Prefix string `mapstructure:"prefix"`

	// Serializer 序列化器类型："json"（默认）或 "msgpack"，仅分布式模式生效
	Serializer string `mapstructure:"serializer"`

	// Standalone 单机模式配置
	Standalone *StandaloneConfig `mapstructure:"standalone"`
}

// StandaloneConfig 单机内存缓存配置
type StandaloneConfig struct {
	// Capacity 最大条目数 (默认: 10000)
	Capacity int `mapstructure:"capacity"`
}

// setDefaults 设置默认值
func (c *StandaloneConfig) setDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 10000
	}
}
