package config

import "time"

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	// Addr 由 Load 根据 Port 生成
	Addr string

	// TrustProxyHeaders 启用 chi 的 RealIP 中间件，
	// 仅在会覆盖 X-Forwarded-For 的代理之后开启
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	ReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"5s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// RateLimitConfig 按客户端的固定窗口限流配置
type RateLimitConfig struct {
	Window      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	MaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"10"`
	// SweepInterval 为零时取 Window
	SweepInterval time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL"`
	// MaxEntries 限制跟踪的客户端数量，零表示不限
	MaxEntries int `env:"RATE_LIMIT_MAX_ENTRIES" envDefault:"0"`
}

// ChatConfig 请求级别的限制
type ChatConfig struct {
	MaxQuestionLength int    `env:"MAX_QUESTION_LENGTH" envDefault:"4000"`
	MaxHistoryItems   int    `env:"MAX_HISTORY_ITEMS" envDefault:"50"`
	DefaultRegion     string `env:"DEFAULT_REGION" envDefault:"IN"`
}

// DashboardConfig 管理后台统计配置
type DashboardConfig struct {
	StreamInterval time.Duration `env:"DASHBOARD_STREAM_INTERVAL" envDefault:"15s"`
	RecentLimit    int           `env:"DASHBOARD_RECENT_LIMIT" envDefault:"10"`
	Days           int           `env:"DASHBOARD_DAYS" envDefault:"7"`
}
