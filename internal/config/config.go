package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const EnvProduction = "production"

// Config 应用配置
type Config struct {
	Env   string `env:"APP_ENV" envDefault:"development"`
	Debug bool   `env:"DEBUG" envDefault:"false"`

	Server    ServerConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Chat      ChatConfig
	Dashboard DashboardConfig
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Production 生产环境下不向客户端返回诊断信息
func (c *Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

// Validate 校验 env 标签无法表达的取值范围
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_REQUESTS must be positive"))
	}
	if c.RateLimit.MaxEntries < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_ENTRIES must not be negative"))
	}
	if c.AI.MaxTokens <= 0 || c.AI.EmergencyMaxTokens <= 0 {
		errs = append(errs, errors.New("AI_MAX_TOKENS and AI_EMERGENCY_MAX_TOKENS must be positive"))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("AI_TEMPERATURE %.2f out of range [0,2]", c.AI.Temperature))
	}
	if c.AI.ContextTurns < 0 {
		errs = append(errs, errors.New("CONTEXT_TURNS must not be negative"))
	}
	if c.AI.MaxRetries < 0 {
		errs = append(errs, errors.New("AI_MAX_RETRIES must not be negative"))
	}
	switch c.AI.Provider {
	case ProviderArk, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", c.AI.Provider))
	}
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverBadger, DriverNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver))
	}
	if c.Store.Driver == DriverPostgres && c.Store.DSN == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
	}
	if c.Chat.MaxQuestionLength <= 0 {
		errs = append(errs, errors.New("MAX_QUESTION_LENGTH must be positive"))
	}
	if c.Dashboard.StreamInterval <= 0 {
		errs = append(errs, errors.New("DASHBOARD_STREAM_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// normalizeAddr 将 PORT 转换为监听地址
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// ":8080" 和 "127.0.0.1:8080" 原样使用
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}
