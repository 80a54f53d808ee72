package config

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig AI 服务配置，包括模型提供方和生成参数
type AIConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"openai"`

	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"ARK_MODEL"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	MaxTokens          int           `env:"AI_MAX_TOKENS" envDefault:"500"`
	EmergencyMaxTokens int           `env:"AI_EMERGENCY_MAX_TOKENS" envDefault:"250"`
	Temperature        float32       `env:"AI_TEMPERATURE" envDefault:"0.7"`
	Timeout            time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	MaxRetries         int           `env:"AI_MAX_RETRIES" envDefault:"0"`
	RetryBackoff       time.Duration `env:"AI_RETRY_BACKOFF" envDefault:"500ms"`
	ContextTurns       int           `env:"CONTEXT_TURNS" envDefault:"3"`
	EnforceDisclaimer  bool          `env:"AI_ENFORCE_DISCLAIMER" envDefault:"true"`
}

// Enabled 判断所选提供方的凭证是否齐全
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	case ProviderOpenAI:
		return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
	default:
		return false
	}
}

// NewChatModel 创建 Ark 聊天模型
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Model == "" || (c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "")) {
		return nil, fmt.Errorf("ark credentials missing: provide ARK_MODEL with ARK_API_KEY or an AK/SK pair")
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}
