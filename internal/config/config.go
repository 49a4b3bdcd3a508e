// Package config loads service configuration from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates all service configuration.
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Realtime RealtimeConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// AIConfig describes the external text-generation dependency (Ark).
type AIConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"ARK_MODEL"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64 `env:"ARK_TEMPERATURE"`
	TopP        *float64 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`

	// RequestTimeout bounds each structured completion call. Streaming
	// chat replies are bounded by the caller's context instead.
	RequestTimeout time.Duration `env:"ARK_REQUEST_TIMEOUT" envDefault:"30s"`
}

// RealtimeConfig tunes the websocket coordinator.
type RealtimeConfig struct {
	// PingInterval is the liveness sweep period. A connection that does
	// not answer a ping within one full period is evicted.
	PingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
}

// Load parses all configuration sections from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	if err := env.Parse(&cfg.AI); err != nil {
		return nil, fmt.Errorf("parse ai config: %w", err)
	}
	if err := env.Parse(&cfg.Realtime); err != nil {
		return nil, fmt.Errorf("parse realtime config: %w", err)
	}
	if cfg.Realtime.PingInterval <= 0 {
		return nil, fmt.Errorf("WS_PING_INTERVAL must be positive, got %s", cfg.Realtime.PingInterval)
	}
	return &cfg, nil
}

// Enabled reports whether the required Ark credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark chat model from this configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}
