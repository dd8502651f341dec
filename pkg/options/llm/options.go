// Package llm provides the embedding and chat provider options.
//
// The service talks to two models that may live behind different
// providers, so each role owns a ProviderOptions with its own flag section.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/tenant-kb/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// Role 模型在服务中的用途。
type Role string

const (
	RoleEmbedding Role = "embedding"
	RoleChat      Role = "chat"
)

// ProviderOptions 单个角色的供应商配置。
type ProviderOptions struct {
	// Role 不参与配置解析，决定 flag 前缀和供应商配置键。
	Role Role `json:"-" mapstructure:"-"`

	Provider string        `json:"provider" mapstructure:"provider"`
	BaseURL  string        `json:"base-url" mapstructure:"base-url"`
	APIKey   string        `json:"api-key" mapstructure:"api-key"`
	Model    string        `json:"model" mapstructure:"model"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
	// MaxRetries 由供应商 HTTP 客户端使用，resilience 层的重试另算。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

func newProviderOptions(role Role, model string, timeout time.Duration) *ProviderOptions {
	return &ProviderOptions{
		Role:       role,
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      model,
		Timeout:    timeout,
		MaxRetries: 2,
	}
}

// NewEmbeddingOptions 默认 embedding 配置。向量化请求短小，超时较短。
func NewEmbeddingOptions() *ProviderOptions {
	return newProviderOptions(RoleEmbedding, "nomic-embed-text", 30*time.Second)
}

// NewChatOptions 默认 chat 配置。
func NewChatOptions() *ProviderOptions {
	return newProviderOptions(RoleChat, "llama3.1:8b", 120*time.Second)
}

// ToConfigMap 生成供应商工厂的配置，只填写本角色使用的模型键。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
	switch o.Role {
	case RoleEmbedding:
		m["embed_model"] = o.Model
	case RoleChat:
		m["chat_model"] = o.Model
	default:
		m["embed_model"] = o.Model
		m["chat_model"] = o.Model
	}
	return m
}

func (o *ProviderOptions) section() string {
	if o.Role == "" {
		return "llm"
	}
	return string(o.Role)
}

// AddFlags adds the role's flags, e.g. --embedding.model or --chat.model.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, o.section())...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "HTTP retries inside the provider client.")
}

// Validate validates the options. Messages carry the role section.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	s := o.section()
	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", s))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%s.base-url is required", s))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", s))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for openai provider", s))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", s))
	}
	return errs
}

// Complete clamps negative retries.
func (o *ProviderOptions) Complete() error {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}
