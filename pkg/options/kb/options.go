// Package kb provides retrieval and answer options for the knowledge base.
package kb

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/tenant-kb/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains retrieval and answer composition settings.
type Options struct {
	// TopK 检索文档数量。
	TopK int `json:"top-k" mapstructure:"top-k"`
	// StructuredTopK 每种结构化类型的检索上限。
	StructuredTopK int `json:"structured-top-k" mapstructure:"structured-top-k"`
	// UseStructuredData 是否将结构化实体加入上下文。
	UseStructuredData bool `json:"use-structured-data" mapstructure:"use-structured-data"`
	// RouterAlpha 路由检索的向量权重。
	RouterAlpha float64 `json:"router-alpha" mapstructure:"router-alpha"`
	// EntityAlpha 实体检索的向量权重。
	EntityAlpha float64 `json:"entity-alpha" mapstructure:"entity-alpha"`
	// Temperature 回答生成温度。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	// MaxTokens 默认回答 token 预算，租户可覆盖。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`
	// DefaultLanguage 租户未配置时的回答语言。
	DefaultLanguage string `json:"default-language" mapstructure:"default-language"`
	// DefaultTone 租户未配置时的回答语气。
	DefaultTone string `json:"default-tone" mapstructure:"default-tone"`
	// ValidateOnStartup 启动时后台校验所有租户集合。
	ValidateOnStartup bool `json:"validate-on-startup" mapstructure:"validate-on-startup"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		TopK:              5,
		StructuredTopK:    3,
		UseStructuredData: true,
		RouterAlpha:       0.75,
		EntityAlpha:       0.5,
		Temperature:       0.2,
		MaxTokens:         1024,
		DefaultLanguage:   "de",
		DefaultTone:       "freundlich",
		ValidateOnStartup: true,
	}
}

// AddFlags adds flags for knowledge base options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "kb."
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of documents retrieved for an answer.")
	fs.IntVar(&o.StructuredTopK, p+"structured-top-k", o.StructuredTopK, "Per-type cap for structured entities in the context.")
	fs.BoolVar(&o.UseStructuredData, p+"use-structured-data", o.UseStructuredData, "Include structured entities in the context.")
	fs.Float64Var(&o.RouterAlpha, p+"router-alpha", o.RouterAlpha, "Vector weight of the cross-collection hybrid search.")
	fs.Float64Var(&o.EntityAlpha, p+"entity-alpha", o.EntityAlpha, "Vector weight of the typed entity search.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature for answers.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Default token budget for answers.")
	fs.StringVar(&o.DefaultLanguage, p+"default-language", o.DefaultLanguage, "Answer language when the tenant has none.")
	fs.StringVar(&o.DefaultTone, p+"default-tone", o.DefaultTone, "Answer tone when the tenant has none.")
	fs.BoolVar(&o.ValidateOnStartup, p+"validate-on-startup", o.ValidateOnStartup, "Validate all tenant collections in the background on startup.")
}

// Validate validates the knowledge base options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("kb.top-k must be positive"))
	}
	if o.StructuredTopK < 0 {
		errs = append(errs, fmt.Errorf("kb.structured-top-k must not be negative"))
	}
	for name, alpha := range map[string]float64{"router-alpha": o.RouterAlpha, "entity-alpha": o.EntityAlpha} {
		if alpha < 0 || alpha > 1 {
			errs = append(errs, fmt.Errorf("kb.%s must be within [0,1], got %v", name, alpha))
		}
	}
	if o.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("kb.max-tokens must be positive"))
	}
	return errs
}

// Complete completes the options with defaults.
func (o *Options) Complete() error {
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = "de"
	}
	if o.DefaultTone == "" {
		o.DefaultTone = "freundlich"
	}
	return nil
}
