// Package cache provides answer and embedding cache options.
package cache

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/tenant-kb/pkg/options"
	redisopts "github.com/kart-io/tenant-kb/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options 缓存配置。
type Options struct {
	// Enabled 是否启用答案缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 答案缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 答案缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// EmbeddingEnabled 是否缓存查询向量。
	EmbeddingEnabled bool `json:"embedding-enabled" mapstructure:"embedding-enabled"`

	// EmbeddingTTL 向量缓存过期时间。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:          false,
		TTL:              10 * time.Minute,
		KeyPrefix:        "kb:answer:",
		EmbeddingEnabled: false,
		EmbeddingTTL:     24 * time.Hour,
		Redis:            redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the answer cache.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Answer cache TTL.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Answer cache key prefix.")
	fs.BoolVar(&o.EmbeddingEnabled, p+"embedding-enabled", o.EmbeddingEnabled, "Cache query embeddings in redis.")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "Embedding cache TTL.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	if (o.Enabled || o.EmbeddingEnabled) && o.Redis != nil {
		return o.Redis.Validate()
	}
	return nil
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}

// Active reports whether any cache needs a redis connection.
func (o *Options) Active() bool {
	return o.Enabled || o.EmbeddingEnabled
}
