// Package options contains flags and options for initializing the knowledge base server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	kbsvc "github.com/kart-io/tenant-kb/internal/kb"
	"github.com/kart-io/tenant-kb/pkg/app/cliflag"
	"github.com/kart-io/tenant-kb/pkg/infra/server"
	cacheopts "github.com/kart-io/tenant-kb/pkg/options/cache"
	dbopts "github.com/kart-io/tenant-kb/pkg/options/database"
	httpopts "github.com/kart-io/tenant-kb/pkg/options/http"
	kbopts "github.com/kart-io/tenant-kb/pkg/options/kb"
	llmopts "github.com/kart-io/tenant-kb/pkg/options/llm"
	logopts "github.com/kart-io/tenant-kb/pkg/options/logger"
	milvusopts "github.com/kart-io/tenant-kb/pkg/options/milvus"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus vector store configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// DatabaseOptions contains the tenant database configuration.
	DatabaseOptions *dbopts.Options `json:"database" mapstructure:"database"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// KBOptions contains retrieval and answer configuration.
	KBOptions *kbopts.Options `json:"kb" mapstructure:"kb"`

	// CacheOptions contains cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string `json:"cors-origins" mapstructure:"cors-origins"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		DatabaseOptions:  dbopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		KBOptions:        kbopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		ShutdownTimeout:  server.DefaultShutdownTimeout,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.KBOptions.AddFlags(fss.FlagSet("kb"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.StringSliceVar(&o.CORSOrigins, "cors-origins", o.CORSOrigins, "Origins allowed by CORS, empty disables CORS.")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.MilvusOptions.Complete(); err != nil {
		return fmt.Errorf("milvus: %w", err)
	}
	if err := o.DatabaseOptions.Complete(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.KBOptions.Complete(); err != nil {
		return fmt.Errorf("kb: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = server.DefaultShutdownTimeout
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.DatabaseOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.KBOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a kbsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*kbsvc.Config, error) {
	return &kbsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		MilvusOptions:    o.MilvusOptions,
		DatabaseOptions:  o.DatabaseOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		KBOptions:        o.KBOptions,
		CacheOptions:     o.CacheOptions,
		CORSOrigins:      o.CORSOrigins,
		ShutdownTimeout:  o.ShutdownTimeout,
	}, nil
}
