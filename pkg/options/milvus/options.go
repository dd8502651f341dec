// Package milvusopts provides options for Milvus client configuration.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/tenant-kb/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration.
type Options struct {
	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Database is the database name to use.
	Database string `json:"database" mapstructure:"database"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"password" mapstructure:"password"`

	// ConnectTimeout bounds the initial connection and simple reads.
	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`

	// QueryTimeout bounds search and fetch calls.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// InsertTimeout bounds insert, upsert and collection creation (index build + load).
	InsertTimeout time.Duration `json:"insert-timeout" mapstructure:"insert-timeout"`

	// Dim is the dimension of the dense vector field.
	Dim int `json:"dim" mapstructure:"dim"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:        "localhost:19530",
		Database:       "default",
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   60 * time.Second,
		InsertTimeout:  120 * time.Second,
		Dim:            768, // nomic-embed-text
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password for authentication.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Connection timeout.")
	fs.DurationVar(&o.QueryTimeout, p+"query-timeout", o.QueryTimeout, "Search and fetch timeout.")
	fs.DurationVar(&o.InsertTimeout, p+"insert-timeout", o.InsertTimeout, "Insert and collection creation timeout.")
	fs.IntVar(&o.Dim, p+"dim", o.Dim, "Dense vector dimension, must match the embedding model.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus address is required"))
	}
	if o.ConnectTimeout <= 0 || o.QueryTimeout <= 0 || o.InsertTimeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus timeouts must be positive"))
	}
	if o.Dim <= 0 {
		errs = append(errs, fmt.Errorf("milvus dim must be positive"))
	}
	return errs
}

// Complete completes the options.
func (o *Options) Complete() error {
	return nil
}
