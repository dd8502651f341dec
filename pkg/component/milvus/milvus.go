// Package milvus wraps the Milvus v2 SDK with the collection layout used by
// the knowledge base: a VarChar primary key, an analyzer-enabled text field
// feeding a server-side BM25 function, a dense vector field and a set of
// VarChar scalar fields.
package milvus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/tenant-kb/pkg/options/milvus"
)

// Fixed field names shared by every collection.
const (
	FieldID         = "id"
	FieldSearchText = "search_text"
	FieldDense      = "embedding"
	FieldSparse     = "sparse"

	bm25Function = "search_text_bm25"
)

const (
	defaultVarCharLen = 8192
	searchTextLen     = 65535
	idLen             = 64
	arrayCapacity     = 64
	arrayElementLen   = 512
)

// ErrUnavailable is returned while no connection to Milvus could be made.
var ErrUnavailable = errors.New("milvus unavailable")

// redialInterval bounds how often a failed connection is retried.
const redialInterval = 5 * time.Second

// Client wraps the Milvus SDK client. The connection is made on first use
// and retried on later calls when the server was unreachable.
type Client struct {
	opts *milvusopts.Options
	dial func(ctx context.Context) (api, error)

	mu       sync.Mutex
	conn     api
	lastErr  error
	nextDial time.Time

	// collection name -> schema, used to build insert columns
	schemas sync.Map
}

// New returns a client that connects lazily.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}
	return newClient(opts, func(ctx context.Context) (api, error) {
		c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
			Address:  opts.Address,
			Username: opts.Username,
			Password: opts.Password,
			DBName:   opts.Database,
		})
		if err != nil {
			return nil, err
		}
		return sdk{c}, nil
	}), nil
}

func newClient(opts *milvusopts.Options, dial func(ctx context.Context) (api, error)) *Client {
	return &Client{opts: opts, dial: dial}
}

// Connect dials Milvus now. Callers may use it to warm up at startup; a
// failure leaves the client usable and the next call retries.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.api(ctx)
	return err
}

func (c *Client) api(ctx context.Context) (api, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}
	if time.Now().Before(c.nextDial) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, c.lastErr)
	}

	dctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()
	conn, err := c.dial(dctx)
	if err != nil {
		c.lastErr = err
		c.nextDial = time.Now().Add(redialInterval)
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", ErrUnavailable, c.opts.Address, err)
	}
	c.conn = conn
	c.lastErr = nil
	return conn, nil
}

// Close closes the Milvus client connection if one was made.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(ctx)
	c.conn = nil
	return err
}

// Options returns the options the client was created with.
func (c *Client) Options() *milvusopts.Options {
	return c.opts
}

// ScalarField describes a VarChar (or VarChar array) payload field.
type ScalarField struct {
	Name      string
	Array     bool
	MaxLength int
}

// CollectionSpec describes a collection to create.
type CollectionSpec struct {
	Name        string
	Description string
	Dim         int
	Fields      []ScalarField
}

// BuildSchema turns a spec into a Milvus schema with the BM25 function attached.
func BuildSchema(spec CollectionSpec) *entity.Schema {
	schema := entity.NewSchema().
		WithName(spec.Name).
		WithDescription(spec.Description).
		WithAutoID(false)

	schema.WithField(entity.NewField().
		WithName(FieldID).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(idLen).
		WithIsPrimaryKey(true))
	schema.WithField(entity.NewField().
		WithName(FieldSearchText).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(searchTextLen).
		WithEnableAnalyzer(true))
	schema.WithField(entity.NewField().
		WithName(FieldSparse).
		WithDataType(entity.FieldTypeSparseVector))
	schema.WithField(entity.NewField().
		WithName(FieldDense).
		WithDataType(entity.FieldTypeFloatVector).
		WithDim(int64(spec.Dim)))

	for _, f := range spec.Fields {
		maxLen := f.MaxLength
		if maxLen <= 0 {
			maxLen = defaultVarCharLen
		}
		field := entity.NewField().WithName(f.Name)
		if f.Array {
			field.WithDataType(entity.FieldTypeArray).
				WithElementType(entity.FieldTypeVarChar).
				WithMaxCapacity(arrayCapacity).
				WithMaxLength(arrayElementLen)
		} else {
			field.WithDataType(entity.FieldTypeVarChar).WithMaxLength(int64(maxLen))
		}
		schema.WithField(field)
	}

	schema.WithFunction(entity.NewFunction().
		WithName(bm25Function).
		WithInputFields(FieldSearchText).
		WithOutputFields(FieldSparse).
		WithType(entity.FunctionTypeBM25))

	return schema
}

// CreateCollection creates the collection, builds both vector indexes and
// loads it. A concurrent or repeated create surfaces as an error matched by
// IsAlreadyExists. When indexing or loading fails the collection is dropped
// again so that a later create starts clean.
func (c *Client) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	conn, err := c.api(ctx)
	if err != nil {
		return err
	}
	if spec.Dim <= 0 {
		spec.Dim = c.opts.Dim
	}
	schema := BuildSchema(spec)

	if err := conn.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(spec.Name, schema)); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", spec.Name, err)
	}
	c.schemas.Store(spec.Name, schema)

	if err := c.prepare(ctx, conn, spec.Name); err != nil {
		c.schemas.Delete(spec.Name)
		// 原 ctx 可能已超时，回滚使用独立超时
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ConnectTimeout)
		defer cancel()
		if derr := conn.DropCollection(dctx, milvusclient.NewDropCollectionOption(spec.Name)); derr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back collection %s: %w", spec.Name, derr))
		}
		return err
	}
	return nil
}

func (c *Client) prepare(ctx context.Context, conn api, name string) error {
	indexes := []struct {
		field string
		idx   index.Index
	}{
		{FieldDense, index.NewAutoIndex(entity.COSINE)},
		{FieldSparse, index.NewSparseInvertedIndex(entity.BM25, 0.2)},
	}
	for _, ix := range indexes {
		if err := conn.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, ix.field, ix.idx)); err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", name, ix.field, err)
		}
	}
	if err := conn.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name)); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	conn, err := c.api(ctx)
	if err != nil {
		return false, err
	}
	return conn.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
}

// ListCollections returns all collection names in the database.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	conn, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	return conn.ListCollections(ctx, milvusclient.NewListCollectionOption())
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	conn, err := c.api(ctx)
	if err != nil {
		return err
	}
	c.schemas.Delete(name)
	if err := conn.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

func (c *Client) schemaOf(ctx context.Context, conn api, name string) (*entity.Schema, error) {
	if s, ok := c.schemas.Load(name); ok {
		return s.(*entity.Schema), nil
	}
	coll, err := conn.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(name))
	if err != nil {
		return nil, fmt.Errorf("failed to describe collection %s: %w", name, err)
	}
	c.schemas.Store(name, coll.Schema)
	return coll.Schema, nil
}

// PayloadFields returns the primary key and scalar payload field names of a
// collection, excluding the analyzer input and both vector fields.
func (c *Client) PayloadFields(ctx context.Context, name string) ([]string, error) {
	conn, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	schema, err := c.schemaOf(ctx, conn, name)
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		switch f.Name {
		case FieldSearchText, FieldDense, FieldSparse:
			continue
		}
		fields = append(fields, f.Name)
	}
	return fields, nil
}
