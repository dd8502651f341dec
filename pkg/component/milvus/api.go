package milvus

import (
	"context"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// api is the subset of the SDK the client uses. Index creation and loading
// block until the server reports completion.
type api interface {
	CreateCollection(ctx context.Context, opt milvusclient.CreateCollectionOption) error
	HasCollection(ctx context.Context, opt milvusclient.HasCollectionOption) (bool, error)
	ListCollections(ctx context.Context, opt milvusclient.ListCollectionOption) ([]string, error)
	DropCollection(ctx context.Context, opt milvusclient.DropCollectionOption) error
	DescribeCollection(ctx context.Context, opt milvusclient.DescribeCollectionOption) (*entity.Collection, error)
	CreateIndex(ctx context.Context, opt milvusclient.CreateIndexOption) error
	LoadCollection(ctx context.Context, opt milvusclient.LoadCollectionOption) error

	Insert(ctx context.Context, opt milvusclient.InsertOption) error
	Upsert(ctx context.Context, opt milvusclient.UpsertOption) error
	Delete(ctx context.Context, opt milvusclient.DeleteOption) (int64, error)
	Query(ctx context.Context, opt milvusclient.QueryOption) (milvusclient.ResultSet, error)
	Search(ctx context.Context, opt milvusclient.SearchOption) ([]milvusclient.ResultSet, error)
	HybridSearch(ctx context.Context, opt milvusclient.HybridSearchOption) ([]milvusclient.ResultSet, error)

	Close(ctx context.Context) error
}

// sdk adapts *milvusclient.Client to api.
type sdk struct {
	c *milvusclient.Client
}

func (s sdk) CreateCollection(ctx context.Context, opt milvusclient.CreateCollectionOption) error {
	return s.c.CreateCollection(ctx, opt)
}

func (s sdk) HasCollection(ctx context.Context, opt milvusclient.HasCollectionOption) (bool, error) {
	return s.c.HasCollection(ctx, opt)
}

func (s sdk) ListCollections(ctx context.Context, opt milvusclient.ListCollectionOption) ([]string, error) {
	return s.c.ListCollections(ctx, opt)
}

func (s sdk) DropCollection(ctx context.Context, opt milvusclient.DropCollectionOption) error {
	return s.c.DropCollection(ctx, opt)
}

func (s sdk) DescribeCollection(ctx context.Context, opt milvusclient.DescribeCollectionOption) (*entity.Collection, error) {
	return s.c.DescribeCollection(ctx, opt)
}

func (s sdk) CreateIndex(ctx context.Context, opt milvusclient.CreateIndexOption) error {
	task, err := s.c.CreateIndex(ctx, opt)
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

func (s sdk) LoadCollection(ctx context.Context, opt milvusclient.LoadCollectionOption) error {
	task, err := s.c.LoadCollection(ctx, opt)
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

func (s sdk) Insert(ctx context.Context, opt milvusclient.InsertOption) error {
	_, err := s.c.Insert(ctx, opt)
	return err
}

func (s sdk) Upsert(ctx context.Context, opt milvusclient.UpsertOption) error {
	_, err := s.c.Upsert(ctx, opt)
	return err
}

func (s sdk) Delete(ctx context.Context, opt milvusclient.DeleteOption) (int64, error) {
	res, err := s.c.Delete(ctx, opt)
	if err != nil {
		return 0, err
	}
	return res.DeleteCount, nil
}

func (s sdk) Query(ctx context.Context, opt milvusclient.QueryOption) (milvusclient.ResultSet, error) {
	return s.c.Query(ctx, opt)
}

func (s sdk) Search(ctx context.Context, opt milvusclient.SearchOption) ([]milvusclient.ResultSet, error) {
	return s.c.Search(ctx, opt)
}

func (s sdk) HybridSearch(ctx context.Context, opt milvusclient.HybridSearchOption) ([]milvusclient.ResultSet, error) {
	return s.c.HybridSearch(ctx, opt)
}

func (s sdk) Close(ctx context.Context) error {
	return s.c.Close(ctx)
}
