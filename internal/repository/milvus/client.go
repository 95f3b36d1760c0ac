package milvus

import (
	"context"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// storeClient is the slice of the milvus client the store consumes.
// CreateIndex and LoadCollection block until the server reports completion.
type storeClient interface {
	ListCollections(ctx context.Context) ([]string, error)
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, schema *entity.Schema) error
	CreateIndex(ctx context.Context, collection, field string, idx index.Index) error
	Insert(ctx context.Context, collection string, cols ...column.Column) (milvusclient.InsertResult, error)
	LoadCollection(ctx context.Context, name string) error
	Search(ctx context.Context, collection string, vectors []entity.Vector, limit int, annsField string, outputFields []string) ([]milvusclient.ResultSet, error)
	CollectionStats(ctx context.Context, name string) (map[string]string, error)
	DropCollection(ctx context.Context, name string) error
	Close(ctx context.Context) error
}

// grpcClient adapts *milvusclient.Client to storeClient.
type grpcClient struct {
	inner *milvusclient.Client
}

var _ storeClient = (*grpcClient)(nil)

func (g *grpcClient) ListCollections(ctx context.Context) ([]string, error) {
	return g.inner.ListCollections(ctx, milvusclient.NewListCollectionOption())
}

func (g *grpcClient) HasCollection(ctx context.Context, name string) (bool, error) {
	return g.inner.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
}

func (g *grpcClient) CreateCollection(ctx context.Context, name string, schema *entity.Schema) error {
	return g.inner.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema))
}

func (g *grpcClient) CreateIndex(ctx context.Context, collection, field string, idx index.Index) error {
	task, err := g.inner.CreateIndex(ctx, milvusclient.NewCreateIndexOption(collection, field, idx))
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

func (g *grpcClient) Insert(ctx context.Context, collection string, cols ...column.Column) (milvusclient.InsertResult, error) {
	return g.inner.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...))
}

func (g *grpcClient) LoadCollection(ctx context.Context, name string) error {
	task, err := g.inner.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

func (g *grpcClient) Search(ctx context.Context, collection string, vectors []entity.Vector, limit int, annsField string, outputFields []string) ([]milvusclient.ResultSet, error) {
	return g.inner.Search(ctx, milvusclient.NewSearchOption(collection, limit, vectors).
		WithANNSField(annsField).
		WithOutputFields(outputFields...))
}

func (g *grpcClient) CollectionStats(ctx context.Context, name string) (map[string]string, error) {
	return g.inner.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(name))
}

func (g *grpcClient) DropCollection(ctx context.Context, name string) error {
	return g.inner.DropCollection(ctx, milvusclient.NewDropCollectionOption(name))
}

func (g *grpcClient) Close(ctx context.Context) error {
	return g.inner.Close(ctx)
}
