package knowledge

import (
	"context"

	"github.com/vincent-zhou/knowbase/internal/domain"
)

// VectorStore is the persistence contract the knowledge service consumes.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, collection string, items []domain.KnowledgeItem) ([]int64, error)
	Search(ctx context.Context, collection string, vector []float32, limit int, outputFields []string) ([]domain.SearchResult, error)
	ListCollections(ctx context.Context) ([]string, error)
	CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error)
	DropCollection(ctx context.Context, name string) error
}

// Embedder vectorizes text for storage and querying.
type Embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}
