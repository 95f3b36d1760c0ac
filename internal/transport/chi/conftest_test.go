package chi

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/vincent-zhou/knowbase/internal/domain"
	healthuc "github.com/vincent-zhou/knowbase/internal/usecase/health"
	knowledgeuc "github.com/vincent-zhou/knowbase/internal/usecase/knowledge"
)

// fakeStore is a minimal in-memory vector store for handler tests. Search
// returns stored items in insertion order with a fixed descending score.
type fakeStore struct {
	collections map[string][]domain.KnowledgeItem
	insertErr   error
	searchErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string][]domain.KnowledgeItem)}
}

func (f *fakeStore) CreateCollection(_ context.Context, name string) error {
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = nil
	}
	return nil
}

func (f *fakeStore) Insert(_ context.Context, collection string, items []domain.KnowledgeItem) ([]int64, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	start := int64(len(f.collections[collection]) + 1)
	f.collections[collection] = append(f.collections[collection], items...)
	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = start + int64(i)
	}
	return ids, nil
}

func (f *fakeStore) Search(_ context.Context, collection string, _ []float32, limit int, _ []string) ([]domain.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	items, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
	}
	results := make([]domain.SearchResult, 0, len(items))
	for i, it := range items {
		if i >= limit {
			break
		}
		results = append(results, domain.SearchResult{
			ID:        int64(i + 1),
			Text:      it.Text,
			Metadata:  it.Meta(),
			CreatedAt: it.CreatedAt,
			Score:     1 - float32(i)*0.1,
		})
	}
	return results, nil
}

func (f *fakeStore) ListCollections(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeStore) CollectionInfo(_ context.Context, name string) (domain.CollectionInfo, error) {
	items, ok := f.collections[name]
	if !ok {
		return domain.CollectionInfo{}, fmt.Errorf("collection %s: %w", name, domain.ErrCollectionNotFound)
	}
	return domain.CollectionInfo{
		Name:      name,
		Dimension: 4,
		Stats:     map[string]string{"row_count": fmt.Sprintf("%d", len(items))},
	}, nil
}

func (f *fakeStore) DropCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0, 0}, TotalTokens: 2}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{1, 0, 0, 0}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: 2 * len(texts)}, nil
}

func (f *fakeEmbedder) HealthCheck(context.Context) error { return f.err }

func newTestServer(t *testing.T, store *fakeStore, emb *fakeEmbedder) *Server {
	t.Helper()
	svc, err := knowledgeuc.New(context.Background(), store, emb, "knowledge_base", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build knowledge service: %v", err)
	}
	return NewServer(svc, healthuc.New(store, emb), zap.NewNop())
}
