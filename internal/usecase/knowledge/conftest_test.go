package knowledge

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/vincent-zhou/knowbase/internal/domain"
)

// mockEmbedder maps known texts to fixed vectors so similarity in tests is
// fully deterministic. Unknown texts embed to the zero vector.
type mockEmbedder struct {
	vectors    map[string][]float32
	dim        int
	embedErr   error
	embedCalls int
	batchCalls int
}

func newMockEmbedder(dim int) *mockEmbedder {
	return &mockEmbedder{vectors: make(map[string][]float32), dim: dim}
}

func (m *mockEmbedder) register(text string, vec []float32) {
	m.vectors[text] = vec
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	if m.embedErr != nil {
		return domain.EmbeddingResult{}, m.embedErr
	}
	return domain.EmbeddingResult{Embedding: m.vectorFor(text), TotalTokens: 3}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.embedErr != nil {
		return domain.BatchEmbeddingResult{}, m.embedErr
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = m.vectorFor(text)
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: 3 * len(texts)}, nil
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	if vec, ok := m.vectors[text]; ok {
		return vec
	}
	return make([]float32, m.dim)
}

// mockStore is an in-memory vector store ranking by true cosine similarity.
type mockStore struct {
	collections map[string][]domain.KnowledgeItem
	nextID      int64

	createCalls int
	insertErr   error
	searchErr   error
	reportIDs   bool
}

func newMockStore() *mockStore {
	return &mockStore{collections: make(map[string][]domain.KnowledgeItem), nextID: 1, reportIDs: true}
}

func (m *mockStore) CreateCollection(_ context.Context, name string) error {
	m.createCalls++
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = nil
	}
	return nil
}

func (m *mockStore) Insert(_ context.Context, collection string, items []domain.KnowledgeItem) ([]int64, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.collections[collection] = append(m.collections[collection], items...)
	if !m.reportIDs {
		return nil, nil
	}
	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = m.nextID
		m.nextID++
	}
	return ids, nil
}

func (m *mockStore) Search(_ context.Context, collection string, vector []float32, limit int, _ []string) ([]domain.SearchResult, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	items, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
	}

	results := make([]domain.SearchResult, 0, len(items))
	for i, it := range items {
		results = append(results, domain.SearchResult{
			ID:        int64(i + 1),
			Text:      it.Text,
			Metadata:  it.Meta(),
			CreatedAt: it.CreatedAt,
			Score:     cosine(vector, it.Vector),
		})
	}
	slices.SortFunc(results, func(a, b domain.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *mockStore) ListCollections(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (m *mockStore) CollectionInfo(_ context.Context, name string) (domain.CollectionInfo, error) {
	items, ok := m.collections[name]
	if !ok {
		return domain.CollectionInfo{}, fmt.Errorf("collection %s: %w", name, domain.ErrCollectionNotFound)
	}
	return domain.CollectionInfo{
		Name:      name,
		Dimension: 4,
		Stats:     map[string]string{"row_count": fmt.Sprintf("%d", len(items))},
	}, nil
}

func (m *mockStore) DropCollection(_ context.Context, name string) error {
	delete(m.collections, name)
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func newTestService(ctx context.Context, store *mockStore, emb *mockEmbedder) (*Service, error) {
	return New(ctx, store, emb, "knowledge_base", zap.NewNop())
}
