package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vincent-zhou/knowbase/internal/domain"
)

// DefaultLimit is the number of search results returned when the caller
// does not ask for a specific count.
const DefaultLimit = 5

// Service composes the embedder and the vector store into the knowledge
// workflow: vectorize on write, vectorize and rank on read.
type Service struct {
	store      VectorStore
	embedder   Embedder
	collection string
	logger     *zap.Logger
	now        func() time.Time
}

// New creates the knowledge service and ensures its collection exists.
// The collection is created at most once here; later writes rely on it.
func New(ctx context.Context, store VectorStore, embedder Embedder, collection string, logger *zap.Logger) (*Service, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if err := store.CreateCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	return &Service{
		store:      store,
		embedder:   embedder,
		collection: collection,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Collection returns the name of the collection this service writes to.
func (s *Service) Collection() string {
	return s.collection
}

// Store vectorizes the text and persists it with its metadata. It returns
// the identifier of the stored item: the engine-assigned primary key when
// the store reports one, otherwise a generated UUID.
func (s *Service) Store(ctx context.Context, text string, meta domain.Metadata) (string, error) {
	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to embed text: %w", err)
	}

	item := domain.NewKnowledgeItem(res.Embedding, text, meta, int32(s.now().Unix()))
	ids, err := s.store.Insert(ctx, s.collection, []domain.KnowledgeItem{item})
	if err != nil {
		return "", fmt.Errorf("failed to store item: %w", err)
	}

	id := itemID(ids, 0)
	s.logger.Debug("stored knowledge item",
		zap.String("collection", s.collection),
		zap.String("id", id),
		zap.Int("tokens", res.TotalTokens))
	return id, nil
}

// StoreBatch vectorizes all texts in one call and persists them together.
// metas may be nil; otherwise it must be as long as texts. Returned ids are
// in input order.
func (s *Service) StoreBatch(ctx context.Context, texts []string, metas []domain.Metadata) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if metas != nil && len(metas) != len(texts) {
		return nil, fmt.Errorf("metas length %d does not match texts length %d", len(metas), len(texts))
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(res.Embeddings), len(texts))
	}

	createdAt := int32(s.now().Unix())
	items := make([]domain.KnowledgeItem, len(texts))
	for i, text := range texts {
		var meta domain.Metadata
		if metas != nil {
			meta = metas[i]
		}
		items[i] = domain.NewKnowledgeItem(res.Embeddings[i], text, meta, createdAt)
	}

	storeIDs, err := s.store.Insert(ctx, s.collection, items)
	if err != nil {
		return nil, fmt.Errorf("failed to store batch: %w", err)
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = itemID(storeIDs, i)
	}

	s.logger.Debug("stored knowledge batch",
		zap.String("collection", s.collection),
		zap.Int("count", len(ids)),
		zap.Int("tokens", res.TotalTokens))
	return ids, nil
}

// Search vectorizes the query and returns the most similar stored items.
// limit <= 0 falls back to DefaultLimit. Results scoring below threshold
// are dropped; a fully filtered result is empty, not an error.
func (s *Service) Search(ctx context.Context, query string, limit int, threshold float32) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	res, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.store.Search(ctx, s.collection, res.Embedding, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", s.collection, err)
	}

	filtered := rows[:0]
	for _, row := range rows {
		if row.Score >= threshold {
			filtered = append(filtered, row)
		}
	}

	s.logger.Debug("search completed",
		zap.String("collection", s.collection),
		zap.Int("matched", len(rows)),
		zap.Int("returned", len(filtered)))
	return filtered, nil
}

// Info returns a snapshot of the active collection.
func (s *Service) Info(ctx context.Context) (domain.CollectionInfo, error) {
	return s.store.CollectionInfo(ctx, s.collection)
}

// ListCollections returns all collection names on the deployment.
func (s *Service) ListCollections(ctx context.Context) ([]string, error) {
	return s.store.ListCollections(ctx)
}

// DropCollection removes the named collection. Dropping an absent
// collection succeeds.
func (s *Service) DropCollection(ctx context.Context, name string) error {
	return s.store.DropCollection(ctx, name)
}

// itemID picks the engine-assigned id for position i, falling back to a
// generated UUID when the store did not report ids.
func itemID(ids []int64, i int) string {
	if i < len(ids) {
		return strconv.FormatInt(ids[i], 10)
	}
	return uuid.NewString()
}
