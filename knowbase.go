// Package knowbase is an SDK for storing and semantically searching text
// knowledge backed by a managed Milvus deployment and a Qwen embedding model.
package knowbase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vincent-zhou/knowbase/internal/cache"
	"github.com/vincent-zhou/knowbase/internal/domain"
	"github.com/vincent-zhou/knowbase/internal/metrics"
	"github.com/vincent-zhou/knowbase/internal/repository/embcache"
	"github.com/vincent-zhou/knowbase/internal/repository/milvus"
	"github.com/vincent-zhou/knowbase/internal/transport/openai"
	knowledgeuc "github.com/vincent-zhou/knowbase/internal/usecase/knowledge"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "knowledge_base"

// Metadata carries the optional attributes stored with a text.
type Metadata struct {
	Topic  string
	Weight float32
	Title  string
	Tags   []string
}

// SearchResult is one similarity search hit.
type SearchResult struct {
	ID        int64
	Text      string
	Metadata  Metadata
	CreatedAt int32
	Score     float32
}

// CollectionInfo describes the active collection.
type CollectionInfo struct {
	Name      string
	Dimension int
	Stats     map[string]string
}

// Client is the knowbase SDK entry point.
type Client struct {
	store      *milvus.Store
	cacheStore *cache.Store
	knowledge  *knowledgeuc.Service
}

// New creates a Client: it builds the embedding provider, measures the model
// dimension, connects to the vector store and ensures the collection exists.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{collection: DefaultCollection}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.endpoint == "" {
		return nil, errors.New("knowbase: vector store endpoint required (use WithEndpoint)")
	}

	emb, err := openai.NewEmbedder(&openai.Config{
		APIKey:   cfg.embeddingAPIKey,
		BaseURL:  cfg.embeddingBaseURL,
		Model:    cfg.embeddingModel,
		Provider: "qwen",
		Logger:   cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("knowbase: create embedder: %w", err)
	}

	var embedder knowledgeuc.Embedder = emb
	var cacheStore *cache.Store
	if cfg.cacheAddr != "" {
		cacheStore, err = cache.NewStore(cache.Config{
			Addrs:    []string{cfg.cacheAddr},
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("knowbase: create embedding cache: %w", err)
		}
		embedder = embcache.New(emb, cacheStore, metrics.EmbeddingCacheTotal, cfg.logger)
	}

	dim := cfg.dimension
	if dim <= 0 {
		dim = emb.Dimension(ctx)
	}

	store, err := milvus.Connect(ctx, milvus.Config{
		Endpoint:    cfg.endpoint,
		Token:       cfg.token,
		APIKey:      cfg.apiKey,
		Username:    cfg.username,
		Password:    cfg.password,
		Dimension:   dim,
		Description: "knowledge collection",
	}, cfg.logger)
	if err != nil {
		if cacheStore != nil {
			cacheStore.Close()
		}
		return nil, fmt.Errorf("knowbase: connect vector store: %w", err)
	}

	svc, err := knowledgeuc.New(ctx, store, embedder, cfg.collection, cfg.logger)
	if err != nil {
		_ = store.Close(ctx)
		if cacheStore != nil {
			cacheStore.Close()
		}
		return nil, fmt.Errorf("knowbase: init knowledge service: %w", err)
	}

	return &Client{
		store:      store,
		cacheStore: cacheStore,
		knowledge:  svc,
	}, nil
}

// Store vectorizes the text and persists it. It returns the stored item id.
func (c *Client) Store(ctx context.Context, text string, meta Metadata) (string, error) {
	return c.knowledge.Store(ctx, text, metaToDomain(meta))
}

// StoreBatch persists multiple texts in one embedding call. metas may be nil.
func (c *Client) StoreBatch(ctx context.Context, texts []string, metas []Metadata) ([]string, error) {
	var domMetas []domain.Metadata
	if metas != nil {
		domMetas = make([]domain.Metadata, len(metas))
		for i, m := range metas {
			domMetas[i] = metaToDomain(m)
		}
	}
	return c.knowledge.StoreBatch(ctx, texts, domMetas)
}

// Search returns the stored items most similar to the query. limit <= 0
// requests the default count; results below threshold are dropped.
func (c *Client) Search(ctx context.Context, query string, limit int, threshold float32) ([]SearchResult, error) {
	rows, err := c.knowledge.Search(ctx, query, limit, threshold)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{
			ID:        r.ID,
			Text:      r.Text,
			Metadata:  metaFromDomain(r.Metadata),
			CreatedAt: r.CreatedAt,
			Score:     r.Score,
		}
	}
	return results, nil
}

// Collection returns a snapshot of the active collection.
func (c *Client) Collection(ctx context.Context) (CollectionInfo, error) {
	info, err := c.knowledge.Info(ctx)
	if err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{Name: info.Name, Dimension: info.Dimension, Stats: info.Stats}, nil
}

// ListCollections returns all collection names on the deployment.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	return c.knowledge.ListCollections(ctx)
}

// DropCollection removes the named collection. Dropping an absent
// collection succeeds.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	return c.knowledge.DropCollection(ctx, name)
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close releases all resources.
func (c *Client) Close(ctx context.Context) error {
	if c.cacheStore != nil {
		c.cacheStore.Close()
	}
	if c.store != nil {
		return c.store.Close(ctx)
	}
	return nil
}

func metaToDomain(m Metadata) domain.Metadata {
	return domain.Metadata{Topic: m.Topic, Weight: m.Weight, Title: m.Title, Tags: m.Tags}
}

func metaFromDomain(m domain.Metadata) Metadata {
	return Metadata{Topic: m.Topic, Weight: m.Weight, Title: m.Title, Tags: m.Tags}
}
