package milvus

import (
	"context"
	"fmt"
	"slices"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"

	"github.com/vincent-zhou/knowbase/internal/domain"
)

// Config holds connection parameters for the vector store. Credentials are
// tried in a fixed order: Token, then APIKey, then Username/Password.
type Config struct {
	Endpoint string
	Token    string
	APIKey   string
	Username string
	Password string

	// Dimension is the vector width every collection managed by this store
	// uses. Insert validates items against it before touching the engine.
	Dimension int

	// Description is attached to collections this store creates.
	Description string
}

// Store talks to a managed Milvus deployment. All collections it creates
// share one fixed schema and a cosine AUTOINDEX on the vector field.
type Store struct {
	client      storeClient
	dim         int
	description string
	logger      *zap.Logger
}

// dialMilvus opens a grpc connection for one credential candidate.
// Swapped out in tests.
var dialMilvus = func(ctx context.Context, cfg *milvusclient.ClientConfig) (storeClient, error) {
	client, err := milvusclient.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &grpcClient{inner: client}, nil
}

// Connect establishes a connection using the first credential candidate
// whose list-collections probe succeeds. It fails with ErrMissingCredentials
// when no candidate can be built and with ErrAuthFailed carrying the last
// probe error when every candidate is rejected.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, domain.ErrMissingEndpoint
	}

	methods := authMethods(cfg)
	if len(methods) == 0 {
		return nil, fmt.Errorf("no token, api key or username/password configured: %w", domain.ErrMissingCredentials)
	}

	var lastErr error
	for _, m := range methods {
		client, err := dialMilvus(ctx, m.clientConfig(cfg.Endpoint))
		if err != nil {
			lastErr = err
			logger.Warn("vector store connection attempt failed",
				zap.String("auth_method", m.name),
				zap.Error(err))
			continue
		}

		// Probe with a cheap read so bad credentials surface here rather
		// than on the first real operation.
		if _, err := client.ListCollections(ctx); err != nil {
			lastErr = err
			logger.Warn("vector store auth probe failed",
				zap.String("auth_method", m.name),
				zap.Error(err))
			_ = client.Close(ctx)
			continue
		}

		logger.Info("connected to vector store",
			zap.String("endpoint", cfg.Endpoint),
			zap.String("auth_method", m.name))

		return &Store{
			client:      client,
			dim:         cfg.Dimension,
			description: cfg.Description,
			logger:      logger,
		}, nil
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrAuthFailed, lastErr)
}

// Dimension returns the vector width this store was configured with.
func (s *Store) Dimension() int {
	return s.dim
}

// CreateCollection creates a collection with the fixed schema and a cosine
// AUTOINDEX on the vector field. Creating a collection that already exists
// is a no-op, regardless of the existing collection's dimension.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		s.logger.Debug("collection already exists", zap.String("collection", name))
		return nil
	}

	schema := collectionSchema(name, s.dim, s.description)
	if err := s.client.CreateCollection(ctx, name, schema); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	if err := s.client.CreateIndex(ctx, name, fieldVector, index.NewAutoIndex(entity.COSINE)); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", name, err)
	}

	s.logger.Info("created collection",
		zap.String("collection", name),
		zap.Int("dimension", s.dim))

	return nil
}

// Insert validates and writes items into the collection, creating it first
// if it does not exist. It returns the engine-assigned primary keys. The
// collection is loaded for search afterwards; a load failure is logged but
// does not fail the insert, since the data is already persisted.
func (s *Store) Insert(ctx context.Context, collection string, items []domain.KnowledgeItem) ([]int64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if err := validateItems(items, s.dim); err != nil {
		return nil, err
	}

	if err := s.CreateCollection(ctx, collection); err != nil {
		return nil, err
	}

	result, err := s.client.Insert(ctx, collection, insertColumns(items, s.dim)...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}

	ids := make([]int64, 0, result.InsertCount)
	for i := 0; result.IDs != nil && i < result.IDs.Len(); i++ {
		id, err := result.IDs.GetAsInt64(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read inserted id at %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	if err := s.client.LoadCollection(ctx, collection); err != nil {
		s.logger.Warn("failed to load collection after insert",
			zap.String("collection", collection),
			zap.Error(err))
	}

	s.logger.Debug("inserted items",
		zap.String("collection", collection),
		zap.Int("count", len(ids)))

	return ids, nil
}

// Search runs a cosine ANN query against the collection and returns the
// closest rows with their similarity scores. An empty outputFields requests
// the full payload.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int, outputFields []string) ([]domain.SearchResult, error) {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
	}

	if err := s.client.LoadCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", collection, err)
	}

	if len(outputFields) == 0 {
		outputFields = defaultOutputFields()
	}

	resultSets, err := s.client.Search(ctx, collection, []entity.Vector{entity.FloatVector(vector)}, limit, fieldVector, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	if len(resultSets) == 0 {
		return nil, nil
	}
	return resultSetRows(resultSets[0])
}

// ListCollections returns the names of all collections on the deployment.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// CollectionInfo returns the name, configured dimension and engine stats of
// the collection, or ErrCollectionNotFound if it does not exist.
func (s *Store) CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error) {
	names, err := s.ListCollections(ctx)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	if !slices.Contains(names, name) {
		return domain.CollectionInfo{}, fmt.Errorf("collection %s: %w", name, domain.ErrCollectionNotFound)
	}

	stats, err := s.client.CollectionStats(ctx, name)
	if err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("failed to get stats for %s: %w", name, err)
	}

	return domain.CollectionInfo{
		Name:      name,
		Dimension: s.dim,
		Stats:     stats,
	}, nil
}

// DropCollection removes the collection and its data. Dropping a collection
// that does not exist is a no-op.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		s.logger.Debug("collection does not exist, nothing to drop", zap.String("collection", name))
		return nil
	}

	if err := s.client.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}

	s.logger.Info("dropped collection", zap.String("collection", name))
	return nil
}

// Ping verifies the connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx); err != nil {
		return fmt.Errorf("vector store ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func validateItems(items []domain.KnowledgeItem, dim int) error {
	for i, it := range items {
		if err := it.Validate(dim); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
