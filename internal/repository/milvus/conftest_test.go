package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"
)

// mockClient implements storeClient in memory and records which engine
// operations were issued, so tests can assert what a store method did on
// the wire, not just what it returned.
type mockClient struct {
	collections map[string]*entity.Schema
	loaded      map[string]bool
	stats       map[string]string

	insertIDs    []int64
	searchResult []milvusclient.ResultSet

	listCalls   int
	createCalls int
	indexCalls  int
	insertCalls int
	loadCalls   int
	searchCalls int
	dropCalls   int

	lastOutputFields []string
	lastSearchLimit  int

	listErr   error
	hasErr    error
	createErr error
	indexErr  error
	insertErr error
	loadErr   error
	searchErr error
	dropErr   error
	statsErr  error

	closed bool
}

var _ storeClient = (*mockClient)(nil)

func newMockClient() *mockClient {
	return &mockClient{
		collections: map[string]*entity.Schema{},
		loaded:      map[string]bool{},
		stats:       map[string]string{"row_count": "0"},
	}
}

func (m *mockClient) ListCollections(context.Context) ([]string, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names, nil
}

func (m *mockClient) HasCollection(_ context.Context, name string) (bool, error) {
	if m.hasErr != nil {
		return false, m.hasErr
	}
	_, ok := m.collections[name]
	return ok, nil
}

func (m *mockClient) CreateCollection(_ context.Context, name string, schema *entity.Schema) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	m.collections[name] = schema
	return nil
}

func (m *mockClient) CreateIndex(_ context.Context, collection, field string, _ index.Index) error {
	m.indexCalls++
	if m.indexErr != nil {
		return m.indexErr
	}
	if _, ok := m.collections[collection]; !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	if field != fieldVector {
		return fmt.Errorf("unexpected index field %s", field)
	}
	return nil
}

func (m *mockClient) Insert(_ context.Context, collection string, cols ...column.Column) (milvusclient.InsertResult, error) {
	m.insertCalls++
	if m.insertErr != nil {
		return milvusclient.InsertResult{}, m.insertErr
	}
	if _, ok := m.collections[collection]; !ok {
		return milvusclient.InsertResult{}, fmt.Errorf("collection %s does not exist", collection)
	}
	rows := 0
	if len(cols) > 0 {
		rows = cols[0].Len()
	}
	ids := m.insertIDs
	if ids == nil {
		ids = make([]int64, rows)
		for i := range ids {
			ids[i] = int64(i + 1)
		}
	}
	return milvusclient.InsertResult{
		InsertCount: int64(rows),
		IDs:         column.NewColumnInt64(fieldID, ids),
	}, nil
}

func (m *mockClient) LoadCollection(_ context.Context, name string) error {
	m.loadCalls++
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded[name] = true
	return nil
}

func (m *mockClient) Search(_ context.Context, collection string, _ []entity.Vector, limit int, _ string, outputFields []string) ([]milvusclient.ResultSet, error) {
	m.searchCalls++
	m.lastSearchLimit = limit
	m.lastOutputFields = outputFields
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if !m.loaded[collection] {
		return nil, fmt.Errorf("collection %s is not loaded", collection)
	}
	return m.searchResult, nil
}

func (m *mockClient) CollectionStats(_ context.Context, name string) (map[string]string, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	if _, ok := m.collections[name]; !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}
	return m.stats, nil
}

func (m *mockClient) DropCollection(_ context.Context, name string) error {
	m.dropCalls++
	if m.dropErr != nil {
		return m.dropErr
	}
	delete(m.collections, name)
	delete(m.loaded, name)
	return nil
}

func (m *mockClient) Close(context.Context) error {
	m.closed = true
	return nil
}

// addCollection registers an existing collection without going through
// CreateCollection, so call counters stay at zero.
func (m *mockClient) addCollection(name string, dim int) {
	m.collections[name] = collectionSchema(name, dim, "")
}

func newTestStore(client storeClient) *Store {
	return &Store{
		client:      client,
		dim:         4,
		description: "test",
		logger:      zap.NewNop(),
	}
}
