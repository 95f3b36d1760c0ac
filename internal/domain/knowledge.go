package domain

import "fmt"

// Schema bounds of the knowledge collection. The collection schema is fixed;
// items violating these bounds are rejected before any network call.
const (
	MaxTextLength  = 65535
	MaxTopicLength = 500
	MaxTitleLength = 100
	MaxTagLength   = 100
	MaxTagCount    = 10
)

// Metadata carries the non-vector, non-text attributes of a stored item.
type Metadata struct {
	Topic  string
	Weight float32
	Title  string
	Tags   []string
}

// KnowledgeItem is one stored unit: a vector, its source text, and metadata.
// Vector length must equal the collection dimension or the store rejects the write.
type KnowledgeItem struct {
	Vector    []float32
	Text      string
	Topic     string
	Weight    float32
	Title     string
	Tags      []string
	CreatedAt int32
}

// NewKnowledgeItem assembles an item from a vector, its text, and metadata.
func NewKnowledgeItem(vector []float32, text string, meta Metadata, createdAt int32) KnowledgeItem {
	return KnowledgeItem{
		Vector:    vector,
		Text:      text,
		Topic:     meta.Topic,
		Weight:    meta.Weight,
		Title:     meta.Title,
		Tags:      meta.Tags,
		CreatedAt: createdAt,
	}
}

// Validate checks the item against the fixed schema bounds and the given
// vector dimension.
func (it KnowledgeItem) Validate(dim int) error {
	if len(it.Vector) != dim {
		return fmt.Errorf("%w: got %d, collection expects %d", ErrVectorDimMismatch, len(it.Vector), dim)
	}
	if len(it.Text) > MaxTextLength {
		return fmt.Errorf("%w: text exceeds %d chars", ErrInvalidItem, MaxTextLength)
	}
	if len(it.Topic) > MaxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d chars", ErrInvalidItem, MaxTopicLength)
	}
	if len(it.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d chars", ErrInvalidItem, MaxTitleLength)
	}
	if len(it.Tags) > MaxTagCount {
		return fmt.Errorf("%w: more than %d tags", ErrInvalidItem, MaxTagCount)
	}
	for _, tag := range it.Tags {
		if len(tag) > MaxTagLength {
			return fmt.Errorf("%w: tag %q exceeds %d chars", ErrInvalidItem, tag, MaxTagLength)
		}
	}
	return nil
}

// Meta returns the metadata slice of the item.
func (it KnowledgeItem) Meta() Metadata {
	return Metadata{Topic: it.Topic, Weight: it.Weight, Title: it.Title, Tags: it.Tags}
}

// SearchResult is one row of a similarity search, transient per call.
// Score is the store-computed cosine similarity.
type SearchResult struct {
	ID        int64
	Text      string
	Metadata  Metadata
	CreatedAt int32
	Score     float32
}

// CollectionInfo is a read-only snapshot of the active collection.
type CollectionInfo struct {
	Name      string
	Dimension int
	Stats     map[string]string
}
