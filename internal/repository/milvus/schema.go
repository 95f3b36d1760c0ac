package milvus

import (
	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/vincent-zhou/knowbase/internal/domain"
)

// Field names of the fixed knowledge collection schema.
const (
	fieldID        = "id"
	fieldVector    = "vector"
	fieldText      = "text"
	fieldTopic     = "topic"
	fieldWeight    = "weight"
	fieldCreatedAt = "created_at"
	fieldTitle     = "title"
	fieldTags      = "tags"
)

// defaultOutputFields are the payload fields returned by a search when the
// caller does not specify its own list. The engine-assigned id and the
// similarity score are always returned on top of these.
func defaultOutputFields() []string {
	return []string{fieldText, fieldTopic, fieldWeight, fieldCreatedAt, fieldTitle, fieldTags}
}

// collectionSchema defines the fixed knowledge collection schema: an
// auto-generated int64 primary key, one float vector of the given dimension,
// and the metadata payload fields. Not configurable per call.
func collectionSchema(name string, dim int, description string) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription(description).
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(entity.NewField().
			WithName(fieldVector).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim))).
		WithField(entity.NewField().
			WithName(fieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(domain.MaxTextLength)).
		WithField(entity.NewField().
			WithName(fieldTopic).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(domain.MaxTopicLength)).
		WithField(entity.NewField().
			WithName(fieldWeight).
			WithDataType(entity.FieldTypeFloat)).
		WithField(entity.NewField().
			WithName(fieldCreatedAt).
			WithDataType(entity.FieldTypeInt32)).
		WithField(entity.NewField().
			WithName(fieldTitle).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(domain.MaxTitleLength)).
		WithField(entity.NewField().
			WithName(fieldTags).
			WithDataType(entity.FieldTypeArray).
			WithElementType(entity.FieldTypeVarChar).
			WithMaxCapacity(domain.MaxTagCount).
			WithMaxLength(domain.MaxTagLength))
}
