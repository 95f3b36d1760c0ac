package milvus

import (
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/vincent-zhou/knowbase/internal/domain"
)

// insertColumns converts knowledge items into column-based insert data. The
// id column is omitted; the primary key is auto-generated by the engine.
func insertColumns(items []domain.KnowledgeItem, dim int) []column.Column {
	n := len(items)
	vectors := make([][]float32, n)
	texts := make([]string, n)
	topics := make([]string, n)
	weights := make([]float32, n)
	createdAts := make([]int32, n)
	titles := make([]string, n)
	tags := make([][]string, n)

	for i, it := range items {
		vectors[i] = it.Vector
		texts[i] = it.Text
		topics[i] = it.Topic
		weights[i] = it.Weight
		createdAts[i] = it.CreatedAt
		titles[i] = it.Title
		if it.Tags == nil {
			tags[i] = []string{}
		} else {
			tags[i] = it.Tags
		}
	}

	return []column.Column{
		column.NewColumnFloatVector(fieldVector, dim, vectors),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldTopic, topics),
		column.NewColumnFloat(fieldWeight, weights),
		column.NewColumnInt32(fieldCreatedAt, createdAts),
		column.NewColumnVarChar(fieldTitle, titles),
		column.NewColumnVarCharArray(fieldTags, tags),
	}
}

// resultSetRows flattens one search result set into domain search results.
// Output fields the caller chose not to request come back as zero values.
func resultSetRows(rs milvusclient.ResultSet) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, rs.ResultCount)

	textCol := rs.GetColumn(fieldText)
	topicCol := rs.GetColumn(fieldTopic)
	weightCol := rs.GetColumn(fieldWeight)
	createdCol := rs.GetColumn(fieldCreatedAt)
	titleCol := rs.GetColumn(fieldTitle)
	tagsCol := rs.GetColumn(fieldTags)

	for i := 0; i < rs.ResultCount; i++ {
		id, err := rs.IDs.GetAsInt64(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read result id at %d: %w", i, err)
		}

		results = append(results, domain.SearchResult{
			ID:   id,
			Text: columnString(textCol, i),
			Metadata: domain.Metadata{
				Topic:  columnString(topicCol, i),
				Weight: columnFloat32(weightCol, i),
				Title:  columnString(titleCol, i),
				Tags:   columnStrings(tagsCol, i),
			},
			CreatedAt: columnInt32(createdCol, i),
			Score:     rs.Scores[i],
		})
	}

	return results, nil
}

func columnString(col column.Column, i int) string {
	if col == nil {
		return ""
	}
	v, err := col.GetAsString(i)
	if err != nil {
		return ""
	}
	return v
}

func columnFloat32(col column.Column, i int) float32 {
	if col == nil {
		return 0
	}
	v, err := col.GetAsDouble(i)
	if err != nil {
		return 0
	}
	return float32(v)
}

func columnInt32(col column.Column, i int) int32 {
	if col == nil {
		return 0
	}
	v, err := col.GetAsInt64(i)
	if err != nil {
		return 0
	}
	return int32(v)
}

func columnStrings(col column.Column, i int) []string {
	if col == nil {
		return nil
	}
	v, err := col.Get(i)
	if err != nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case [][]byte:
		out := make([]string, len(t))
		for j, b := range t {
			out[j] = string(b)
		}
		return out
	default:
		return nil
	}
}
