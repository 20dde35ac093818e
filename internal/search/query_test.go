package search

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		wantFilters []Term
		wantSize    int
		wantFrom    int
	}{
		{
			name:        "user filter only",
			req:         Request{UserID: "u1", Text: "sort"},
			wantFilters: []Term{{Field: "user_id", Value: "u1"}},
			wantSize:    DefaultSize,
		},
		{
			name: "language adds a second filter",
			req:  Request{UserID: "u1", Text: "sort", Language: "go"},
			wantFilters: []Term{
				{Field: "user_id", Value: "u1"},
				{Field: "language", Value: "go"},
			},
			wantSize: DefaultSize,
		},
		{
			name:        "limit above max is capped",
			req:         Request{UserID: "u1", Text: "sort", Limit: 500, Offset: 40},
			wantFilters: []Term{{Field: "user_id", Value: "u1"}},
			wantSize:    MaxSize,
			wantFrom:    40,
		},
		{
			name:        "negative offset starts at zero",
			req:         Request{UserID: "u1", Text: "sort", Limit: 5, Offset: -3},
			wantFilters: []Term{{Field: "user_id", Value: "u1"}},
			wantSize:    5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Build(tt.req)
			require.NoError(t, err)

			assert.Equal(t, tt.req.Text, q.Text)
			assert.Equal(t, "AUTO", q.Fuzziness)
			assert.Equal(t, tt.wantFilters, q.Filters)
			assert.Equal(t, tt.wantSize, q.Size)
			assert.Equal(t, tt.wantFrom, q.From)
		})
	}
}

func TestBuild_RequiresUser(t *testing.T) {
	for _, userID := range []string{"", "   "} {
		_, err := Build(Request{UserID: userID, Text: "sort", Language: "go"})
		assert.ErrorIs(t, err, ErrUnscopedQuery)
	}
}

func TestBuild_FieldsAreWeighted(t *testing.T) {
	q, err := Build(Request{UserID: "u1", Text: "x"})
	require.NoError(t, err)

	names := []string{}
	for _, f := range q.Fields {
		names = append(names, f.String())
	}
	assert.Equal(t, []string{"title^2", "code_content"}, names)
}

func TestQuerySource(t *testing.T) {
	q, err := Build(Request{UserID: "u1", Text: "binary search", Language: "python"})
	require.NoError(t, err)

	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(q.Source())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"query": {
			"bool": {
				"must": [
					{"multi_match": {"query": "binary search", "fields": ["title^2", "code_content"], "fuzziness": "AUTO"}}
				],
				"filter": [
					{"term": {"user_id": "u1"}},
					{"term": {"language": "python"}}
				]
			}
		},
		"from": 0,
		"size": 20
	}`, string(body))
}
