package search

import (
	"errors"
	"strconv"
	"strings"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// ErrUnscopedQuery is returned by Build when no user id is given. There is no way to build a
// Query without the owner filter.
var ErrUnscopedQuery = errors.New("search: query without user scope")

// Request is a user's search as it arrives from the API.
type Request struct {
	UserID   string
	Text     string
	Language string
	Limit    int
	Offset   int
}

// Field is a searchable field with its relevance weight.
type Field struct {
	Name  string
	Boost float64
}

func (f Field) String() string {
	if f.Boost == 0 || f.Boost == 1 {
		return f.Name
	}
	return f.Name + "^" + strconv.FormatFloat(f.Boost, 'f', -1, 64)
}

// Term is an exact-match filter. Filters never contribute to the score.
type Term struct {
	Field string
	Value string
}

// Query is a translated search: fuzzy text matching over weighted fields, restricted by term
// filters, paged by From/Size. Use Build to get one.
type Query struct {
	Text      string
	Fields    []Field
	Fuzziness string
	Filters   []Term
	From      int
	Size      int
}

// searchFields: a title match weighs twice a code match.
var searchFields = []Field{
	{Name: "title", Boost: 2},
	{Name: "code_content", Boost: 1},
}

// Build translates a Request. The user_id filter always comes first; the language filter is
// added only when a language was given.
func Build(req Request) (Query, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return Query{}, ErrUnscopedQuery
	}

	filters := []Term{{Field: "user_id", Value: userID}}
	if req.Language != "" {
		filters = append(filters, Term{Field: "language", Value: req.Language})
	}

	size := req.Limit
	switch {
	case size <= 0:
		size = DefaultSize
	case size > MaxSize:
		size = MaxSize
	}

	return Query{
		Text:      req.Text,
		Fields:    append([]Field(nil), searchFields...),
		Fuzziness: "AUTO",
		Filters:   filters,
		From:      max(req.Offset, 0),
		Size:      size,
	}, nil
}

// Source renders the query in the engine's request body format:
//
//	{"query":{"bool":{"must":[{"multi_match":{...}}],"filter":[{"term":{...}}]}},"from":0,"size":20}
func (q Query) Source() map[string]any {
	fields := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		fields[i] = f.String()
	}

	filter := make([]any, len(q.Filters))
	for i, t := range q.Filters {
		filter[i] = map[string]any{"term": map[string]any{t.Field: t.Value}}
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"multi_match": map[string]any{
						"query":     q.Text,
						"fields":    fields,
						"fuzziness": q.Fuzziness,
					}},
				},
				"filter": filter,
			},
		},
		"from": q.From,
		"size": q.Size,
	}
}
