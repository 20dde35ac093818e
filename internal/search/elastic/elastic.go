// Package elastic implements search.Index on Elasticsearch 8 with the official client.
package elastic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	jsoniter "github.com/json-iterator/go"
	"github.com/sakif/snippet-search/internal/apperror"
	"github.com/sakif/snippet-search/internal/search"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// mapping is the logical schema of the index. Ids and filters are keywords (exact match),
// title and code_content are analyzed text.
var mapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"snippet_id":   map[string]any{"type": "keyword"},
			"user_id":      map[string]any{"type": "keyword"},
			"language":     map[string]any{"type": "keyword"},
			"title":        map[string]any{"type": "text"},
			"code_content": map[string]any{"type": "text"},
		},
	},
}

type Config struct {
	Addresses  []string
	Username   string
	Password   string
	Index      string
	MaxRetries int
	// Transport is optional; tests point it at an httptest server.
	Transport http.RoundTripper
}

// Client talks to one index.
type Client struct {
	es     *elasticsearch.Client
	index  string
	logger *slog.Logger
}

var _ search.Index = (*Client)(nil)

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
		Transport:  cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elastic: creating client: %w", err)
	}
	return &Client{es: es, index: cfg.Index, logger: logger}, nil
}

func (c *Client) IndexDocument(ctx context.Context, doc search.Document, waitForVisibility bool) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elastic: encoding document %s: %w", doc.SnippetID, err)
	}

	res, err := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.SnippetID,
		Body:       bytes.NewReader(body),
		Refresh:    refresh(waitForVisibility),
	}.Do(ctx, c.es)
	if err != nil {
		return apperror.IndexUnavailable("indexing document", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperror.IndexUnavailable("indexing document", responseError(res))
	}
	return nil
}

// DeleteDocument removes the document. A 404 means there was nothing to remove and is
// reported as apperror.ErrDocumentNotFound, which callers treat as success.
func (c *Client) DeleteDocument(ctx context.Context, id string, waitForVisibility bool) error {
	res, err := esapi.DeleteRequest{
		Index:      c.index,
		DocumentID: id,
		Refresh:    refresh(waitForVisibility),
	}.Do(ctx, c.es)
	if err != nil {
		return apperror.IndexUnavailable("deleting document", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return apperror.DocumentNotFound(id)
	}
	if res.IsError() {
		return apperror.IndexUnavailable("deleting document", responseError(res))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64         `json:"_score"`
			Source search.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	body, err := json.Marshal(q.Source())
	if err != nil {
		return nil, fmt.Errorf("elastic: encoding query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index:          []string{c.index},
		Body:           bytes.NewReader(body),
		TrackTotalHits: true,
	}.Do(ctx, c.es)
	if err != nil {
		return nil, apperror.IndexUnavailable("searching", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperror.IndexUnavailable("searching", responseError(res))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperror.IndexUnavailable("searching", fmt.Errorf("decoding response: %w", err))
	}

	result := &search.Result{
		TotalFound: parsed.Hits.Total.Value,
		Results:    make([]search.Hit, 0, len(parsed.Hits.Hits)),
	}
	for _, h := range parsed.Hits.Hits {
		result.Results = append(result.Results, search.Hit{Score: h.Score, Document: h.Source})
	}
	return result, nil
}

func (c *Client) Health(ctx context.Context) (string, error) {
	res, err := esapi.ClusterHealthRequest{}.Do(ctx, c.es)
	if err != nil {
		return "", apperror.IndexUnavailable("checking cluster health", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", apperror.IndexUnavailable("checking cluster health", responseError(res))
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "", apperror.IndexUnavailable("checking cluster health", fmt.Errorf("decoding response: %w", err))
	}
	return health.Status, nil
}

func (c *Client) EnsureIndex(ctx context.Context) (bool, error) {
	exists, err := esapi.IndicesExistsRequest{Index: []string{c.index}}.Do(ctx, c.es)
	if err != nil {
		return false, apperror.IndexUnavailable("checking index", err)
	}
	exists.Body.Close()

	switch exists.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, apperror.IndexUnavailable("checking index", fmt.Errorf("unexpected status %d", exists.StatusCode))
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return false, fmt.Errorf("elastic: encoding mapping: %w", err)
	}

	res, err := esapi.IndicesCreateRequest{Index: c.index, Body: bytes.NewReader(body)}.Do(ctx, c.es)
	if err != nil {
		return false, apperror.IndexUnavailable("creating index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return false, apperror.IndexUnavailable("creating index", responseError(res))
	}

	c.logger.Info("search index created", slog.String("index", c.index))
	return true, nil
}

func refresh(waitForVisibility bool) string {
	if waitForVisibility {
		return "wait_for"
	}
	return "false"
}

// responseError keeps the status and the start of the error body, which is where
// Elasticsearch puts the reason.
func responseError(res *esapi.Response) error {
	const maxBody = 512
	b, _ := io.ReadAll(io.LimitReader(res.Body, maxBody))
	return fmt.Errorf("status %d: %s", res.StatusCode, bytes.TrimSpace(b))
}
