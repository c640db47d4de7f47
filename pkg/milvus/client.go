// Package milvus provides a client for the Milvus v2 REST API, covering the
// two operations the pipeline needs: vector search with an optional scalar
// filter, and entity insertion.
package milvus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the vector store operations used by retrieval and profile
// sync.
type Client interface {
	// Search runs an inner-product similarity search and returns hits in
	// descending score order.
	Search(ctx context.Context, req SearchRequest) ([]Hit, error)
	// Insert adds rows to a collection.
	Insert(ctx context.Context, collection string, rows []map[string]any) error
	// HasCollection reports whether a collection exists and is loadable.
	HasCollection(ctx context.Context, collection string) (bool, error)
}

// SearchRequest describes one vector search.
type SearchRequest struct {
	Collection   string
	Vector       []float32
	Limit        int
	Filter       string
	OutputFields []string
}

// Hit is a single search result: the similarity score plus the requested
// output fields.
type Hit struct {
	Score  float64
	Fields map[string]any
}

// String returns the named field as a string, or "" when absent.
func (h Hit) String(field string) string {
	if v, ok := h.Fields[field].(string); ok {
		return v
	}
	return ""
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Milvus REST client.
func NewClient(baseURL, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiResponse is the common Milvus REST envelope.
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func (c *httpClient) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "milvus: marshal request")
	}

	respBody, err := c.retryDo(ctx, path, body)
	if err != nil {
		return nil, err
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, eris.Wrap(err, "milvus: unmarshal envelope")
	}
	if envelope.Code != 0 && envelope.Code != 200 {
		return nil, eris.Errorf("milvus: api error %d: %s", envelope.Code, envelope.Message)
	}

	return envelope.Data, nil
}

func (c *httpClient) retryDo(ctx context.Context, path string, body []byte) ([]byte, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "milvus: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "milvus: send request")
		} else {
			respBody, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, eris.Wrap(readErr, "milvus: read response")
			}

			if resp.StatusCode == http.StatusOK {
				return respBody, nil
			}

			lastErr = eris.Errorf("milvus: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if !retryableStatusCode(resp.StatusCode) {
				return nil, lastErr
			}
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return nil, lastErr
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	payload := map[string]any{
		"collectionName": req.Collection,
		"data":           [][]float32{req.Vector},
		"annsField":      "embedding",
		"limit":          req.Limit,
		"outputFields":   req.OutputFields,
		"searchParams": map[string]any{
			"metricType": "IP",
			"params":     map[string]any{"nprobe": 10},
		},
	}
	if req.Filter != "" {
		payload["filter"] = req.Filter
	}

	data, err := c.post(ctx, "/v2/vectordb/entities/search", payload)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrap(err, "milvus: unmarshal search results")
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		score, _ := row["distance"].(float64)
		delete(row, "distance")
		hits = append(hits, Hit{Score: score, Fields: row})
	}
	return hits, nil
}

func (c *httpClient) Insert(ctx context.Context, collection string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := c.post(ctx, "/v2/vectordb/entities/insert", map[string]any{
		"collectionName": collection,
		"data":           rows,
	})
	return err
}

func (c *httpClient) HasCollection(ctx context.Context, collection string) (bool, error) {
	data, err := c.post(ctx, "/v2/vectordb/collections/has", map[string]any{
		"collectionName": collection,
	})
	if err != nil {
		return false, err
	}

	var result struct {
		Has bool `json:"has"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false, eris.Wrap(err, "milvus: unmarshal has-collection result")
	}
	return result.Has, nil
}
