// Package rerank provides a client for a cross-encoder reranking service
// (TEI-style POST /rerank).
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultModel = "BAAI/bge-reranker-v2-m3"

// Client scores (query, document) pairs.
type Client interface {
	// Rerank returns one normalized relevance score per document, in document
	// order.
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

// rerankRequest is the request body for POST /rerank.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

// rerankResponse is the response from POST /rerank.
type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// Option configures the client.
type Option func(*httpClient)

// WithModel overrides the default model name.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a rerank service client.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   defaultModel,
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

func (c *httpClient) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: documents})
	if err != nil {
		return nil, eris.Wrap(err, "rerank: marshal request")
	}

	respBody, err := c.retryDo(ctx, body)
	if err != nil {
		return nil, err
	}

	var result rerankResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "rerank: unmarshal response")
	}

	if len(result.Results) != len(documents) {
		return nil, eris.Errorf("rerank: got %d scores for %d documents", len(result.Results), len(documents))
	}

	// Results come back sorted by score; restore document order.
	scores := make([]float64, len(documents))
	for _, r := range result.Results {
		if r.Index < 0 || r.Index >= len(scores) {
			return nil, eris.Errorf("rerank: index %d out of range", r.Index)
		}
		scores[r.Index] = r.Score
	}
	return scores, nil
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func (c *httpClient) retryDo(ctx context.Context, body []byte) ([]byte, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "rerank: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "rerank: send request")
		} else {
			respBody, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, eris.Wrap(readErr, "rerank: read response")
			}

			if resp.StatusCode == http.StatusOK {
				return respBody, nil
			}

			lastErr = eris.Errorf("rerank: unexpected status %d: %s", resp.StatusCode, string(respBody))
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
