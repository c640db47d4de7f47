package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerank(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		want    []float64
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{"results": [
				{"index": 0, "relevance_score": 0.12},
				{"index": 1, "relevance_score": 0.98}
			]}`,
			want: []float64{0.12, 0.98},
		},
		{
			name:   "sorted_by_score_restored_to_document_order",
			status: http.StatusOK,
			body: `{"results": [
				{"index": 1, "relevance_score": 0.98},
				{"index": 0, "relevance_score": 0.12}
			]}`,
			want: []float64{0.12, 0.98},
		},
		{
			name:    "count_mismatch",
			status:  http.StatusOK,
			body:    `{"results": [{"index": 0, "relevance_score": 0.5}]}`,
			wantErr: "got 1 scores for 2 documents",
		},
		{
			name:    "unprocessable_request",
			status:  http.StatusUnprocessableEntity,
			body:    `{"error": "query too long"}`,
			wantErr: "unexpected status 422",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/rerank", r.URL.Path)

				var req rerankRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, defaultModel, req.Model)
				assert.Equal(t, "血糖偏高怎么办", req.Query)
				assert.Len(t, req.Documents, 2)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "")

			scores, err := client.Rerank(context.Background(), "血糖偏高怎么办",
				[]string{"高血压饮食指南", "空腹血糖的正常范围"})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, scores)
		})
	}
}

func TestRerank_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error": "upstream timeout"}`))
			return
		}
		_, _ = w.Write([]byte(`{"results": [{"index": 0, "relevance_score": 0.7}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	scores, err := client.Rerank(context.Background(), "血糖偏高怎么办", []string{"空腹血糖的正常范围"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.7}, scores)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRerank_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "missing query"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Rerank(context.Background(), "血糖偏高怎么办", []string{"空腹血糖的正常范围"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRerank_EmptyDocuments(t *testing.T) {
	client := NewClient("http://unused", "")
	scores, err := client.Rerank(context.Background(), "任意问题", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}
