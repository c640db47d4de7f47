package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hxxxer/CheckupAI/internal/config"
	"github.com/hxxxer/CheckupAI/pkg/milvus"
	"github.com/hxxxer/CheckupAI/pkg/rerank"
)

var (
	testMilvusCfg = config.MilvusConfig{
		KnowledgeCollection: "medical_knowledge",
		ProfileCollection:   "user_profiles",
	}
	testRetrievalCfg = config.RetrievalConfig{
		KnowledgeK:      5,
		ProfileK:        3,
		OverFetchFactor: 3,
	}
)

func knowledgeHits(texts ...string) []milvus.Hit {
	hits := make([]milvus.Hit, 0, len(texts))
	for i, text := range texts {
		hits = append(hits, milvus.Hit{
			Score: 1.0 - float64(i)*0.1,
			Fields: map[string]any{
				"text":     text,
				"source":   "kb.md",
				"metadata": "{}",
			},
		})
	}
	return hits
}

func expectProbes(store *mockMilvus, knowledge, profile bool) {
	store.On("HasCollection", mock.Anything, "medical_knowledge").Return(knowledge, nil)
	store.On("HasCollection", mock.Anything, "user_profiles").Return(profile, nil)
}

func expectQueryEmbed(embedder *mockEmbedder) {
	embedder.On("Embed", mock.Anything, mock.Anything).
		Return([][]float32{{0.1, 0.2, 0.3}}, nil)
}

func TestRetrieve_OverFetchWithReranker(t *testing.T) {
	embedder := &mockEmbedder{}
	reranker := &mockReranker{}
	store := &mockMilvus{}

	expectProbes(store, true, false)
	expectQueryEmbed(embedder)

	// k=5 with an active reranker must request exactly 15 candidates.
	store.On("Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "medical_knowledge" && req.Limit == 15
	})).Return(knowledgeHits("a", "b", "c"), nil)

	reranker.On("Rerank", mock.Anything, "血压偏高怎么办", []string{"a", "b", "c"}).
		Return([]float64{0.2, 0.9, 0.5}, nil)

	r := New(context.Background(), embedder, reranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.Retrieve(context.Background(), "血压偏高怎么办", "")
	require.NoError(t, err)

	store.AssertExpectations(t)
	reranker.AssertExpectations(t)

	// Reranking reorders but never changes the candidate set, and raw
	// scores survive untouched.
	require.Len(t, result.Knowledge, 3)
	assert.Equal(t, "b", result.Knowledge[0].Text)
	assert.Equal(t, "c", result.Knowledge[1].Text)
	assert.Equal(t, "a", result.Knowledge[2].Text)
	assert.InDelta(t, 0.9, result.Knowledge[0].Score, 1e-9)
	assert.InDelta(t, 0.8, result.Knowledge[1].Score, 1e-9)
	assert.InDelta(t, 1.0, result.Knowledge[2].Score, 1e-9)
	require.NotNil(t, result.Knowledge[0].RerankScore)
	assert.InDelta(t, 0.9, *result.Knowledge[0].RerankScore, 1e-9)
}

func TestRetrieve_NoRerankerFetchesK(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockMilvus{}

	expectProbes(store, true, false)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Limit == 5
	})).Return(knowledgeHits("a", "b"), nil)

	var noReranker rerank.Client
	r := New(context.Background(), embedder, noReranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.Retrieve(context.Background(), "question", "")
	require.NoError(t, err)

	store.AssertExpectations(t)
	require.Len(t, result.Knowledge, 2)
	assert.Nil(t, result.Knowledge[0].RerankScore)
}

func TestRetrieve_ProfilePathFiltersByUser(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockMilvus{}

	expectProbes(store, true, true)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "medical_knowledge"
	})).Return(knowledgeHits("kb"), nil)

	store.On("Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "user_profiles" &&
			req.Filter == `user_id == "u-42"` &&
			req.Limit == 3
	})).Return([]milvus.Hit{
		{Score: 0.8, Fields: map[string]any{
			"user_id":     "u-42",
			"text":        "去年血糖偏高",
			"timestamp":   "2025-03-01",
			"report_type": "checkup",
		}},
	}, nil)

	var noReranker rerank.Client
	r := New(context.Background(), embedder, noReranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.Retrieve(context.Background(), "血糖", "u-42")
	require.NoError(t, err)

	store.AssertExpectations(t)
	require.Len(t, result.Profile, 1)
	assert.Equal(t, "去年血糖偏高", result.Profile[0].Text)
	assert.Equal(t, "checkup", result.Profile[0].ReportType)
}

func TestRetrieve_NoUserSkipsProfilePath(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockMilvus{}

	expectProbes(store, true, true)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "medical_knowledge"
	})).Return(knowledgeHits("kb"), nil)

	var noReranker rerank.Client
	r := New(context.Background(), embedder, noReranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.Retrieve(context.Background(), "question", "")
	require.NoError(t, err)

	assert.Empty(t, result.Profile)
	store.AssertNotCalled(t, "Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "user_profiles"
	}))
}

func TestRetrieve_MissingCollectionYieldsEmptyPath(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockMilvus{}

	expectProbes(store, false, true)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "user_profiles"
	})).Return([]milvus.Hit{}, nil)

	var noReranker rerank.Client
	r := New(context.Background(), embedder, noReranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.Retrieve(context.Background(), "question", "u-1")
	require.NoError(t, err)

	assert.Empty(t, result.Knowledge)
	store.AssertNotCalled(t, "Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "medical_knowledge"
	}))
}

func TestRetrieve_PathFailureIsIsolated(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockMilvus{}

	expectProbes(store, true, true)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "medical_knowledge"
	})).Return(nil, assert.AnError)

	store.On("Search", mock.Anything, mock.MatchedBy(func(req milvus.SearchRequest) bool {
		return req.Collection == "user_profiles"
	})).Return([]milvus.Hit{
		{Score: 0.7, Fields: map[string]any{"user_id": "u-1", "text": "history"}},
	}, nil)

	var noReranker rerank.Client
	r := New(context.Background(), embedder, noReranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.Retrieve(context.Background(), "question", "u-1")
	require.NoError(t, err)

	assert.Empty(t, result.Knowledge)
	require.Len(t, result.Profile, 1)
}

func TestRetrieve_EmbedFailureFailsCall(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockMilvus{}

	expectProbes(store, true, true)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	var noReranker rerank.Client
	r := New(context.Background(), embedder, noReranker, store, testMilvusCfg, testRetrievalCfg)
	_, err := r.Retrieve(context.Background(), "question", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}

func TestRetrieveWithThreshold_FiltersLowScores(t *testing.T) {
	embedder := &mockEmbedder{}
	reranker := &mockReranker{}
	store := &mockMilvus{}

	expectProbes(store, true, false)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.Anything).
		Return(knowledgeHits("a", "b", "c"), nil)
	reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).
		Return([]float64{0.9, 0.3, 0.6}, nil)

	r := New(context.Background(), embedder, reranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.RetrieveWithThreshold(context.Background(), "question", "", 0.5)
	require.NoError(t, err)

	require.Len(t, result.Knowledge, 2)
	assert.Equal(t, "a", result.Knowledge[0].Text)
	assert.Equal(t, "c", result.Knowledge[1].Text)
}

func TestRetrieveWithThreshold_NoGoodMatchYieldsEmpty(t *testing.T) {
	embedder := &mockEmbedder{}
	reranker := &mockReranker{}
	store := &mockMilvus{}

	expectProbes(store, true, false)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.Anything).
		Return(knowledgeHits("a", "b"), nil)
	reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).
		Return([]float64{0.1, 0.2}, nil)

	r := New(context.Background(), embedder, reranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.RetrieveWithThreshold(context.Background(), "question", "", 0.5)
	require.NoError(t, err)

	assert.Empty(t, result.Knowledge)
}

func TestRetrieve_RerankFailureKeepsStoreOrder(t *testing.T) {
	embedder := &mockEmbedder{}
	reranker := &mockReranker{}
	store := &mockMilvus{}

	expectProbes(store, true, false)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.Anything).
		Return(knowledgeHits("a", "b"), nil)
	reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	r := New(context.Background(), embedder, reranker, store, testMilvusCfg, testRetrievalCfg)
	result, err := r.Retrieve(context.Background(), "question", "")
	require.NoError(t, err)

	require.Len(t, result.Knowledge, 2)
	assert.Equal(t, "a", result.Knowledge[0].Text)
	assert.Nil(t, result.Knowledge[0].RerankScore)
}

func TestRetrieve_TruncatesToK(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockMilvus{}

	expectProbes(store, true, false)
	expectQueryEmbed(embedder)

	store.On("Search", mock.Anything, mock.Anything).
		Return(knowledgeHits("a", "b", "c", "d"), nil)

	var noReranker rerank.Client
	cfg := testRetrievalCfg
	cfg.KnowledgeK = 2
	r := New(context.Background(), embedder, noReranker, store, testMilvusCfg, cfg)
	result, err := r.Retrieve(context.Background(), "question", "")
	require.NoError(t, err)

	assert.Len(t, result.Knowledge, 2)
}
