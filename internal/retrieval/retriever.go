// Package retrieval implements dual-path context retrieval: a knowledge-base
// path over general medical passages and a profile path over one user's
// history. The two paths are always returned as separate ranked lists.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hxxxer/CheckupAI/internal/config"
	"github.com/hxxxer/CheckupAI/internal/model"
	"github.com/hxxxer/CheckupAI/pkg/embedding"
	"github.com/hxxxer/CheckupAI/pkg/milvus"
	"github.com/hxxxer/CheckupAI/pkg/rerank"
)

// Retriever performs dual-path retrieval with optional over-fetch-then-rerank.
// Collection availability is probed once at construction; a path whose
// collection is missing returns empty results instead of failing the call.
type Retriever struct {
	embedder embedding.Client
	reranker rerank.Client // nil disables reranking
	store    milvus.Client

	knowledgeCollection string
	profileCollection   string
	knowledgeAvailable  bool
	profileAvailable    bool

	knowledgeK      int
	profileK        int
	overFetchFactor int
}

// New creates a Retriever. A reranker of nil turns off the rerank pass.
func New(ctx context.Context, embedder embedding.Client, reranker rerank.Client, store milvus.Client, milvusCfg config.MilvusConfig, cfg config.RetrievalConfig) *Retriever {
	r := &Retriever{
		embedder:            embedder,
		reranker:            reranker,
		store:               store,
		knowledgeCollection: milvusCfg.KnowledgeCollection,
		profileCollection:   milvusCfg.ProfileCollection,
		knowledgeK:          cfg.KnowledgeK,
		profileK:            cfg.ProfileK,
		overFetchFactor:     cfg.OverFetchFactor,
	}
	if r.knowledgeK <= 0 {
		r.knowledgeK = 5
	}
	if r.profileK <= 0 {
		r.profileK = 3
	}
	if r.overFetchFactor <= 0 {
		r.overFetchFactor = 3
	}

	r.knowledgeAvailable = r.probe(ctx, r.knowledgeCollection)
	r.profileAvailable = r.probe(ctx, r.profileCollection)

	return r
}

func (r *Retriever) probe(ctx context.Context, collection string) bool {
	ok, err := r.store.HasCollection(ctx, collection)
	if err != nil {
		zap.L().Warn("collection probe failed, path disabled",
			zap.String("collection", collection), zap.Error(err))
		return false
	}
	if !ok {
		zap.L().Warn("collection missing, path disabled",
			zap.String("collection", collection))
	}
	return ok
}

// fetchLimit is the candidate count requested from the vector store. With a
// reranker active the store is over-fetched so the reranker has a wider pool
// to reorder; without one the store's own ranking is final and k suffices.
func (r *Retriever) fetchLimit(k int) int {
	if r.reranker == nil {
		return k
	}
	return k * r.overFetchFactor
}

// Retrieve runs both paths for a query. The profile path only runs when
// userID is non-empty. A single path failing degrades to an empty list for
// that path; only an embedding failure fails the call, since neither path
// can proceed without the query vector.
func (r *Retriever) Retrieve(ctx context.Context, query, userID string) (model.RetrievalResult, error) {
	return r.retrieve(ctx, query, userID, nil)
}

// RetrieveWithThreshold is Retrieve with a minimum rerank score: candidates
// scoring below minScore are dropped before the k-limit, so a query with no
// good match yields an empty list instead of forced top-k padding.
func (r *Retriever) RetrieveWithThreshold(ctx context.Context, query, userID string, minScore float64) (model.RetrievalResult, error) {
	return r.retrieve(ctx, query, userID, &minScore)
}

func (r *Retriever) retrieve(ctx context.Context, query, userID string, minScore *float64) (model.RetrievalResult, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return model.RetrievalResult{}, eris.Wrap(err, "retrieval: embed query")
	}
	if len(vectors) == 0 {
		return model.RetrievalResult{}, eris.New("retrieval: embedder returned no vector")
	}
	vector := vectors[0]

	var result model.RetrievalResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := r.searchKnowledge(gctx, query, vector, minScore)
		if err != nil {
			zap.L().Warn("knowledge path failed", zap.Error(err))
			return nil
		}
		result.Knowledge = docs
		return nil
	})
	if userID != "" {
		g.Go(func() error {
			docs, err := r.searchProfile(gctx, query, vector, userID, minScore)
			if err != nil {
				zap.L().Warn("profile path failed",
					zap.String("user_id", userID), zap.Error(err))
				return nil
			}
			result.Profile = docs
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

func (r *Retriever) searchKnowledge(ctx context.Context, query string, vector []float32, minScore *float64) ([]model.RetrievedDocument, error) {
	if !r.knowledgeAvailable {
		return nil, nil
	}

	hits, err := r.store.Search(ctx, milvus.SearchRequest{
		Collection:   r.knowledgeCollection,
		Vector:       vector,
		Limit:        r.fetchLimit(r.knowledgeK),
		OutputFields: []string{"text", "source", "metadata"},
	})
	if err != nil {
		return nil, err
	}

	docs := make([]model.RetrievedDocument, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, model.RetrievedDocument{
			Text:     hit.String("text"),
			Source:   hit.String("source"),
			Metadata: hit.String("metadata"),
			Score:    hit.Score,
		})
	}

	return r.finalize(ctx, query, docs, r.knowledgeK, minScore)
}

func (r *Retriever) searchProfile(ctx context.Context, query string, vector []float32, userID string, minScore *float64) ([]model.RetrievedDocument, error) {
	if !r.profileAvailable {
		return nil, nil
	}

	hits, err := r.store.Search(ctx, milvus.SearchRequest{
		Collection:   r.profileCollection,
		Vector:       vector,
		Limit:        r.fetchLimit(r.profileK),
		Filter:       fmt.Sprintf("user_id == %q", userID),
		OutputFields: []string{"user_id", "text", "timestamp", "report_type"},
	})
	if err != nil {
		return nil, err
	}

	docs := make([]model.RetrievedDocument, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, model.RetrievedDocument{
			Text:       hit.String("text"),
			Timestamp:  hit.String("timestamp"),
			ReportType: hit.String("report_type"),
			Score:      hit.Score,
		})
	}

	return r.finalize(ctx, query, docs, r.profileK, minScore)
}

// finalize applies the rerank pass when configured, then the threshold
// filter, then the k-limit. Reranking reorders candidates and attaches
// rerank scores; it never changes the candidate set or the raw scores. A
// rerank failure degrades to the store's own ranking.
func (r *Retriever) finalize(ctx context.Context, query string, docs []model.RetrievedDocument, k int, minScore *float64) ([]model.RetrievedDocument, error) {
	if len(docs) == 0 {
		return docs, nil
	}

	if r.reranker != nil {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Text
		}
		scores, err := r.reranker.Rerank(ctx, query, texts)
		if err != nil || len(scores) != len(docs) {
			zap.L().Warn("rerank pass failed, keeping store order", zap.Error(err))
		} else {
			for i := range docs {
				score := scores[i]
				docs[i].RerankScore = &score
			}
			sort.SliceStable(docs, func(i, j int) bool {
				return *docs[i].RerankScore > *docs[j].RerankScore
			})
		}
	}

	if minScore != nil {
		filtered := docs[:0]
		for _, d := range docs {
			if rankScore(d) >= *minScore {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}

	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// rankScore is the score the threshold applies to: the rerank score when one
// was assigned, the raw similarity otherwise.
func rankScore(d model.RetrievedDocument) float64 {
	if d.RerankScore != nil {
		return *d.RerankScore
	}
	return d.Score
}
