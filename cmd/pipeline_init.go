package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/guard"
	"github.com/hxxxer/CheckupAI/internal/ocr"
	"github.com/hxxxer/CheckupAI/internal/pipeline"
	"github.com/hxxxer/CheckupAI/internal/profile"
	"github.com/hxxxer/CheckupAI/internal/retrieval"
	"github.com/hxxxer/CheckupAI/internal/store"
	"github.com/hxxxer/CheckupAI/pkg/embedding"
	"github.com/hxxxer/CheckupAI/pkg/milvus"
	"github.com/hxxxer/CheckupAI/pkg/rerank"
)

// pipelineEnv holds the initialized clients, store, and pipeline shared by
// the analyze/ask/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, the service clients, and the pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	runner, err := ocr.NewPaddleRunner(cfg.OCR)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	gen, err := pipeline.NewGenerator(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	g, err := guard.NewFromConfig(cfg.Guard)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	embedOpts := []embedding.Option{}
	if cfg.Embedding.Model != "" {
		embedOpts = append(embedOpts, embedding.WithModel(cfg.Embedding.Model))
	}
	embedder := embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Key, embedOpts...)

	// Reranking is optional; retrieval falls back to store order without it.
	var reranker rerank.Client
	if cfg.Rerank.Enabled && cfg.Rerank.BaseURL != "" {
		rerankOpts := []rerank.Option{}
		if cfg.Rerank.Model != "" {
			rerankOpts = append(rerankOpts, rerank.WithModel(cfg.Rerank.Model))
		}
		reranker = rerank.NewClient(cfg.Rerank.BaseURL, cfg.Rerank.Key, rerankOpts...)
	} else {
		zap.L().Info("reranker disabled, using vector store order")
	}

	mv := milvus.NewClient(cfg.Milvus.BaseURL, cfg.Milvus.Token)
	retriever := retrieval.New(ctx, embedder, reranker, mv, cfg.Milvus, cfg.Retrieval)
	profiles := profile.NewManager(embedder, mv, cfg.Milvus.ProfileCollection)

	extractor := pipeline.NewTableExtractor(gen, cfg.Extract)
	builder := pipeline.NewReportBuilder(extractor, cfg.Extract)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(runner, builder, retriever, gen, g, st, profiles),
	}, nil
}
