package main

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/pkg/embedding"
	"github.com/hxxxer/CheckupAI/pkg/milvus"
)

const (
	kbChunkSize    = 500
	kbChunkOverlap = 50
	kbEmbedBatch   = 16
	kbMaxTextLen   = 2000
)

var kbDir string

var kbCmd = &cobra.Command{
	Use:   "kb-build",
	Short: "Build the medical knowledge base from a document directory",
	Long:  "Chunks .txt and .md documents, embeds them, and inserts the chunks into the knowledge collection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		embedOpts := []embedding.Option{}
		if cfg.Embedding.Model != "" {
			embedOpts = append(embedOpts, embedding.WithModel(cfg.Embedding.Model))
		}
		embedder := embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Key, embedOpts...)
		mv := milvus.NewClient(cfg.Milvus.BaseURL, cfg.Milvus.Token)

		ok, err := mv.HasCollection(ctx, cfg.Milvus.KnowledgeCollection)
		if err != nil {
			return eris.Wrap(err, "probe knowledge collection")
		}
		if !ok {
			return eris.Errorf("collection %q does not exist, create it first", cfg.Milvus.KnowledgeCollection)
		}

		chunks, err := collectChunks(kbDir)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return eris.Errorf("no .txt or .md documents found under %s", kbDir)
		}
		zap.L().Info("documents chunked", zap.Int("chunks", len(chunks)))

		inserted := 0
		for start := 0; start < len(chunks); start += kbEmbedBatch {
			end := min(start+kbEmbedBatch, len(chunks))
			batch := chunks[start:end]

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			vectors, err := embedder.Embed(ctx, texts)
			if err != nil {
				return eris.Wrapf(err, "embed batch at %d", start)
			}

			rows := make([]map[string]any, len(batch))
			for i, c := range batch {
				meta, _ := json.Marshal(map[string]int{"chunk_id": c.ChunkID})
				rows[i] = map[string]any{
					"text":      c.Text,
					"source":    c.Source,
					"metadata":  string(meta),
					"embedding": vectors[i],
				}
			}
			if err := mv.Insert(ctx, cfg.Milvus.KnowledgeCollection, rows); err != nil {
				return eris.Wrapf(err, "insert batch at %d", start)
			}
			inserted += len(rows)
		}

		zap.L().Info("knowledge base built",
			zap.Int("inserted", inserted),
			zap.String("collection", cfg.Milvus.KnowledgeCollection),
		)
		return nil
	},
}

// docChunk is one embeddable slice of a source document.
type docChunk struct {
	Text    string
	Source  string
	ChunkID int
}

// collectChunks walks dir and chunks every .txt and .md file.
func collectChunks(dir string) ([]docChunk, error) {
	var chunks []docChunk

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		source := filepath.Base(path)
		for i, text := range chunkWords(string(data), kbChunkSize, kbChunkOverlap) {
			chunks = append(chunks, docChunk{Text: text, Source: source, ChunkID: i})
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "walk %s", dir)
	}
	return chunks, nil
}

// chunkWords splits text into overlapping word-count windows. Chunks are
// capped to the collection's VARCHAR limit.
func chunkWords(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for i := 0; i < len(words); i += step {
		end := min(i+size, len(words))
		chunk := strings.Join(words[i:end], " ")
		if runes := []rune(chunk); len(runes) > kbMaxTextLen {
			chunk = string(runes[:kbMaxTextLen])
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func init() {
	kbCmd.Flags().StringVar(&kbDir, "dir", "data/knowledge_base/raw", "directory of source documents")
	rootCmd.AddCommand(kbCmd)
}
