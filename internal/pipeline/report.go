package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hxxxer/CheckupAI/internal/config"
	"github.com/hxxxer/CheckupAI/internal/model"
	"github.com/hxxxer/CheckupAI/internal/ocr"
)

// ReportBuilder turns raw OCR pages into a StructuredReport: classify
// blocks, normalize and extract each table, assemble text and stats.
type ReportBuilder struct {
	extractor     *TableExtractor
	maxConcurrent int
}

// NewReportBuilder creates a ReportBuilder from config.
func NewReportBuilder(extractor *TableExtractor, cfg config.ExtractConfig) *ReportBuilder {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &ReportBuilder{extractor: extractor, maxConcurrent: maxConcurrent}
}

// Build processes all pages of one document. Tables are extracted
// concurrently but the output preserves block order. A single table failing
// to normalize or parse is logged and skipped; its siblings still go
// through. An unreachable generation backend aborts the whole build since
// every remaining table would fail the same way.
func (b *ReportBuilder) Build(ctx context.Context, pages []ocr.Page) (*model.StructuredReport, error) {
	if len(pages) == 0 {
		return nil, eris.New("report: empty ocr output")
	}

	texts, tableBlocks, imageCount := SplitBlocks(pages)
	zap.L().Info("classified blocks",
		zap.Int("text", len(texts)),
		zap.Int("table", len(tableBlocks)),
		zap.Int("image", imageCount))

	results := make([][]model.TestItem, len(tableBlocks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxConcurrent)
	for i, block := range tableBlocks {
		g.Go(func() error {
			table, err := NormalizeTable(block)
			if err != nil {
				zap.L().Warn("table normalization failed",
					zap.Int("block", block.Index), zap.Error(err))
				return nil
			}
			if table == nil {
				zap.L().Debug("table block yielded no rows", zap.Int("block", block.Index))
				return nil
			}

			items, err := b.extractor.Extract(gctx, table)
			if err != nil {
				if eris.Is(err, ErrUnavailable) {
					return err
				}
				zap.L().Warn("table extraction failed",
					zap.Int("block", block.Index), zap.Error(err))
				return nil
			}
			if len(items) > 0 {
				results[i] = items
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &model.StructuredReport{
		FullText: JoinText(texts),
		Stats: model.ReportStats{
			TableBlocks: len(tableBlocks),
			TextBlocks:  len(texts),
		},
	}
	for _, items := range results {
		if items == nil {
			continue
		}
		report.Tables = append(report.Tables, items)
		report.Stats.ParsedTables++
	}

	return report, nil
}
