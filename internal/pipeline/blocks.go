// Package pipeline implements the checkup analysis stages: block
// classification, table normalization, structured extraction, report
// assembly, and the orchestrator tying them to retrieval and the risk guard.
package pipeline

import (
	"strings"

	"github.com/hxxxer/CheckupAI/internal/model"
	"github.com/hxxxer/CheckupAI/internal/ocr"
)

// SplitBlocks partitions recognized blocks into text regions and raw table
// blocks, preserving reading order with a global block index. Image blocks
// carry no usable text and are only counted.
func SplitBlocks(pages []ocr.Page) (texts []model.TextRegion, tables []model.TableBlock, imageCount int) {
	idx := 0
	for _, page := range pages {
		for _, b := range page.Blocks {
			switch b.Label {
			case "table":
				tables = append(tables, model.TableBlock{Index: idx, HTML: b.Content})
				idx++
			case "image":
				imageCount++
				idx++
			case "text":
				text := strings.TrimSpace(b.Content)
				if text != "" {
					texts = append(texts, model.TextRegion{Index: idx, Text: text})
				}
				idx++
			default:
				// Headers, footers, formulas and other labels are dropped,
				// but still occupy a slot in the reading order.
				idx++
			}
		}
	}
	return texts, tables, imageCount
}

// JoinText concatenates text regions into the document's running text.
func JoinText(regions []model.TextRegion) string {
	parts := make([]string, 0, len(regions))
	for _, r := range regions {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n")
}
