// Package model defines the entity types shared across the analysis pipeline.
// Each pipeline stage consumes its input type and produces a new value; no
// entity is mutated by more than one stage.
package model

import "strings"

// TextRegion is a single OCR-recognized text span, kept verbatim as the
// engine produced it.
type TextRegion struct {
	Index      int      `json:"index"`
	Text       string   `json:"text"`
	BBox       *[4]int  `json:"bbox,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// TableBlock is a raw table region before normalization. It is consumed by
// the normalizer and discarded.
type TableBlock struct {
	Index int    `json:"index"`
	HTML  string `json:"html_content"`
}

// NormalizedTable is the canonical row/column form of a table block: header
// names post-alias-mapping plus data rows. Row length may differ from the
// header count; ragged OCR rows are preserved as-is.
type NormalizedTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Markdown renders the table in the pipe-delimited form the extraction model
// is prompted with.
func (t *NormalizedTable) Markdown() string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(t.Headers, " | ") + " |\n")
	b.WriteString("|")
	for range t.Headers {
		b.WriteString(" --- |")
	}
	for _, row := range t.Rows {
		b.WriteString("\n| " + strings.Join(row, " | ") + " |")
	}
	return b.String()
}

// TestItem is one structured lab result recovered from a table. Result keeps
// the original symbols (arrows, comparison signs) untouched.
type TestItem struct {
	ItemName       string  `json:"item_name"`
	Result         string  `json:"result"`
	Unit           *string `json:"unit"`
	ReferenceRange *string `json:"reference_range"`
	AbnormalFlag   *string `json:"is_abnormal"`
}

// ReportStats counts what the document yielded.
type ReportStats struct {
	TableBlocks  int `json:"table_blocks"`
	ParsedTables int `json:"parsed_tables"`
	TextBlocks   int `json:"text_blocks"`
}

// StructuredReport aggregates everything extracted from one document.
// Tables preserve the original table-block order.
type StructuredReport struct {
	Tables   [][]TestItem `json:"tables"`
	FullText string       `json:"full_text"`
	Stats    ReportStats  `json:"stats"`
}

// AllItems flattens all table groups in document order.
func (r *StructuredReport) AllItems() []TestItem {
	var items []TestItem
	for _, table := range r.Tables {
		items = append(items, table...)
	}
	return items
}
