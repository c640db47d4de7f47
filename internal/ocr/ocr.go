// Package ocr wraps the PaddleOCR PP-StructureV3 layout engine, which runs
// as a Python subprocess and writes its results as JSON files.
package ocr

import "context"

// Block is one classified region emitted by the layout engine.
type Block struct {
	Label   string `json:"block_label"`
	Content string `json:"block_content"`
}

// Page holds the ordered blocks recognized on a single page image.
type Page struct {
	Blocks []Block
}

// Runner processes a page image and returns the recognized pages.
type Runner interface {
	Process(ctx context.Context, imagePath string) ([]Page, error)
}
