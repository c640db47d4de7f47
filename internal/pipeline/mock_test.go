package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hxxxer/CheckupAI/internal/ocr"
	"github.com/hxxxer/CheckupAI/pkg/milvus"
)

// --- OCR Runner Mock ---

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Process(ctx context.Context, imagePath string) ([]ocr.Page, error) {
	args := m.Called(ctx, imagePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ocr.Page), args.Error(1)
}

// --- Generator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

// --- Embedding Mock ---

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// --- Milvus Mock ---

type mockMilvus struct {
	mock.Mock
}

func (m *mockMilvus) Search(ctx context.Context, req milvus.SearchRequest) ([]milvus.Hit, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]milvus.Hit), args.Error(1)
}

func (m *mockMilvus) Insert(ctx context.Context, collection string, rows []map[string]any) error {
	args := m.Called(ctx, collection, rows)
	return args.Error(0)
}

func (m *mockMilvus) HasCollection(ctx context.Context, collection string) (bool, error) {
	args := m.Called(ctx, collection)
	return args.Bool(0), args.Error(1)
}
