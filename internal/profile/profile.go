// Package profile maintains the user-profiles vector collection. Each
// analysis is distilled into a short history passage, embedded, and inserted
// so later retrievals can draw on the user's past results.
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/model"
	"github.com/hxxxer/CheckupAI/pkg/embedding"
	"github.com/hxxxer/CheckupAI/pkg/milvus"
)

// maxProfileTextLen matches the collection's VARCHAR field length.
const maxProfileTextLen = 2000

// Manager syncs analysis results into the profile collection.
type Manager struct {
	embedder   embedding.Client
	store      milvus.Client
	collection string
}

// NewManager creates a Manager writing to the given collection.
func NewManager(embedder embedding.Client, store milvus.Client, collection string) *Manager {
	return &Manager{embedder: embedder, store: store, collection: collection}
}

// Sync embeds and stores the profile passage for one analysis. An anonymous
// analysis or one with nothing noteworthy is skipped silently. Errors are
// returned for the caller to log; profile sync is advisory and must never
// abort the analysis that produced the record.
func (m *Manager) Sync(ctx context.Context, record *model.AnalysisRecord) error {
	if record == nil || record.UserID == "" {
		return nil
	}

	text := BuildProfileText(record)
	if text == "" {
		zap.L().Debug("analysis yielded no profile text", zap.String("user_id", record.UserID))
		return nil
	}

	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return eris.Wrap(err, "profile: embed")
	}
	if len(vectors) == 0 {
		return eris.New("profile: embedder returned no vector")
	}

	timestamp := record.CreatedAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	err = m.store.Insert(ctx, m.collection, []map[string]any{{
		"user_id":     record.UserID,
		"text":        text,
		"timestamp":   timestamp.Format(time.RFC3339),
		"report_type": "checkup",
		"embedding":   vectors[0],
	}})
	return eris.Wrap(err, "profile: insert")
}

// BuildProfileText summarizes what matters for future retrievals: abnormal
// test results and risk findings. Normal results are left out to keep the
// passage focused.
func BuildProfileText(record *model.AnalysisRecord) string {
	var lines []string

	for _, item := range record.Report.AllItems() {
		if item.AbnormalFlag == nil || *item.AbnormalFlag == "" {
			continue
		}
		line := fmt.Sprintf("%s: %s", item.ItemName, item.Result)
		if item.Unit != nil && *item.Unit != "" {
			line += " " + *item.Unit
		}
		if item.ReferenceRange != nil && *item.ReferenceRange != "" {
			line += fmt.Sprintf(" (参考: %s)", *item.ReferenceRange)
		}
		lines = append(lines, line)
	}

	for _, finding := range record.Risk.Findings {
		lines = append(lines, fmt.Sprintf("风险: %s %s=%s 超过阈值%g",
			finding.RuleName, finding.TestName, finding.ObservedValue, finding.Threshold))
	}

	text := strings.Join(lines, "\n")
	if runes := []rune(text); len(runes) > maxProfileTextLen {
		text = string(runes[:maxProfileTextLen])
	}
	return text
}
