package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hxxxer/CheckupAI/internal/model"
)

// AssembleRecord composes the stage outputs into the outward-facing analysis
// record.
func AssembleRecord(userID, sourcePath string, report *model.StructuredReport, context model.RetrievalResult, analysis string, risk model.RiskAssessment, validation model.ValidationResult) *model.AnalysisRecord {
	return &model.AnalysisRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		SourcePath: sourcePath,
		Report:     *report,
		Context:    context,
		Analysis:   analysis,
		Risk:       risk,
		Validation: validation,
		CreatedAt:  time.Now().UTC(),
	}
}

// FormatSummary renders a human-readable analysis summary.
func FormatSummary(record *model.AnalysisRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# 体检报告分析 %s\n", record.ID)
	if record.SourcePath != "" {
		fmt.Fprintf(&b, "来源: %s\n", record.SourcePath)
	}
	if record.UserID != "" {
		fmt.Fprintf(&b, "用户: %s\n", record.UserID)
	}
	fmt.Fprintf(&b, "时间: %s\n\n", record.CreatedAt.Format(time.RFC3339))

	// Extraction summary.
	b.WriteString("## 提取结果\n")
	fmt.Fprintf(&b, "- 表格块: %d, 解析成功: %d, 文本块: %d\n",
		record.Report.Stats.TableBlocks,
		record.Report.Stats.ParsedTables,
		record.Report.Stats.TextBlocks)
	for i, table := range record.Report.Tables {
		fmt.Fprintf(&b, "\n### 表格 %d\n", i+1)
		for _, item := range table {
			fmt.Fprintf(&b, "- %s: %s", item.ItemName, item.Result)
			if item.Unit != nil && *item.Unit != "" {
				fmt.Fprintf(&b, " %s", *item.Unit)
			}
			if item.ReferenceRange != nil && *item.ReferenceRange != "" {
				fmt.Fprintf(&b, " (参考: %s)", *item.ReferenceRange)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	// Risk assessment.
	b.WriteString("## 风险评估\n")
	fmt.Fprintf(&b, "总体风险: %s\n", record.Risk.OverallRisk)
	for _, f := range record.Risk.Findings {
		fmt.Fprintf(&b, "- [%s] %s: %s (阈值 %g)\n", f.Severity, f.TestName, f.ObservedValue, f.Threshold)
	}
	if len(record.Risk.UrgentAttention) > 0 {
		fmt.Fprintf(&b, "需要尽快就医的指标: %d 项\n", len(record.Risk.UrgentAttention))
	}
	b.WriteString("\n")

	// Analysis text and validation.
	b.WriteString("## 分析\n")
	b.WriteString(record.Analysis)
	b.WriteString("\n\n")

	b.WriteString("## 安全校验\n")
	if record.Validation.Approved {
		b.WriteString("通过\n")
	} else {
		b.WriteString("未通过\n")
		for _, blocked := range record.Validation.BlockedContent {
			fmt.Fprintf(&b, "- %s\n", blocked)
		}
	}
	for _, warning := range record.Validation.Warnings {
		fmt.Fprintf(&b, "- %s\n", warning)
	}

	return b.String()
}
