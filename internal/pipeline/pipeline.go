package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/guard"
	"github.com/hxxxer/CheckupAI/internal/model"
	"github.com/hxxxer/CheckupAI/internal/ocr"
	"github.com/hxxxer/CheckupAI/internal/profile"
	"github.com/hxxxer/CheckupAI/internal/retrieval"
	"github.com/hxxxer/CheckupAI/internal/store"
)

// analysisSystemPrompt frames the report analysis turn.
const analysisSystemPrompt = "你是一个专业的医疗分析助手。请分析以下体检报告并提供专业建议。"

// qaSystemPrompt frames the free-form question turn.
const qaSystemPrompt = "你是一个专业的医疗咨询助手。请基于提供的医学知识和用户健康档案回答问题。"

// Pipeline wires one document analysis end to end: OCR, report building,
// retrieval, generation, the risk guard, persistence, and profile sync.
// All collaborators are injected at construction; nothing is created lazily.
type Pipeline struct {
	runner    ocr.Runner
	builder   *ReportBuilder
	retriever *retrieval.Retriever
	gen       Generator
	guard     *guard.Guard
	store     store.Store      // nil disables persistence
	profiles  *profile.Manager // nil disables profile sync
}

// New creates a Pipeline. Store and profile manager are optional.
func New(runner ocr.Runner, builder *ReportBuilder, retriever *retrieval.Retriever, gen Generator, g *guard.Guard, st store.Store, profiles *profile.Manager) *Pipeline {
	return &Pipeline{
		runner:    runner,
		builder:   builder,
		retriever: retriever,
		gen:       gen,
		guard:     g,
		store:     st,
		profiles:  profiles,
	}
}

// AnalyzeRequest identifies one document to analyze.
type AnalyzeRequest struct {
	ImagePath string
	UserID    string
	Profile   *model.UserProfile
}

// Analyze runs the full analysis for one report image. Persistence and
// profile sync failures are logged but do not fail the analysis; the record
// is already computed and the caller should get it.
func (p *Pipeline) Analyze(ctx context.Context, req AnalyzeRequest) (*model.AnalysisRecord, error) {
	pages, err := p.runner.Process(ctx, req.ImagePath)
	if err != nil {
		return nil, eris.Wrap(err, "analyze: ocr")
	}

	report, err := p.builder.Build(ctx, pages)
	if err != nil {
		return nil, eris.Wrap(err, "analyze: build report")
	}

	retrievalCtx, err := p.retriever.Retrieve(ctx, report.FullText, req.UserID)
	if err != nil {
		return nil, eris.Wrap(err, "analyze: retrieve context")
	}

	analysis, err := p.gen.Generate(ctx, analysisSystemPrompt, buildAnalysisPrompt(report, req.Profile, retrievalCtx))
	if err != nil {
		return nil, eris.Wrap(ErrUnavailable, err.Error())
	}

	risk := p.guard.AssessRiskLevel(report)
	validation := p.guard.ValidateRecommendation(analysis, req.Profile)

	record := AssembleRecord(req.UserID, req.ImagePath, report, retrievalCtx, analysis, risk, validation)

	if p.store != nil {
		if err := p.store.SaveAnalysis(ctx, record); err != nil {
			zap.L().Warn("persist analysis failed", zap.String("id", record.ID), zap.Error(err))
		}
	}
	if p.profiles != nil {
		if err := p.profiles.Sync(ctx, record); err != nil {
			zap.L().Warn("profile sync failed", zap.String("user_id", req.UserID), zap.Error(err))
		}
	}

	return record, nil
}

// AskResult is the answer to a free-form question.
type AskResult struct {
	Question       string                 `json:"question"`
	Answer         string                 `json:"answer"`
	Validation     model.ValidationResult `json:"validation"`
	ContextSources int                    `json:"context_sources"`
}

// Ask answers a free-form question grounded in retrieved context, then runs
// the answer through the guard.
func (p *Pipeline) Ask(ctx context.Context, userID, question string) (*AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, eris.New("ask: empty question")
	}

	retrievalCtx, err := p.retriever.Retrieve(ctx, question, userID)
	if err != nil {
		return nil, eris.Wrap(err, "ask: retrieve context")
	}

	answer, err := p.gen.Generate(ctx, qaSystemPrompt, buildQAPrompt(question, retrievalCtx))
	if err != nil {
		return nil, eris.Wrap(ErrUnavailable, err.Error())
	}

	validation := p.guard.ValidateRecommendation(answer, nil)

	return &AskResult{
		Question:       question,
		Answer:         answer,
		Validation:     validation,
		ContextSources: len(retrievalCtx.Knowledge),
	}, nil
}

// buildAnalysisPrompt lays out retrieved knowledge, the user's profile, and
// the current report for the analysis turn.
func buildAnalysisPrompt(report *model.StructuredReport, userProfile *model.UserProfile, retrievalCtx model.RetrievalResult) string {
	var b strings.Builder

	if len(retrievalCtx.Knowledge) > 0 {
		b.WriteString("参考医学知识:\n")
		for i, doc := range retrievalCtx.Knowledge {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", doc.Text)
		}
		b.WriteString("\n")
	}

	if userProfile != nil && len(userProfile.ChronicConditions) > 0 {
		b.WriteString("用户健康档案:\n")
		fmt.Fprintf(&b, "慢性疾病: %s\n", strings.Join(userProfile.ChronicConditions, ", "))
		b.WriteString("\n")
	}
	if len(retrievalCtx.Profile) > 0 {
		b.WriteString("历史记录:\n")
		for i, doc := range retrievalCtx.Profile {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", doc.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("当前体检报告:\n")
	for _, item := range report.AllItems() {
		fmt.Fprintf(&b, "- %s: %s", item.ItemName, item.Result)
		if item.Unit != nil && *item.Unit != "" {
			fmt.Fprintf(&b, " %s", *item.Unit)
		}
		if item.ReferenceRange != nil && *item.ReferenceRange != "" {
			fmt.Fprintf(&b, " (参考范围: %s)", *item.ReferenceRange)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n请提供:\n1. 异常指标分析\n2. 健康风险评估\n3. 具体建议\n\n回答:")
	return b.String()
}

// buildQAPrompt lays out both retrieval paths and the question.
func buildQAPrompt(question string, retrievalCtx model.RetrievalResult) string {
	return fmt.Sprintf(`基于以下医学知识和用户健康档案,回答用户问题。

医学知识:
%s

用户档案:
%s

用户问题: %s

请提供专业、准确的回答:`,
		formatContext(retrievalCtx.Knowledge),
		formatContext(retrievalCtx.Profile),
		question)
}

// formatContext numbers the top documents, "无" when there are none.
func formatContext(docs []model.RetrievedDocument) string {
	if len(docs) == 0 {
		return "无"
	}
	var lines []string
	for i, doc := range docs {
		if i >= 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, doc.Text))
	}
	return strings.Join(lines, "\n")
}
