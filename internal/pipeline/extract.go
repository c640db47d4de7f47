package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/hxxxer/CheckupAI/internal/config"
	"github.com/hxxxer/CheckupAI/internal/model"
)

// ErrUnavailable marks a generation backend failure (timeout, transport
// error, server error). Callers use it to tell "model said nothing useful"
// apart from "model was unreachable".
var ErrUnavailable = eris.New("extract: generation backend unavailable")

// extractionSystemPrompt instructs the fine-tuned model to restructure one
// markdown table into the item schema.
const extractionSystemPrompt = `你是一名医疗检验数据提取助手，负责将体检报告中的表格整理为结构化数据。

规则：
1：输入是一个Markdown表格，每一行检验项目输出一个JSON对象，字段为 item_name、result、unit、reference_range、is_abnormal。
2：result 保留原始符号（如 ↑、↓、<、>），不要改写或换算数值。
3：表格中缺失的字段输出 null，不要编造。
4：is_abnormal 根据结果中的箭头或与参考值的比较填写 "高"、"低"，正常或无法判断时填 null。
5：只输出JSON数组，不要输出任何解释文字。

输出格式：
[{"item_name": "血红蛋白", "result": "135", "unit": "g/L", "reference_range": "115-150", "is_abnormal": null}]`

// TableExtractor turns normalized tables into test items through the
// generative model. A token-bucket limiter spaces out requests so concurrent
// extraction cannot saturate the model server.
type TableExtractor struct {
	gen     Generator
	limiter *rate.Limiter
}

// NewTableExtractor creates a TableExtractor from config.
func NewTableExtractor(gen Generator, cfg config.ExtractConfig) *TableExtractor {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2.0
	}
	return &TableExtractor{
		gen:     gen,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Extract prompts the model with the table and salvages the JSON payload
// from its output. A nil table is rejected before the model is invoked. An
// empty result with a nil error means the output could not be salvaged.
func (e *TableExtractor) Extract(ctx context.Context, table *model.NormalizedTable) ([]model.TestItem, error) {
	if table == nil {
		return nil, eris.New("extract: nil table")
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extract: rate limit wait")
	}

	out, err := e.gen.Generate(ctx, extractionSystemPrompt, table.Markdown())
	if err != nil {
		return nil, eris.Wrap(ErrUnavailable, err.Error())
	}

	return ParseItems(out), nil
}
