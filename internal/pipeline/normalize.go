package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/width"

	"github.com/hxxxer/CheckupAI/internal/model"
)

// escapeReplacer fixes LaTeX-style escapes the OCR engine leaves behind in
// table markup.
var escapeReplacer = strings.NewReplacer(
	`\\uparrow `, "↑ ",
	`\\downarrow `, "↓ ",
	`\\times `, " × ",
	`\\mu `, "μ",
)

// headerAliases maps the header variants seen across hospital report layouts
// to canonical column names. Canonical names are absent on purpose: a header
// already in canonical form passes through unchanged, so aliasing is
// idempotent.
var headerAliases = map[string]string{
	"项目":   "项目名称",
	"检验项目": "项目名称",
	"指标":   "项目名称",
	"检查项目": "项目名称",
	"结果":   "检查结果",
	"测定值":  "检查结果",
	"实测值":  "检查结果",
	"参考范围": "参考值",
	"正常值":  "参考值",
	"参考区间": "参考值",
	"计量单位": "单位",
}

// CleanEscapes replaces escaped arrow, multiplication and mu sequences with
// their display characters.
func CleanEscapes(markup string) string {
	return escapeReplacer.Replace(markup)
}

// canonicalHeader folds full-width characters, trims, and applies the alias
// map.
func canonicalHeader(h string) string {
	h = strings.TrimSpace(width.Fold.String(h))
	if canonical, ok := headerAliases[h]; ok {
		return canonical
	}
	return h
}

// NormalizeTable converts a raw table block into canonical row/column form.
// It returns nil when the markup contains no table element or the table has
// no data rows; that means "nothing to extract", not an error. Ragged rows
// are kept as-is since OCR frequently drops or merges cells.
func NormalizeTable(block model.TableBlock) (*model.NormalizedTable, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(CleanEscapes(block.HTML)))
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: parse table block %d", block.Index)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, nil
	}
	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nil, nil
	}

	var t model.NormalizedTable
	rows.Each(func(i int, tr *goquery.Selection) {
		cells := []string{}
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if i == 0 {
			headers := make([]string, len(cells))
			for j, h := range cells {
				headers[j] = canonicalHeader(h)
			}
			t.Headers = headers
			return
		}
		t.Rows = append(t.Rows, cells)
	})

	if len(t.Headers) == 0 || len(t.Rows) == 0 {
		return nil, nil
	}
	return &t, nil
}
