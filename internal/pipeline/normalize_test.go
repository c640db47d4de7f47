package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxxxer/CheckupAI/internal/model"
)

const sampleTableHTML = `<table>
<tr><td>检验项目</td><td>结果</td><td>计量单位</td><td>参考范围</td></tr>
<tr><td>血红蛋白</td><td>135</td><td>g/L</td><td>115-150</td></tr>
<tr><td>白细胞</td><td>9.8\\uparrow </td><td>10^9/L</td><td>4-10</td></tr>
</table>`

func TestCleanEscapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"uparrow", `9.8\\uparrow 偏高`, "9.8↑ 偏高"},
		{"downarrow", `3.2\\downarrow `, "3.2↓ "},
		{"times", `4.5\\times 10`, "4.5 × 10"},
		{"mu", `\\mu mol/L`, "μmol/L"},
		{"unknown escape passes through", `\\alpha `, `\\alpha `},
		{"plain text untouched", "血红蛋白 135", "血红蛋白 135"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanEscapes(tt.in))
		})
	}
}

func TestNormalizeTable_AliasesHeaders(t *testing.T) {
	table, err := NormalizeTable(model.TableBlock{Index: 0, HTML: sampleTableHTML})
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(t, []string{"项目名称", "检查结果", "单位", "参考值"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"血红蛋白", "135", "g/L", "115-150"}, table.Rows[0])
	// Escape cleanup ran before parsing.
	assert.Equal(t, "9.8↑", table.Rows[1][1])
}

func TestNormalizeTable_AliasingIdempotent(t *testing.T) {
	canonical := `<table>
<tr><th>项目名称</th><th>检查结果</th><th>单位</th><th>参考值</th></tr>
<tr><td>血糖</td><td>5.2</td><td>mmol/L</td><td>3.9-6.1</td></tr>
</table>`

	table, err := NormalizeTable(model.TableBlock{HTML: canonical})
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, []string{"项目名称", "检查结果", "单位", "参考值"}, table.Headers)
}

func TestNormalizeTable_FullWidthHeaderFolded(t *testing.T) {
	markup := `<table>
<tr><td>ＡＬＴ</td><td>结果</td></tr>
<tr><td>32</td><td>正常</td></tr>
</table>`

	table, err := NormalizeTable(model.TableBlock{HTML: markup})
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, "ALT", table.Headers[0])
}

func TestNormalizeTable_NoTableElement(t *testing.T) {
	table, err := NormalizeTable(model.TableBlock{HTML: "<p>没有表格</p>"})
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestNormalizeTable_HeaderOnly(t *testing.T) {
	table, err := NormalizeTable(model.TableBlock{HTML: "<table><tr><td>项目</td><td>结果</td></tr></table>"})
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestNormalizeTable_EmptyMarkup(t *testing.T) {
	table, err := NormalizeTable(model.TableBlock{HTML: ""})
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestNormalizeTable_RaggedRowsPreserved(t *testing.T) {
	markup := `<table>
<tr><td>项目</td><td>结果</td><td>单位</td></tr>
<tr><td>血压</td><td>120/80</td></tr>
<tr><td>心率</td><td>72</td><td>次/分</td><td>额外</td></tr>
</table>`

	table, err := NormalizeTable(model.TableBlock{HTML: markup})
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Len(t, table.Headers, 3)
	assert.Len(t, table.Rows[0], 2)
	assert.Len(t, table.Rows[1], 4)
}

func TestNormalizedTable_Markdown(t *testing.T) {
	table := &model.NormalizedTable{
		Headers: []string{"项目名称", "检查结果"},
		Rows:    [][]string{{"血糖", "5.2"}},
	}

	md := table.Markdown()
	assert.Contains(t, md, "| 项目名称 | 检查结果 |")
	assert.Contains(t, md, "| --- | --- |")
	assert.Contains(t, md, "| 血糖 | 5.2 |")
}
