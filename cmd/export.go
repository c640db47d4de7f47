package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/model"
	"github.com/hxxxer/CheckupAI/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <analysis-id>",
	Short: "Export a stored analysis to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.New(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		record, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "load analysis %s", args[0])
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("analysis-%s.xlsx", record.ID)
		}

		if err := writeWorkbook(record, out); err != nil {
			return err
		}

		zap.L().Info("analysis exported",
			zap.String("id", record.ID),
			zap.String("path", out),
			zap.Int("tables", len(record.Report.Tables)),
		)
		return nil
	},
}

// writeWorkbook renders one sheet per extracted table plus a summary sheet.
func writeWorkbook(record *model.AnalysisRecord, path string) error {
	file := xlsx.NewFile()

	summary, err := file.AddSheet("概览")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addRow(summary, "分析ID", record.ID)
	addRow(summary, "用户", record.UserID)
	addRow(summary, "来源", record.SourcePath)
	addRow(summary, "时间", record.CreatedAt.Format("2006-01-02 15:04:05"))
	addRow(summary, "总体风险", string(record.Risk.OverallRisk))
	addRow(summary, "表格块", fmt.Sprintf("%d", record.Report.Stats.TableBlocks))
	addRow(summary, "解析成功", fmt.Sprintf("%d", record.Report.Stats.ParsedTables))

	for i, table := range record.Report.Tables {
		sheet, err := file.AddSheet(fmt.Sprintf("表格%d", i+1))
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %d", i+1)
		}
		addRow(sheet, "项目名称", "检查结果", "单位", "参考值", "异常")
		for _, item := range table {
			addRow(sheet,
				item.ItemName,
				item.Result,
				strValue(item.Unit),
				strValue(item.ReferenceRange),
				strValue(item.AbnormalFlag),
			)
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default analysis-<id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
