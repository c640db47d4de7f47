package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/model"
	"github.com/hxxxer/CheckupAI/internal/pipeline"
)

var (
	analyzeImage      string
	analyzeUser       string
	analyzeConditions []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single checkup report image",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := pipeline.AnalyzeRequest{
			ImagePath: analyzeImage,
			UserID:    analyzeUser,
		}
		if len(analyzeConditions) > 0 {
			req.Profile = &model.UserProfile{
				UserID:            analyzeUser,
				ChronicConditions: analyzeConditions,
			}
		}

		record, err := env.Pipeline.Analyze(ctx, req)
		if err != nil {
			return eris.Wrap(err, "analyze report")
		}

		zap.L().Info("analysis complete",
			zap.String("id", record.ID),
			zap.Int("parsed_tables", record.Report.Stats.ParsedTables),
			zap.String("risk", string(record.Risk.OverallRisk)),
			zap.Bool("approved", record.Validation.Approved),
		)

		fmt.Println(pipeline.FormatSummary(record))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeImage, "image", "", "checkup report image path (required)")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "user ID for profile retrieval and sync")
	analyzeCmd.Flags().StringSliceVar(&analyzeConditions, "condition", nil, "chronic condition for contraindication checks (repeatable)")
	_ = analyzeCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(analyzeCmd)
}
