package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "checkupai",
	Short: "Medical checkup report analysis pipeline",
	Long:  "Runs OCR over checkup report images, extracts structured test items via a fine-tuned model, retrieves medical knowledge and user history, and produces a guarded analysis.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
