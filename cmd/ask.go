package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askUser string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a health question grounded in the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		question := strings.Join(args, " ")
		res, err := env.Pipeline.Ask(ctx, askUser, question)
		if err != nil {
			return eris.Wrap(err, "ask question")
		}

		zap.L().Info("question answered",
			zap.Int("context_sources", res.ContextSources),
			zap.Bool("approved", res.Validation.Approved),
		)

		fmt.Println(res.Answer)
		if !res.Validation.Approved {
			fmt.Println()
			for _, blocked := range res.Validation.BlockedContent {
				fmt.Println(blocked)
			}
		}
		for _, warning := range res.Validation.Warnings {
			fmt.Println(warning)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "", "user ID for profile-scoped retrieval")
	rootCmd.AddCommand(askCmd)
}
