package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hxxxer/CheckupAI/internal/store"
)

var (
	listUser  string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.New(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListAnalyses(ctx, store.AnalysisFilter{
			UserID: listUser,
			Limit:  listLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list analyses")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSER\tCREATED\tTABLES\tRISK\tAPPROVED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%t\n",
				r.ID,
				r.UserID,
				r.CreatedAt.Format("2006-01-02 15:04"),
				r.Report.Stats.ParsedTables,
				r.Risk.OverallRisk,
				r.Validation.Approved,
			)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listUser, "user", "", "filter by user ID")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum rows")
	rootCmd.AddCommand(listCmd)
}
