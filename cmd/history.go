package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/facegate/internal/types"
	"github.com/andresmejia3/facegate/internal/utils"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent door signals recorded in the database",
	Run: func(cmd *cobra.Command, args []string) {
		runHistory(cmd.Context(), historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of events to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, limit int) {
	db, err := openDB(ctx)
	if err != nil {
		utils.Die("Failed to open database", err)
	}
	events, err := db.RecentEvents(ctx, limit)
	if err != nil {
		utils.Die("Failed to load access history", err)
	}
	if len(events) == 0 {
		fmt.Println("No access events recorded.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tFACE\tMODE\tSESSION")
	fmt.Fprintln(w, "----\t-------\t----\t----\t-------")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", utils.FormatTime(ev.At), ev.Command, ev.Box, eventMode(ev), shortSession(ev.Session))
	}
	w.Flush()
}

func eventMode(ev types.SignalEvent) string {
	if ev.Simulated {
		return "simulated"
	}
	return "sent"
}

func shortSession(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
