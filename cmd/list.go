package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/facegate/internal/config"
	"github.com/andresmejia3/facegate/internal/corpus"
	"github.com/andresmejia3/facegate/internal/utils"
	"github.com/spf13/cobra"
)

var listSource string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the reference faces in the corpus",
	Run: func(cmd *cobra.Command, args []string) {
		if listSource != "" {
			Cfg.Corpus.Source = listSource
		}
		runList(cmd.Context())
	},
}

func init() {
	listCmd.Flags().StringVar(&listSource, "corpus-source", "", "Corpus to list (dir or postgres)")
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)

	if Cfg.Corpus.Source == config.CorpusPostgres {
		db, err := openDB(ctx)
		if err != nil {
			utils.Die("Failed to open database", err)
		}
		refs, err := db.ListReferences(ctx)
		if err != nil {
			utils.Die("Failed to list references", err)
		}
		if len(refs) == 0 {
			fmt.Println("No reference faces found in database.")
			return
		}
		fmt.Fprintln(w, "ID\tNAME\tSIZE\tCREATED")
		fmt.Fprintln(w, "--\t----\t----\t-------")
		for _, r := range refs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, utils.HumanSize(int64(r.Size)), utils.FormatTime(r.CreatedAt))
		}
		w.Flush()
		return
	}

	stats, err := corpus.Describe(ctx, corpus.NewDir(Cfg.Corpus.Path))
	if err != nil {
		utils.Die("Failed to list references", err)
	}
	if len(stats) == 0 {
		fmt.Printf("No reference faces found in %s.\n", Cfg.Corpus.Path)
		return
	}
	fmt.Fprintln(w, "NAME\tSIZE")
	fmt.Fprintln(w, "----\t----")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\n", s.Name, utils.HumanSize(s.Size))
	}
	w.Flush()
}
