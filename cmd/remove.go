package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/facegate/internal/config"
	"github.com/andresmejia3/facegate/internal/utils"
	"github.com/spf13/cobra"
)

var removeSource string

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a reference face from the corpus",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if removeSource != "" {
			Cfg.Corpus.Source = removeSource
		}
		name := args[0]

		if Cfg.Corpus.Source == config.CorpusPostgres {
			db, err := openDB(cmd.Context())
			if err != nil {
				utils.Die("Failed to open database", err)
			}
			if err := db.DeleteReference(cmd.Context(), name); err != nil {
				utils.Die("Failed to remove reference", err)
			}
		} else {
			path := filepath.Join(Cfg.Corpus.Path, filepath.Base(name))
			if err := os.Remove(path); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					utils.Die("No such reference", err)
				}
				utils.Die("Failed to remove reference", err)
			}
		}
		fmt.Printf("🗑️  Removed %s\n", name)
	},
}

func init() {
	removeCmd.Flags().StringVar(&removeSource, "corpus-source", "", "Corpus to remove from (dir or postgres)")
	rootCmd.AddCommand(removeCmd)
}
