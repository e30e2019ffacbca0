package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/facegate/internal/config"
	"github.com/andresmejia3/facegate/internal/corpus"
	"github.com/andresmejia3/facegate/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	enrollDir    string
	enrollTarget string
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [<name> <image_path>]",
	Short: "Add reference faces to the corpus",
	Long: "Adds a single named image, or every image in --dir, to the reference corpus. " +
		"Images are copied into corpus.path for the dir source or stored in PostgreSQL for the postgres source.",
	Args: func(cmd *cobra.Command, args []string) error {
		if enrollDir != "" && len(args) != 0 {
			return errors.New("pass either <name> <image_path> or --dir, not both")
		}
		if enrollDir == "" && len(args) != 2 {
			return errors.New("requires <name> <image_path> or --dir")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if enrollTarget != "" {
			Cfg.Corpus.Source = enrollTarget
		}
		sink, err := openSink(cmd.Context(), Cfg)
		if err != nil {
			return err
		}
		if enrollDir != "" {
			return enrollFromDir(cmd.Context(), sink, enrollDir)
		}
		return enrollOne(cmd.Context(), sink, args[0], args[1])
	},
}

func init() {
	enrollCmd.Flags().StringVar(&enrollDir, "dir", "", "Enroll every image in this directory (file names become reference names)")
	enrollCmd.Flags().StringVar(&enrollTarget, "corpus-source", "", "Where to store references (dir or postgres)")
	rootCmd.AddCommand(enrollCmd)
}

// referenceSink stores one encoded reference image.
type referenceSink func(ctx context.Context, name string, data []byte) error

func openSink(ctx context.Context, cfg *config.Config) (referenceSink, error) {
	switch cfg.Corpus.Source {
	case config.CorpusPostgres:
		db, err := openDB(ctx)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, name string, data []byte) error {
			_, err := db.AddReference(ctx, name, data)
			return err
		}, nil
	case config.CorpusDir:
		return dirSink(cfg.Corpus.Path), nil
	default:
		return nil, fmt.Errorf("%w: unknown corpus source %q", config.ErrInvalid, cfg.Corpus.Source)
	}
}

// dirSink writes references as files, creating the directory if needed.
func dirSink(dir string) referenceSink {
	return func(ctx context.Context, name string, data []byte) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, filepath.Base(name)), data, 0o644)
	}
}

// referenceName gives a stored reference the source file's extension.
func referenceName(name, path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}
	return name + ext
}

func enrollOne(ctx context.Context, sink referenceSink, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		utils.ShowError("Failed to read image file", err)
		return err
	}
	ref := referenceName(name, path)
	if err := sink(ctx, ref, data); err != nil {
		utils.ShowError("Failed to store reference", err)
		return err
	}
	fmt.Printf("✅ Enrolled %s\n", ref)
	return nil
}

func enrollFromDir(ctx context.Context, sink referenceSink, dir string) error {
	refs, err := corpus.NewDir(dir).References(ctx)
	if err != nil {
		utils.ShowError("Failed to list images", err)
		return err
	}
	if len(refs) == 0 {
		fmt.Println("No images found.")
		return nil
	}

	bar := progressbar.NewOptions(len(refs),
		progressbar.OptionSetDescription("📥 Enrolling faces"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	failed := 0
	for _, r := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := r.Bytes()
		if err == nil {
			err = sink(ctx, r.Name, data)
		}
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "\n⚠️  Skipping %s: %v\n", r.Name, err)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Fprintln(os.Stderr)
	fmt.Printf("✅ Enrolled %d of %d images\n", len(refs)-failed, len(refs))
	return nil
}
