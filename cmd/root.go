package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/facegate/internal/config"
	"github.com/andresmejia3/facegate/internal/logger"
	"github.com/andresmejia3/facegate/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Cfg is the loaded configuration shared by subcommands
	Cfg *config.Config
	// DB is opened lazily by the subcommands that need it
	DB *store.Store

	cfgPath string
	dbURL   string
	logLvl  string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "facegate",
	Short:   "Face recognition door gate",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbURL != "" {
			Cfg.Database.URL = dbURL
		}
		if logLvl != "" {
			Cfg.Log.Level = logLvl
		}

		log, err := logger.Init(Cfg.Log.Level, Cfg.Log.Development)
		if err != nil {
			return err
		}
		log.Debug("configuration loaded", zap.String("path", cfgPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			DB.Close()
		}
		logger.Sync()
	},
}

// openDB connects to PostgreSQL on first use.
func openDB(ctx context.Context) (*store.Store, error) {
	if DB != nil {
		return DB, nil
	}
	s, err := store.New(ctx, Cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = s
	return DB, nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: POSTGRES_* env or postgres://localhost:5432/facegate)")
	rootCmd.PersistentFlags().StringVar(&logLvl, "log-level", "", "Log level (debug, info, warn, error)")
}
