package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/dbkit/internal/app"
	"github.com/koustreak/dbkit/internal/config"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
	cfg      *config.Config
	version  = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "dbkit",
	Short: "dbkit - keep table models and live databases in agreement",
	Long: `dbkit compares table models declared in YAML with the tables that
actually exist in PostgreSQL, MySQL or SQLite, reports every structural
difference, and filters bulk inserts against unique constraints.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgFile, envFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "dbkit.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with secrets")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

// openApp connects using the loaded config; callers must Close the result.
func openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialise: %w", err)
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
