package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/coursenotes/internal/config"
	"example.com/coursenotes/internal/db"
	"example.com/coursenotes/internal/logging"
)

var (
	verbose bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "notesctl",
	Short: "Operator tool for the course notes service",
	Long: `notesctl seeds directory users, issues tokens for them and inspects
the notes file. It reads the same NOTES_CONFIG file and environment as the API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logging.Setup(level)
		return nil
	},
}

// Execute runs the root command. Called by main.main().
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func openDirectoryDB(ctx context.Context) (*db.DB, error) {
	return db.Open(ctx, db.Options{
		Driver:          cfg.DBDriver,
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		Migrate:         cfg.DBMigrate,
	})
}
