// Command sheetsync runs Sheets ingestion tasks from an operator shell.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sinergia/backend/internal/config"
)

var (
	// Global flags
	verbose bool
	timeout time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sheetsync",
	Short: "Sinergia Google Sheets ingestion tool",
	Long: `sheetsync drives the Sheets ingestion pipeline outside of Lambda.

Configuration is read from the same environment variables as the API
(ROW_STORE, SQLITE_PATH, SYNC_SCOPE, DEV_MODE, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newLogger honors LOG_LEVEL; --verbose forces debug.
func newLogger() (*zap.Logger, error) {
	level := os.Getenv("LOG_LEVEL")
	if verbose {
		level = "debug"
	}
	return config.NewLogger(level)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	syncCmd.Flags().StringVar(&syncRange, "range", "", "A1 range to read (default from DEFAULT_SHEET_RANGE)")
	syncCmd.Flags().StringVar(&syncUser, "user", "", "User id owning the rows under the per-user scope")
	rowsCmd.Flags().StringVar(&syncUser, "user", "", "User id owning the rows under the per-user scope")
	migrateCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default from SQLITE_PATH)")
	sealCmd.Flags().StringVar(&keyID, "key-id", "", "KMS key id or alias (default from CREDENTIALS_KMS_KEY_ID)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(rowsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sealCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
