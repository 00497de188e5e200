// Package cli implements diaryctl, the operator command line for the diary
// store. Every command builds the same container as the API server, so
// commands observe the configured provider, lock and event bus.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"diary-backend/domain/core/valueobjects"
	"diary-backend/infrastructure/config"
	"diary-backend/infrastructure/di"
)

var (
	configFile   string
	databasePath string
	rootCmd      *cobra.Command
)

// loadConfig and newContainer are replaced in tests
var (
	loadConfig   = config.LoadConfig
	newContainer = di.InitializeContainer
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "diaryctl",
		Short: "Operate the diary store",
		Long: `diaryctl manages diary users and entries and triggers emotion analysis
against the configured analysis provider.

Configuration is read the same way as the API server: defaults, then the
YAML file named by --config or CONFIG_FILE, then environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "", "SQLite database path (overrides DATABASE_PATH)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(adviceCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(monthCmd)
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// withContainer builds the container for one command invocation and tears
// it down afterwards
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container) error) error {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return err
		}
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if databasePath != "" {
		cfg.DatabasePath = databasePath
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	container, cleanup, err := newContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	return fn(ctx, container)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func parseUserAndDate(args []string) (int64, valueobjects.DiaryDate, error) {
	userID, err := parseUserID(args[0])
	if err != nil {
		return 0, valueobjects.DiaryDate{}, err
	}
	date, err := valueobjects.ParseDiaryDate(args[1])
	if err != nil {
		return 0, valueobjects.DiaryDate{}, err
	}
	return userID, date, nil
}
