package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lora-locator/internal/config"
	"lora-locator/internal/logging"
)

var (
	configPath string
	schemaPath string
	envFile    string
	logLevel   string
	logFormat  string

	// cfg is loaded once by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lora-locator",
	Short: "RSSI-based LoRa sensor locator",
	Long: "lora-locator estimates the positions of LoRa sensors from the signal strength " +
		"their packets arrive with at gateways of known position.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		loaded, err := config.Load(configPath, schemaPath)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format = logFormat
		}
		cfg = loaded
		slog.SetDefault(logging.New(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: os.Stderr,
		}))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/locator.yaml", "Path to locator configuration YAML (empty for defaults)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "schemas/locator.cue", "Path to CUE schema file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file with sink credentials")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(dashboardCmd)
}
