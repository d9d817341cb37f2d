package main

import (
	"github.com/spf13/cobra"

	"lora-locator/internal/ingest"
)

var (
	runURL string
	runOut outputFlags
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Locate sensors from the live reception feed",
	Long:  "run connects to the gateway websocket feed and estimates sensor positions as reports arrive.",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		url := cfg.Source.URL
		if runURL != "" {
			url = runURL
		}
		src := ingest.NewWebsocketSource(url, cfg.Source.ReconnectDelay)
		return runPipeline(cfg, catalog, src, url, runOut)
	},
}

func init() {
	runCmd.Flags().StringVar(&runURL, "url", "", "Websocket feed URL (overrides source.url)")
	addOutputFlags(runCmd, &runOut)
}

// addOutputFlags registers the writer selection flags shared by the pipeline
// commands.
func addOutputFlags(cmd *cobra.Command, out *outputFlags) {
	cmd.Flags().BoolVar(&out.printOnly, "print-only", false, "Print estimates to STDOUT instead of writing to DB")
	cmd.Flags().StringVar(&out.logFile, "log-file", "", "Path to export estimate/calibration logs (JSONL)")
	cmd.Flags().BoolVar(&out.tui, "tui", false, "Show the interactive terminal dashboard")
	cmd.Flags().StringVar(&out.admin, "admin", "", "Admin UI listen address (overrides admin.addr)")
}
