package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lora-locator/internal/ingest"
)

var (
	replayInput string
	replaySpeed float64
	replayOut   outputFlags
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a captured reception feed",
	Long:  "replay feeds wire messages from a JSONL capture through the locator, paced by their timestamps.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		src := ingest.NewReplaySource(replayInput, replaySpeed)
		return runPipeline(cfg, catalog, src, replayInput, replayOut)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to JSONL capture of wire messages")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	addOutputFlags(replayCmd, &replayOut)
	replayCmd.MarkFlagRequired("input")
}
