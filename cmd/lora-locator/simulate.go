package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lora-locator/internal/ingest"
	"lora-locator/internal/telemetry"
)

var (
	simTick   time.Duration
	simMobile int
	simSeed   int64
	simTicks  int
	simOut    outputFlags
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Locate sensors from a synthetic reception feed",
	Long: "simulate generates reception reports for the catalog sensors and a number of " +
		"random-walking mobile sensors and feeds them through the locator.",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		sc := cfg.Simulation
		if cmd.Flags().Changed("tick") {
			sc.Tick = simTick
		}
		if envTick := os.Getenv("TICK_INTERVAL"); envTick != "" {
			d, err := time.ParseDuration(envTick)
			if err != nil {
				return fmt.Errorf("invalid TICK_INTERVAL: %w", err)
			}
			sc.Tick = d
		}
		if cmd.Flags().Changed("mobile") {
			sc.MobileSensors = simMobile
		}
		if cmd.Flags().Changed("seed") {
			sc.Seed = simSeed
		}

		gen := telemetry.NewGenerator(telemetry.GeneratorConfig{
			ReferencePower: cfg.Engine.ReferencePowerDBM,
			Exponent:       sc.Exponent,
			NoiseDB:        sc.RSSINoiseDB,
			MaxRangeM:      sc.MaxRangeM,
			MobileSensors:  sc.MobileSensors,
			SpeedMinMPS:    sc.SpeedMinMPS,
			SpeedMaxMPS:    sc.SpeedMaxMPS,
		}, catalog, rand.New(rand.NewSource(sc.Seed)), nil)
		src := ingest.NewSyntheticSource(gen, sc.Tick)
		src.Ticks = simTicks
		return runPipeline(cfg, catalog, src, fmt.Sprintf("synthetic (n=%.2f, seed=%d)", sc.Exponent, sc.Seed), simOut)
	},
}

func init() {
	simulateCmd.Flags().DurationVar(&simTick, "tick", time.Second, "Report generation interval (e.g. 500ms, 2s)")
	simulateCmd.Flags().IntVar(&simMobile, "mobile", 0, "Number of random-walking unknown sensors")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "Random seed for the synthetic environment")
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 0, "Stop after this many ticks (0 runs until interrupted)")
	addOutputFlags(simulateCmd, &simOut)
}
