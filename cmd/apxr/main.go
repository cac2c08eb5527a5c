// Command apxr runs the agent-based market microstructure simulation and
// writes per-run analysis CSVs to the output directory.
package main

import (
	"flag"
	"os"

	"github.com/luxfi/log"

	"github.com/apxr/marketsim/pkg/metrics"
	"github.com/apxr/marketsim/pkg/sim"
)

func main() {
	defaults := sim.Default()

	var (
		runs        = flag.Int("runs", defaults.Runs, "Number of independent simulation runs")
		steps       = flag.Int64("steps", defaults.Timesteps, "Timesteps per run")
		seed        = flag.Int64("seed", defaults.Seed, "Master seed; every agent stream derives from it")
		out         = flag.String("out", defaults.OutputDir, "Output directory (wiped at start)")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		metricsAddr = flag.String("metrics-addr", "", "Optional address for the Prometheus endpoint (disabled when empty)")
	)
	flag.Parse()

	level, err := log.ToLevel(*logLevel)
	if err != nil {
		level, _ = log.ToLevel("info")
	}
	logger := log.NewTestLogger(level)

	cfg := defaults
	cfg.Runs = *runs
	cfg.Timesteps = *steps
	cfg.Seed = *seed
	cfg.OutputDir = *out

	m := metrics.New("apxr")
	if *metricsAddr != "" {
		go func() {
			if serr := m.Serve(*metricsAddr); serr != nil {
				logger.Warn("metrics server stopped", "error", serr)
			}
		}()
	}

	logger.Info("starting simulation",
		"runs", cfg.Runs,
		"timesteps", cfg.Timesteps,
		"seed", cfg.Seed,
		"out", cfg.OutputDir)

	driver := sim.NewDriver(cfg, m)
	if err := driver.Run(); err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("simulation complete", "runs", cfg.Runs)
}
