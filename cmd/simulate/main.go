// Command simulate runs the decision and actuation sides in one process
// over a lossy in-memory link and prints what happened.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/monitoring"
)

var (
	duration   = flag.Duration("duration", 10*time.Second, "How long to run")
	scene      = flag.String("scene", "approach", "Synthetic scene: clear, wall, doorway, approach")
	fps        = flag.Float64("fps", 15, "Frame rate")
	loss       = flag.Float64("loss", 0.1, "Packet loss probability [0, 1]")
	latency    = flag.Duration("latency", 5*time.Millisecond, "One-way link latency")
	seed       = flag.Int64("seed", 1, "Loss random seed")
	dropAt     = flag.Duration("drop-at", 4*time.Second, "When to take the link down")
	dropFor    = flag.Duration("drop-for", time.Second, "How long the link stays down (0 disables)")
	tuningPath = flag.String("tuning", "", "Tuning JSON")
	verbose    = flag.Bool("v", false, "Log component diagnostics")
)

func main() {
	flag.Parse()

	logger, err := monitoring.NewZapLogger(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if *verbose {
		defer monitoring.UseZap(logger)()
	} else {
		monitoring.SetLogger(nil)
	}

	tuning := config.DefaultTuningConfig()
	if *tuningPath != "" {
		if tuning, err = config.LoadTuningConfig(*tuningPath); err != nil {
			logger.Fatal("failed to load tuning", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := Simulate(ctx, Options{
		Duration: *duration,
		Scene:    *scene,
		FPS:      *fps,
		Loss:     *loss,
		Latency:  *latency,
		Seed:     *seed,
		DropAt:   *dropAt,
		DropFor:  *dropFor,
		Tuning:   tuning,
	})
	summary.Print(os.Stdout)
	if err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}
}
