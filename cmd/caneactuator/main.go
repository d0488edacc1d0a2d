// Command caneactuator runs the actuation side of the cane: it receives
// control packets and drives the motor, decaying to rest when the link
// goes quiet.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"

	"github.com/banshee-data/guidecane/internal/actuator"
	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/monitoring"
	"github.com/banshee-data/guidecane/internal/packet"
	"github.com/banshee-data/guidecane/internal/version"
)

var (
	deployPath  = flag.String("config", "", "Deployment YAML (defaults to UDP loopback)")
	tuningPath  = flag.String("tuning", "", "Tuning JSON (overrides tuning_path from the deployment)")
	driverName  = flag.String("driver", "", "Motor driver: recording or pwm (overrides the deployment)")
	reportEvery = flag.Duration("report", 5*time.Second, "Interval between status log lines (0 disables)")
	devMode     = flag.Bool("dev", false, "Development logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

type motor interface {
	actuator.Driver
	actuator.Pulser
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("caneactuator %s\n", version.String())
		return
	}

	logger, err := monitoring.NewZapLogger(*devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	restore := monitoring.UseZap(logger)
	defer restore()

	deploy := config.DefaultDeploymentConfig()
	if *deployPath != "" {
		if deploy, err = config.LoadDeploymentConfig(*deployPath); err != nil {
			logger.Fatal("failed to load deployment", zap.Error(err))
		}
	}
	if *driverName != "" {
		deploy.Actuator.Driver = *driverName
	}
	path := deploy.TuningPath
	if *tuningPath != "" {
		path = *tuningPath
	}
	tuning, err := config.LoadTuningConfig(path)
	if err != nil {
		logger.Warn("using built-in tuning defaults", zap.String("path", path), zap.Error(err))
		tuning = config.DefaultTuningConfig()
	}

	if err := run(logger, deploy, tuning); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("caneactuator failed", zap.Error(err))
	}
	logger.Info("graceful shutdown complete")
}

func newMotor(cfg config.ActuatorConfig) (motor, func() error, error) {
	switch cfg.Driver {
	case "pwm":
		d, err := actuator.NewPWMDriver(actuator.PWMConfig{
			PWMPin:    cfg.PWMPin,
			DirPin:    cfg.DirPin,
			PulsePin:  cfg.PulsePin,
			Frequency: physic.Frequency(cfg.PWMFrequencyHz) * physic.Hertz,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, d.Halt, nil
	default:
		return actuator.NewRecordingDriver(1024), func() error { return nil }, nil
	}
}

func run(logger *zap.Logger, deploy *config.DeploymentConfig, tuning *config.TuningConfig) (err error) {
	clk := clock.New()

	codec, err := packet.ParseProtocol(deploy.Protocol, tuning.GetDiscreteThreshold())
	if err != nil {
		return err
	}
	dialer, err := link.NewDialer(deploy.Link, link.RoleReceiver, clk)
	if err != nil {
		return err
	}
	drv, halt, err := newMotor(deploy.Actuator)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, halt()) }()

	// The staleness timeout follows the wire protocol in use.
	if deploy.Protocol != tuning.GetProtocol() {
		p := deploy.Protocol
		tuning.Protocol = &p
	}
	act := actuator.New(actuator.ConfigFromTuning(tuning), codec, clk, drv)
	receiver := actuator.NewReceiver(dialer, act, clk, nil)
	pulses := actuator.NewPulseTask(act, drv, clk)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		runErr error
	)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("routine failed", zap.String("routine", name), zap.Error(err))
				errMu.Lock()
				runErr = multierr.Append(runErr, fmt.Errorf("%s: %w", name, err))
				errMu.Unlock()
				stop()
			}
		}()
	}

	start("actuator", act.Run)
	start("receiver", receiver.Run)
	start("pulse", pulses.Run)
	if *reportEvery > 0 {
		start("report", func(ctx context.Context) error {
			ticker := clk.Ticker(*reportEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					st := act.Stats()
					ls := receiver.State()
					logger.Info("actuator status",
						zap.Bool("connected", ls.Connected),
						zap.Int64("received", st.Received),
						zap.Int64("rejected", st.Rejected),
						zap.Int64("stale_ticks", st.StaleTicks),
						zap.Float64("drive", st.Drive),
					)
				}
			}
		})
	}

	logger.Info("caneactuator running",
		zap.String("version", version.Version),
		zap.String("link", deploy.Link.Kind),
		zap.String("protocol", codec.Protocol()),
		zap.String("driver", deploy.Actuator.Driver),
		zap.Duration("staleness", act.Config().Staleness),
	)
	wg.Wait()
	return runErr
}
