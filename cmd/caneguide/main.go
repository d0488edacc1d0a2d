// Command caneguide runs the decision side of the cane: range frames are
// turned into steering commands and streamed to the actuator.
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

	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/monitor"
	"github.com/banshee-data/guidecane/internal/monitoring"
	"github.com/banshee-data/guidecane/internal/packet"
	"github.com/banshee-data/guidecane/internal/pipeline"
	"github.com/banshee-data/guidecane/internal/rangeframe"
	"github.com/banshee-data/guidecane/internal/safety"
	"github.com/banshee-data/guidecane/internal/telemetry"
	"github.com/banshee-data/guidecane/internal/version"
)

var (
	deployPath  = flag.String("config", "", "Deployment YAML (defaults to UDP loopback)")
	tuningPath  = flag.String("tuning", "", "Tuning JSON (overrides tuning_path from the deployment)")
	sceneName   = flag.String("scene", "approach", "Synthetic scene: clear, wall, doorway, approach")
	fps         = flag.Float64("fps", 15, "Frame rate of the synthetic range source")
	label       = flag.String("label", "", "Telemetry session label")
	devMode     = flag.Bool("dev", false, "Development logging")
	noWatch     = flag.Bool("no-watch", false, "Disable tuning hot reload")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("caneguide %s\n", version.String())
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

	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		if deploy.Telemetry.DBPath == "" {
			logger.Fatal("migrate needs telemetry.db_path in the deployment config")
		}
		if err := telemetry.RunMigrateCommand(os.Stdout, args[1:], deploy.Telemetry.DBPath); err != nil {
			logger.Fatal("migrate failed", zap.Error(err))
		}
		return
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

	if err := run(logger, deploy, tuning, path); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("caneguide failed", zap.Error(err))
	}
	logger.Info("graceful shutdown complete")
}

func run(logger *zap.Logger, deploy *config.DeploymentConfig, tuning *config.TuningConfig, tuningFile string) (err error) {
	clk := clock.New()

	codec, err := packet.ParseProtocol(deploy.Protocol, tuning.GetDiscreteThreshold())
	if err != nil {
		return err
	}
	dialer, err := link.NewDialer(deploy.Link, link.RoleSender, clk)
	if err != nil {
		return err
	}
	script, ok := rangeframe.ScriptByName(*sceneName, rangeframe.DefaultScene())
	if !ok {
		return fmt.Errorf("unknown scene %q", *sceneName)
	}

	sender := link.NewSender(codec, clk, tuning.GetSendRateHz())
	supervisor := safety.NewSupervisor(dialer, sender, clk, nil)
	pipe := pipeline.New(pipeline.Options{Tuning: tuning, Clock: clk, Sender: sender})
	supervisor.OnReset(pipe.ResetFilters)

	var (
		store    *telemetry.Store
		recorder *telemetry.Recorder
	)
	if deploy.Telemetry.DBPath != "" {
		if store, err = telemetry.Open(deploy.Telemetry.DBPath); err != nil {
			return err
		}
		session, err := store.StartSession(*label, codec.Protocol(), tuning, clk.Now())
		if err != nil {
			store.Close()
			return err
		}
		logger.Info("telemetry session started", zap.String("session", session), zap.String("db", store.Path()))
		recorder = telemetry.NewRecorder(store, session, clk)
		pipe.AddSink(recorder)
		supervisor.OnReset(func() {
			if err := store.RecordLinkEvent(session, clk.Now(), "down", ""); err != nil {
				monitoring.Logf("[Telemetry] %v", err)
			}
		})
		defer func() {
			err = multierr.Combine(err, store.EndSession(session, clk.Now()), store.Close())
		}()
	}

	var web *monitor.WebServer
	if deploy.Monitor.Listen != "" {
		cfg := monitor.WebServerConfig{
			Address:   deploy.Monitor.Listen,
			LinkState: supervisor.State,
			Sender:    sender,
			Pipeline:  pipe,
			Bias:      pipe.Bias(),
		}
		if store != nil {
			cfg.Admin = store.AttachAdminRoutes
			cfg.Extra = func() map[string]any {
				return map[string]any{"recorder": recorder.Stats(), "session": recorder.Session()}
			}
		}
		if web, err = monitor.NewWebServer(cfg); err != nil {
			return err
		}
		pipe.AddSink(web)
	}

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
			logger.Debug("routine terminated", zap.String("routine", name))
		}()
	}

	start("supervisor", supervisor.Run)
	start("sender", sender.Run)
	start("pipeline", pipe.Run)
	start("source", func(ctx context.Context) error {
		return rangeframe.NewSource(clk, *fps, script).Run(ctx, pipe.Submit)
	})
	if recorder != nil {
		start("recorder", recorder.Run)
	}
	if web != nil {
		start("monitor", web.Start)
	}
	if !*noWatch && tuningFile != "" {
		watcher := config.NewWatcher(tuningFile, 250*time.Millisecond, pipe.UpdateTuning)
		start("tuning-watcher", watcher.Run)
	}

	logger.Info("caneguide running",
		zap.String("version", version.Version),
		zap.String("link", deploy.Link.Kind),
		zap.String("protocol", codec.Protocol()),
		zap.String("scene", *sceneName),
		zap.Float64("send_rate_hz", sender.Rate()),
	)

	wg.Wait()
	st := pipe.Stats()
	logger.Info("pipeline summary",
		zap.Int64("frames", st.Frames),
		zap.Int64("coalesced", st.Coalesced),
		zap.Int64("filter_resets", st.Resets),
	)
	return runErr
}
