package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/darmis007/hoomd-tf/lib"
	"github.com/darmis007/hoomd-tf/lib/config"
	g_error "github.com/darmis007/hoomd-tf/lib/error"
	"github.com/darmis007/hoomd-tf/lib/metrics"
)

func main() {
	// Parse arguments.
	mode, configFile, overrides, err := lib.ParseCommandLine(os.Args[1:], os.Stderr)
	if err != nil {
		lib.PrintHelp(os.Stderr)
		g_error.External("%s", err.Error())
	}

	// Run the chosen mode.
	switch mode {
	case lib.HelpMode:
		lib.PrintHelp(os.Stdout)
	case lib.ExampleConfigMode:
		fmt.Print(config.ExampleConfig)
	case lib.CheckMode:
		Check(readConfig(configFile, overrides))
	case lib.RunMode:
		Run(readConfig(configFile, overrides))
	default:
		g_error.Internal("Mode %s was parsed but has no handler.", mode)
	}
}

func readConfig(fname string, overrides *lib.Overrides) *config.Args {
	raw, err := config.ParseFile(fname)
	if err != nil {
		g_error.External("%s", err.Error())
	}
	overrides.Overwrite(raw)

	args, err := raw.Process()
	if err != nil {
		g_error.External("The config file %s is not valid. %s",
			fname, err.Error())
	}
	return args
}

// Check runs hoomdtf's "check" mode, which looks for errors in the
// configuration without running anything.
func Check(args *config.Args) {
	errs := lib.Check(args)
	if len(errs) == 0 {
		fmt.Println("No errors detected.")
		return
	}
	for _, err := range errs {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	os.Exit(1)
}

// Run runs hoomdtf's "run" mode.
func Run(args *config.Args) {
	log := newLogger(args.LogLevel)
	defer log.Sync()

	if err := lib.SetThreads(args.Threads); err != nil {
		g_error.External("%s", err.Error())
	}

	m := serveMetrics(args.MetricsAddress, log)

	sim, err := lib.NewSim(args, log, m)
	if err != nil {
		g_error.External("Could not set up the simulation: %s", err.Error())
	}

	t0 := time.Now()
	err = sim.Run()
	if cerr := sim.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Error("run failed", zap.Error(err))
		g_error.External("%s", err.Error())
	}

	ke, pe := sim.Energy()
	log.Info("run finished", zap.Int64("steps", args.Steps),
		zap.Duration("elapsed", time.Since(t0)),
		zap.Float64("ke", ke), zap.Float64("pe", pe))
}

func newLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	log, err := cfg.Build()
	if err != nil {
		g_error.Internal("Could not build logger: %s", err.Error())
	}
	return log.With(zap.String("version", lib.Version))
}

// serveMetrics starts a Prometheus endpoint at addr/metrics and returns the
// controller metrics registered with it. It returns nil if addr is empty.
func serveMetrics(addr string, log *zap.Logger) *metrics.Metrics {
	if addr == "" {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("address", addr))

	return m
}
