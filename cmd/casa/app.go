package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/casa-core/internal/ledger"
	"github.com/GoSim-25-26J-441/casa-core/internal/metrics"
	"github.com/GoSim-25-26J-441/casa-core/internal/scenario"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
	"github.com/GoSim-25-26J-441/casa-core/pkg/config"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
)

// app holds what every command needs: the configuration, the scenario
// restored from its state file (or built from the configuration) and the
// collaborators that must be closed on exit.
type app struct {
	cfg     *config.Scenario
	scen    *scenario.Scenario
	format  serial.Format
	state   string
	store   ledger.Store
	closers []func() error
	log     *slog.Logger
}

// loadConfig reads the scenario file, applies environment overrides and
// resolves relative paths against the file's directory.
func loadConfig(path string) (*config.Scenario, error) {
	cfg, err := config.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.BaseCase, &cfg.Location} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	if cfg.Ledger != nil && cfg.Ledger.Driver == "sqlite" && cfg.Ledger.DSN != "" && !filepath.IsAbs(cfg.Ledger.DSN) {
		cfg.Ledger.DSN = filepath.Join(dir, cfg.Ledger.DSN)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Scenario) *slog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if level == "" {
		level = "info"
	}
	logger.SetDefault(logger.NewText(level, os.Stderr))
	return logger.Component("casa")
}

// startMetrics serves the Prometheus registry when the scenario asks for it.
func (a *app) startMetrics(reg *prometheus.Registry) {
	if a.cfg.Metrics == nil || a.cfg.Metrics.Addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server error", "error", err)
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// openApp prepares a command. The scenario is restored from the state file
// when it exists.
func openApp() (*app, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}
	format, err := serial.ParseFormat(stateType)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, format: format, state: stateFile, log: setupLogger(cfg)}
	if a.state == "" {
		a.state = filepath.Join(cfg.Location, fmt.Sprintf("casa-state.%s", format))
	}

	reg := prometheus.NewRegistry()
	a.startMetrics(reg)

	runner, closeRunner, err := scenario.NewRunner(cfg.RunManager)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closeRunner)
	if a.store, err = scenario.OpenLedger(cfg.Ledger); err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	opts := []scenario.Option{
		scenario.WithRunner(runner),
		scenario.WithLedger(a.store),
		scenario.WithMetrics(metrics.MustNewCollector(reg)),
		scenario.WithLogger(a.log),
	}
	if _, statErr := os.Stat(a.state); statErr == nil {
		a.log.Info("restoring scenario", "state", a.state)
		a.scen, err = scenario.Load(a.state, format, opts...)
	} else {
		a.scen, err = scenario.FromConfig(cfg, opts...)
	}
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// save writes the scenario state.
func (a *app) save() error {
	if err := os.MkdirAll(filepath.Dir(a.state), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return a.scen.Save(a.state, a.format)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
