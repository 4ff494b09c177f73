// Package runmgr runs materialized cases through an external simulator,
// either as a local process or through a remote run manager over gRPC.
package runmgr

import (
	"context"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/metrics"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
)

// Runner executes one materialized case to completion. It blocks until the
// simulator has finished. A nil error means the run completed.
type Runner interface {
	Run(ctx context.Context, c *runcase.Case, scenarioID string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, c *runcase.Case, scenarioID string) error

func (f RunnerFunc) Run(ctx context.Context, c *runcase.Case, scenarioID string) error {
	return f(ctx, c, scenarioID)
}

// Submit runs c through r and moves it to Running and then Completed or
// Failed. A runner error is returned as RunManagerError.
func Submit(ctx context.Context, r Runner, c *runcase.Case, scenarioID string, m *metrics.Collector, log *slog.Logger) error {
	log = logger.OrComponent(log, "runmgr")
	c.SetState(runcase.Running)
	start := time.Now()
	log.Debug("case submitted", "scenario", scenarioID, "project", c.ProjectPath())

	err := r.Run(ctx, c, scenarioID)
	state := runcase.Completed
	if err != nil {
		state = runcase.Failed
		err = casaerr.Wrap(casaerr.RunManagerError, "runmgr.Submit", err, "case %s failed", c.ProjectPath())
	}
	c.SetState(state)
	m.RecordCaseRun(state.String(), time.Since(start))
	log.Info("case finished", "scenario", scenarioID, "project", c.ProjectPath(), "state", state, "duration", time.Since(start))
	return err
}
