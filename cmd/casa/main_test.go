package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/casa-core/internal/calibration"
	"github.com/GoSim-25-26J-441/casa-core/internal/lm"
	"github.com/GoSim-25-26J-441/casa-core/internal/montecarlo"
)

const minimalScenario = `
base_case: base/project.yaml
location: work
parameters:
  - name: A
    kind: continuous
    min: [0]
    max: [10]
    base: [1]
observables:
  - kind: GridPropertyXYZ
    property: Temperature
    x: 1
    y: 1
    z: 1
run_manager:
  type: exec
  command: "true"
ledger:
  driver: sqlite
  dsn: ledger.db
`

func TestLoadConfigResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(minimalScenario), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if want := filepath.Join(dir, "base", "project.yaml"); cfg.BaseCase != want {
		t.Errorf("base_case = %s, want %s", cfg.BaseCase, want)
	}
	if want := filepath.Join(dir, "work"); cfg.Location != want {
		t.Errorf("location = %s, want %s", cfg.Location, want)
	}
	if want := filepath.Join(dir, "ledger.db"); cfg.Ledger.DSN != want {
		t.Errorf("dsn = %s, want %s", cfg.Ledger.DSN, want)
	}
}

func TestBestSample(t *testing.T) {
	res := &montecarlo.Result{Samples: []montecarlo.Sample{
		{Misfit: math.NaN()}, {Misfit: 3}, {Misfit: 1}, {Misfit: 2},
	}}
	if got := bestSample(res); got != 2 {
		t.Errorf("bestSample = %d, want 2", got)
	}
	res = &montecarlo.Result{Samples: []montecarlo.Sample{{Misfit: math.NaN()}}}
	if got := bestSample(res); got != -1 {
		t.Errorf("bestSample without misfit = %d, want -1", got)
	}
}

func TestPrintCalibration(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	res := &calibration.Result{
		Norm:        0.01,
		Iterations:  3,
		Evaluations: 9,
		Status:      lm.Converged,
		Reason:      "ftol",
		History: []lm.Step{
			{Iteration: 1, Norm: 4}, {Iteration: 2, Norm: 1}, {Iteration: 3, Norm: 0.01},
		},
	}
	printCalibration(cmd, res, true)
	out := buf.String()
	for _, want := range []string{"after 3 iterations and 9 cases", "residual norm per iteration"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}
