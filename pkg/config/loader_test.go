package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenario.yaml")
	if err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	if s.ScenarioID != "temis-calibration" {
		t.Errorf("Expected scenario_id 'temis-calibration', got '%s'", s.ScenarioID)
	}
	if len(s.Parameters) != 3 {
		t.Fatalf("Expected 3 parameters, got %d", len(s.Parameters))
	}
	if s.Parameters[1].BaseIndex != 1 {
		t.Errorf("Expected discrete base_index 1, got %d", s.Parameters[1].BaseIndex)
	}
	if got := s.Observables[1].Dimension(); got != 2 {
		t.Errorf("Expected well observable dimension 2, got %d", got)
	}
	if len(s.DoE) != 2 || s.DoE[1].Samples != 10 {
		t.Errorf("Unexpected doe section: %+v", s.DoE)
	}
	if s.MonteCarlo == nil || s.MonteCarlo.Algorithm != "MCMC" || s.MonteCarlo.Seed != 7 {
		t.Errorf("Unexpected monte_carlo section: %+v", s.MonteCarlo)
	}
	if s.RunManager.Retries == nil || s.RunManager.Retries.MaxRetries != 2 {
		t.Errorf("Unexpected retries: %+v", s.RunManager.Retries)
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestSaveScenarioRoundTrip(t *testing.T) {
	s, err := LoadScenario("testdata/scenario.yaml")
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	path := filepath.Join(t.TempDir(), "copy.yaml")
	if err := SaveScenario(path, s); err != nil {
		t.Fatalf("SaveScenario: %v", err)
	}
	back, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario(copy): %v", err)
	}
	if diff := cmp.Diff(s, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEnv(t *testing.T) {
	s, err := LoadScenario("testdata/scenario.yaml")
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	t.Setenv("CASA_LOG_LEVEL", "debug")
	t.Setenv("CASA_LOCATION", "/scratch/casa")
	t.Setenv("CASA_RUN_MANAGER_ADDR", "runmgr:9090")
	t.Setenv("CASA_LEDGER_DSN", "/scratch/ledger.db")

	if err := ApplyEnv(s); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if s.LogLevel != "debug" || s.Location != "/scratch/casa" {
		t.Errorf("log level %q, location %q", s.LogLevel, s.Location)
	}
	if s.RunManager.Type != "grpc" || s.RunManager.Addr != "runmgr:9090" {
		t.Errorf("run manager = %+v", s.RunManager)
	}
	if s.Ledger.Driver != "sqlite" || s.Ledger.DSN != "/scratch/ledger.db" {
		t.Errorf("ledger = %+v", s.Ledger)
	}

	t.Setenv("CASA_LOG_LEVEL", "verbose")
	if err := ApplyEnv(s); err == nil {
		t.Error("Expected invalid log level from environment to fail")
	}
}
