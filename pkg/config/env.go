package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Overrides are the environment variables that take precedence over the
// scenario file
type Overrides struct {
	LogLevel          string `env:"CASA_LOG_LEVEL"`
	Location          string `env:"CASA_LOCATION"`
	RunManagerAddr    string `env:"CASA_RUN_MANAGER_ADDR"`
	RunManagerCommand string `env:"CASA_RUN_MANAGER_COMMAND"`
	LedgerDSN         string `env:"CASA_LEDGER_DSN"`
}

// ParseEnv loads the overrides from the environment.
func ParseEnv() (Overrides, error) {
	var o Overrides
	if err := env.Parse(&o); err != nil {
		return o, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// ApplyEnv overlays the environment on s and validates the result.
// Setting an address selects the grpc run manager, a command the exec one.
func ApplyEnv(s *Scenario) error {
	o, err := ParseEnv()
	if err != nil {
		return err
	}
	o.apply(s)
	if err := validateScenario(s); err != nil {
		return fmt.Errorf("invalid scenario after environment overrides: %w", err)
	}
	return nil
}

func (o Overrides) apply(s *Scenario) {
	if o.LogLevel != "" {
		s.LogLevel = o.LogLevel
	}
	if o.Location != "" {
		s.Location = o.Location
	}
	if o.RunManagerAddr != "" {
		s.RunManager.Type = "grpc"
		s.RunManager.Addr = o.RunManagerAddr
	}
	if o.RunManagerCommand != "" {
		s.RunManager.Type = "exec"
		s.RunManager.Command = o.RunManagerCommand
	}
	if o.LedgerDSN != "" {
		s.Ledger = &Ledger{Driver: "sqlite", DSN: o.LedgerDSN}
	}
}
