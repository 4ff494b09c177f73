// Package ledger records every case the calibration loop submits to a run
// manager.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEntryNotFound is returned for unknown entry ids.
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrEntryExists is returned when an id is reused.
	ErrEntryExists = errors.New("ledger entry already exists")
)

// State mirrors the run case states.
const (
	StateNotSubmitted = "NotSubmitted"
	StateRunning      = "Running"
	StateCompleted    = "Completed"
	StateFailed       = "Failed"
)

// Entry is one submitted case.
type Entry struct {
	ID          string
	ScenarioID  string
	Label       string
	Iteration   int
	ProjectPath string
	// Parameters are the optimizer coordinates in physical units.
	Parameters   []float64
	State        string
	Error        string
	ResidualNorm float64
	CreatedAt    time.Time
	StartedAt    time.Time
	EndedAt      time.Time
}

// Terminal reports whether the entry reached Completed or Failed.
func (e Entry) Terminal() bool {
	return e.State == StateCompleted || e.State == StateFailed
}

// Store persists entries.
type Store interface {
	Create(ctx context.Context, e Entry) (Entry, error)
	SetState(ctx context.Context, id, state, errMsg string) (Entry, error)
	SetResidual(ctx context.Context, id string, norm float64) error
	Get(ctx context.Context, id string) (Entry, error)
	// List returns the entries of a scenario by iteration.
	List(ctx context.Context, scenarioID string) ([]Entry, error)
	Close() error
}

// prepare fills the defaults of a new entry.
func prepare(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.State == "" {
		e.State = StateNotSubmitted
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	e.Parameters = append([]float64(nil), e.Parameters...)
	return e
}

// transition applies a state change and its timestamps.
func transition(e *Entry, state, errMsg string) {
	e.State = state
	if errMsg != "" {
		e.Error = errMsg
	}
	switch state {
	case StateRunning:
		if e.StartedAt.IsZero() {
			e.StartedAt = now()
		}
	case StateCompleted, StateFailed:
		e.EndedAt = now()
	}
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
