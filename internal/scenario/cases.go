package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/runmgr"
)

func (s *Scenario) projectName() string {
	name := filepath.Base(s.basePath)
	if s.basePath == "" || name == "." || name == string(filepath.Separator) {
		return "project.yaml"
	}
	return name
}

// iterationDir names the folder of the next iteration, suffixed with the
// active filter of set.
func (s *Scenario) iterationDir(set *runcase.Set) string {
	name := fmt.Sprintf("Iteration_%d", s.iteration+1)
	if f := set.Filter(); len(f) > 0 {
		name += "_" + strings.Join(f, "_")
	}
	return filepath.Join(s.location, name)
}

// ApplyMutations materializes every visible case of set as a project under
// <location>/Iteration_<N>[_<filter>]/Case_<M> and advances the iteration.
func (s *Scenario) ApplyMutations(set *runcase.Set) error {
	const op = "Scenario.ApplyMutations"
	if s.location == "" {
		return casaerr.New(casaerr.UndefinedValue, op, "scenario %s has no location", s.id)
	}
	base, err := s.BaseCase()
	if err != nil {
		return err
	}
	dir := s.iterationDir(set)
	for i := range set.Size() {
		c := set.Case(i)
		path := filepath.Join(dir, fmt.Sprintf("Case_%d", i+1), s.projectName())
		if err := c.MutateTo(base, path); err != nil {
			return err
		}
	}
	s.iteration++
	s.log.Info("cases materialized", "folder", dir, "cases", set.Size())
	return nil
}

// ValidateCaseSet checks every visible case against its project and reports
// all violations in one ValidationError.
func (s *Scenario) ValidateCaseSet(set *runcase.Set) error {
	var msgs []string
	for i := range set.Size() {
		if err := set.Case(i).Validate(); err != nil {
			msgs = append(msgs, fmt.Sprintf("case %d: %v", i+1, err))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return casaerr.New(casaerr.ValidationError, "Scenario.ValidateCaseSet",
		"%d of %d cases are invalid:\n%s", len(msgs), set.Size(), strings.Join(msgs, "\n"))
}

// RequestObservables adds the catalog requests to the project of every
// visible case.
func (s *Scenario) RequestObservables(set *runcase.Set) error {
	const op = "Scenario.RequestObservables"
	for i := range set.Size() {
		c := set.Case(i)
		m, err := c.Model()
		if err != nil {
			return err
		}
		if err := s.catalog.RequestInModel(m); err != nil {
			return casaerr.Wrap(casaerr.CodeOf(err), op, err, "case %d", i+1)
		}
		if err := m.Save(); err != nil {
			return err
		}
	}
	return nil
}

// RunCases submits every visible case that was not submitted yet, one after
// the other. Failed cases stay in the set marked Failed; the error reports
// how many failed.
func (s *Scenario) RunCases(ctx context.Context, set *runcase.Set) error {
	const op = "Scenario.RunCases"
	if s.runner == nil {
		return casaerr.New(casaerr.ConfigError, op, "scenario %s has no run manager", s.id)
	}
	var failed, total int
	var first error
	for i := range set.Size() {
		c := set.Case(i)
		if c.State() != runcase.NotSubmitted {
			continue
		}
		if c.ProjectPath() == "" {
			return casaerr.New(casaerr.UndefinedValue, op, "case %d has no project, apply mutations first", i+1)
		}
		total++
		if err := runmgr.Submit(ctx, s.runner, c, s.id, s.metrics, s.log); err != nil {
			failed++
			if first == nil {
				first = err
			}
			if ctx.Err() != nil {
				break
			}
		}
	}
	if failed > 0 {
		return casaerr.Wrap(casaerr.RunManagerError, op, first, "%d of %d cases failed", failed, total)
	}
	return nil
}

// CollectRunResults extracts the observables of every visible completed case.
// A no-data value left by an earlier collection is replaced; simulated values
// are kept.
func (s *Scenario) CollectRunResults(set *runcase.Set) error {
	const op = "Scenario.CollectRunResults"
	collected := 0
	for i := range set.Size() {
		c := set.Case(i)
		if c.State() != runcase.Completed {
			continue
		}
		c.Reload()
		m, err := c.Model()
		if err != nil {
			return err
		}
		vals, err := s.catalog.ExtractFrom(m)
		if err != nil {
			return casaerr.Wrap(casaerr.CodeOf(err), op, err, "case %d", i+1)
		}
		for _, v := range vals {
			if err := c.FillObservableValue(v); err != nil {
				if casaerr.Is(err, casaerr.AlreadyDefined) {
					continue
				}
				return err
			}
			s.catalog.MarkValid(v)
		}
		collected++
	}
	s.log.Info("run results collected", "cases", collected)
	return nil
}
