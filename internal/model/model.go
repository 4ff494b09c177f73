// Package model is the boundary to the external simulator's project files.
//
// A Model exposes the handful of things the scenario engine needs: named
// parameter slots that cases mutate, the spatial domain used to decide whether
// an observable locator applies, and a mining table through which observables
// are requested before a run and read back after it.
package model

import (
	"math"
)

// Model is a simulator project the engine can mutate, persist and mine.
type Model interface {
	// Path is where the project is stored, empty for unsaved models.
	Path() string
	Domain() Domain

	// Parameter returns the numeric values stored under key.
	Parameter(key string) ([]float64, error)
	SetParameter(key string, vals []float64) error
	// Option returns a categorical setting such as a lithology name.
	Option(key string) (string, error)
	SetOption(key, value string) error

	HasProperty(name string) bool
	HasReservoir(name string) bool
	// RequestProperty asks the simulator to keep name in its output.
	RequestProperty(name string) error

	Table() *MiningTable

	// CopyTo writes a copy of the project at path and returns it.
	CopyTo(path string) (Model, error)
	Save() error
}

// Domain is the axis-aligned box covered by the model grid, plus its age range.
type Domain struct {
	XMin float64 `yaml:"xmin"`
	XMax float64 `yaml:"xmax"`
	YMin float64 `yaml:"ymin"`
	YMax float64 `yaml:"ymax"`
	ZMin float64 `yaml:"zmin"`
	ZMax float64 `yaml:"zmax"`
	// AgeMax is the oldest event in Ma, 0 means present day only.
	AgeMax float64 `yaml:"age_max"`
}

// ContainsXY reports whether (x, y) lies on the grid.
func (d Domain) ContainsXY(x, y float64) bool {
	return x >= d.XMin && x <= d.XMax && y >= d.YMin && y <= d.YMax
}

// Contains reports whether (x, y, z) lies in the grid volume.
func (d Domain) Contains(x, y, z float64) bool {
	return d.ContainsXY(x, y) && z >= d.ZMin && z <= d.ZMax
}

// ContainsAge reports whether age is inside the simulated history.
func (d Domain) ContainsAge(age float64) bool {
	return age >= 0 && age <= d.AgeMax
}

// Undefined marks a mining table column that does not take part in matching.
var Undefined = math.NaN()

// IsUndefined reports whether v is the Undefined marker.
func IsUndefined(v float64) bool { return math.IsNaN(v) }
