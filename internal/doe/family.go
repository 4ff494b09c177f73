// Package doe turns experimental designs into labelled run cases.
package doe

import (
	"context"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
)

// Family selects a design algorithm.
type Family string

const (
	Tornado        Family = "Tornado"
	BoxBehnken     Family = "BoxBehnken"
	FullFactorial  Family = "FullFactorial"
	PlackettBurman Family = "PlackettBurman"
	LatinHypercube Family = "LatinHypercube"
	SpaceFilling   Family = "SpaceFilling"
)

// Families lists every supported design family.
func Families() []Family {
	return []Family{Tornado, BoxBehnken, FullFactorial, PlackettBurman, LatinHypercube, SpaceFilling}
}

// ParseFamily maps a design name to a Family, ignoring case.
func ParseFamily(s string) (Family, error) {
	for _, f := range Families() {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", casaerr.New(casaerr.ConfigError, "doe.ParseFamily", "unknown design family %q", s)
}

// Additive reports whether repeated designs of the family extend each other
// rather than repeat the same pattern.
func (f Family) Additive() bool {
	return f == SpaceFilling
}

// NeedsSampleCount reports whether the family takes its size from the caller.
func (f Family) NeedsSampleCount() bool {
	return f == LatinHypercube || f == SpaceFilling
}

// Request describes the design space handed to a Provider. Continuous bounds
// are given as the min and max boundary vectors over every continuous
// sub-parameter; the provider answers in normalized [-1, 1] coordinates.
type Request struct {
	Family      Family
	Min         []float64
	Max         []float64
	Base        []float64
	Levels      []int
	BaseLevels  []int
	SampleCount int
	// Existing holds normalized continuous points from earlier designs of an
	// additive family. New points must not repeat them.
	Existing [][]float64
}

// ContinuousDim is the number of continuous coordinates.
func (r Request) ContinuousDim() int { return len(r.Min) }

// Sample is one raw design point.
type Sample struct {
	Continuous  []float64
	Categorical []int
}

// Provider produces raw design points.
type Provider interface {
	Design(ctx context.Context, req Request) ([]Sample, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) ([]Sample, error)

func (f ProviderFunc) Design(ctx context.Context, req Request) ([]Sample, error) { return f(ctx, req) }
