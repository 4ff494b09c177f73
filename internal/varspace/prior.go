package varspace

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior is the prior density family of a continuous parameter.
type Prior int

const (
	Block Prior = iota
	Triangle
	Normal
)

func (p Prior) String() string {
	switch p {
	case Block:
		return "Block"
	case Triangle:
		return "Triangle"
	case Normal:
		return "Normal"
	default:
		return fmt.Sprintf("Prior(%d)", int(p))
	}
}

// ParsePrior maps a configuration name to a Prior. Empty means Block.
func ParsePrior(s string) (Prior, error) {
	switch strings.ToLower(s) {
	case "", "block", "uniform":
		return Block, nil
	case "triangle":
		return Triangle, nil
	case "normal":
		return Normal, nil
	}
	return 0, fmt.Errorf("unknown prior %q", s)
}

// outsidePenalty grows steeply with the distance d outside a range of width w.
func outsidePenalty(d, w float64) float64 {
	if w <= 0 {
		return math.Exp(1)
	}
	return math.Exp(1 + 100*d/w)
}

// minDensityRatio bounds the triangle penalty at the range ends.
const minDensityRatio = 1e-12

// penalty returns the soft-constraint residual of x for one sub-parameter.
func penalty(prior Prior, x, lo, hi, base, sigma float64) float64 {
	if x < lo {
		return outsidePenalty(lo-x, hi-lo)
	}
	if x > hi {
		return outsidePenalty(x-hi, hi-lo)
	}
	if hi-lo <= 0 {
		return 0
	}

	switch prior {
	case Triangle:
		tri := distuv.NewTriangle(lo, hi, base, nil)
		ratio := tri.Prob(x) / tri.Prob(base)
		if ratio < minDensityRatio {
			ratio = minDensityRatio
		}
		return math.Sqrt(-2 * math.Log(ratio))
	case Normal:
		if sigma <= 0 {
			return 0
		}
		return math.Abs(x-base) / sigma
	default:
		return 0
	}
}

// logDensity is the log prior density of x up to a constant, -Inf outside [lo, hi].
func logDensity(prior Prior, x, lo, hi, base, sigma float64) float64 {
	if x < lo || x > hi {
		return math.Inf(-1)
	}
	if hi-lo <= 0 {
		return 0
	}
	switch prior {
	case Triangle:
		p := distuv.NewTriangle(lo, hi, base, nil).Prob(x)
		if p <= 0 {
			return math.Inf(-1)
		}
		return math.Log(p)
	case Normal:
		if sigma <= 0 {
			return 0
		}
		return distuv.Normal{Mu: base, Sigma: sigma}.LogProb(x)
	default:
		return -math.Log(hi - lo)
	}
}
