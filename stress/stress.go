// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stress converts a titer table plus column bases into table
// distances, and evaluates the map stress and its gradient over a
// layout. The resulting Problem is shaped exactly like
// gonum.org/v1/gonum/optimize.Problem (a Func and a Grad closure over a
// flat []float64), so relax.Run can hand it straight to
// optimize.Minimize.
package stress

import (
	"math"

	"github.com/skepner/acmacs-chart/table"
	"github.com/skepner/acmacs-chart/titer"
)

// sigmoidSlope controls how sharply sigmoidStep transitions around 0; it
// only needs to be steep enough that the thresholded terms behave like a
// one-sided penalty while keeping a continuous derivative for the
// optimizer.
const sigmoidSlope = 50.0

// sigmoidStep is a smooth one-sided ramp: ~1 for x « 0, ~0 for x » 0,
// with a continuous derivative everywhere.
func sigmoidStep(x float64) float64 {
	return 1 / (1 + math.Exp(sigmoidSlope*x))
}

// dSigmoidStep is the derivative of sigmoidStep.
func dSigmoidStep(x float64) float64 {
	s := sigmoidStep(x)
	return -sigmoidSlope * s * (1 - s)
}

// CellDistance is one precomputed non-don't-care titer cell: its two
// layout point indexes (antigen point i, serum point numAntigens+j), its
// table distance, and its kind (which selects the stress term shape).
type CellDistance struct {
	AntigenPoint int
	SerumPoint   int
	TableDistance float64
	Kind          titer.Kind
}

// Options controls which cells contribute to stress and how.
type Options struct {
	// DodgyTiterIsRegular makes dodgy cells contribute a plain diff²
	// term like a regular titer; otherwise they contribute nothing.
	DodgyTiterIsRegular bool

	// MultiplyAntigenTiterUntilColumnAdjust is the historical per-row
	// multiplier mode described in spec.md §4.E. Its exact legacy
	// formula is not fully specified there, and the teacher's own v3
	// code (original_source/cc/chart/v3/projections.hh:50-51) carries
	// calculate_stress/calculate_gradient overloads taking this same
	// flag only as a commented-out, never-implemented signature — so
	// this implementation accepts the flag (for API and round-trip
	// compatibility with imported projections that record it) but does
	// not alter table distances when it is set. Default: true, matching
	// the historical default, with no numeric effect.
	MultiplyAntigenTiterUntilColumnAdjust bool
}

// DefaultOptions returns the spec.md §4.E defaults.
func DefaultOptions() Options {
	return Options{DodgyTiterIsRegular: false, MultiplyAntigenTiterUntilColumnAdjust: true}
}

// Precompute builds the list of table distances for every non-don't-care
// cell of t, given the effective column bases cb and an optional
// avidity-adjust vector (length numAntigens+numSera; nil means no
// adjustment). Cells touching a point in disconnected (indexed by point
// number, antigens [0,numAntigens) then sera [numAntigens,numAntigens+
// numSera)) are dropped: disconnected points contribute 0 to stress,
// whether they appear as the antigen or the serum side of a cell
// (spec.md §4.E). It is computed once per relax call so stress/gradient
// evaluations don't re-parse titers on every iteration.
func Precompute(t *table.Table, cb *table.ColumnBases, avidityAdjusts []float64, disconnected map[int]bool) []CellDistance {
	numAntigens := t.NumAntigens()
	cells := t.TitersExisting()
	out := make([]CellDistance, 0, len(cells))
	for _, c := range cells {
		serumPoint := numAntigens + c.Serum
		if disconnected[c.Antigen] || disconnected[serumPoint] {
			continue
		}
		adjustI, adjustJ := 0.0, 0.0
		if avidityAdjusts != nil {
			adjustI = avidityAdjusts[c.Antigen]
			adjustJ = avidityAdjusts[serumPoint]
		}
		tableDistance := cb.Get(c.Serum) - c.Titer.LoggedForColumnBases() + adjustI + adjustJ
		out = append(out, CellDistance{
			AntigenPoint:  c.Antigen,
			SerumPoint:    serumPoint,
			TableDistance: tableDistance,
			Kind:          c.Titer.Kind(),
		})
	}
	return out
}

// Problem is the stress function and its gradient over a flat layout
// vector x (length numPoints*dims). Coordinates of disconnected points
// are expected to have already been replaced with 0 by the caller (see
// relax's scoped disconnected-point handling). Grad adds no gradient for
// a cell whose map distance is below 1e-12, where the direction is
// undefined; Func still adds that cell's term for its diff.
type Problem struct {
	Dims      int
	Distances []CellDistance
	Options   Options
}

// Func evaluates the stress at x.
func (p *Problem) Func(x []float64) float64 {
	total := 0.0
	for _, d := range p.Distances {
		mapDistance := pointDistance(x, p.Dims, d.AntigenPoint, d.SerumPoint)
		diff := mapDistance - d.TableDistance
		total += p.contribution(d.Kind, diff)
	}
	return total
}

// Grad evaluates the gradient of the stress at x into grad, which must
// have the same length as x.
func (p *Problem) Grad(grad, x []float64) {
	for i := range grad {
		grad[i] = 0
	}
	for _, d := range p.Distances {
		mapDistance := pointDistance(x, p.Dims, d.AntigenPoint, d.SerumPoint)
		if mapDistance < 1e-12 {
			continue
		}
		diff := mapDistance - d.TableDistance
		dContribution := p.dContribution(d.Kind, diff)
		if dContribution == 0 {
			continue
		}
		ai := d.AntigenPoint * p.Dims
		si := d.SerumPoint * p.Dims
		for k := 0; k < p.Dims; k++ {
			delta := x[ai+k] - x[si+k]
			g := dContribution * delta / mapDistance
			grad[ai+k] += g
			grad[si+k] -= g
		}
	}
}

func pointDistance(x []float64, dims, p, q int) float64 {
	sum := 0.0
	pi, qi := p*dims, q*dims
	for k := 0; k < dims; k++ {
		diff := x[pi+k] - x[qi+k]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func (p *Problem) contribution(kind titer.Kind, diff float64) float64 {
	switch kind {
	case titer.Regular:
		return diff * diff
	case titer.LessThan:
		return sigmoidStep(diff) * diff * diff
	case titer.MoreThan:
		return sigmoidStep(-diff) * diff * diff
	case titer.Dodgy:
		if p.Options.DodgyTiterIsRegular {
			return diff * diff
		}
		return 0
	default:
		return 0
	}
}

func (p *Problem) dContribution(kind titer.Kind, diff float64) float64 {
	switch kind {
	case titer.Regular:
		return 2 * diff
	case titer.LessThan:
		s := sigmoidStep(diff)
		ds := dSigmoidStep(diff)
		return ds*diff*diff + s*2*diff
	case titer.MoreThan:
		s := sigmoidStep(-diff)
		ds := -dSigmoidStep(-diff) // chain rule for sigmoidStep(-diff)
		return ds*diff*diff + s*2*diff
	case titer.Dodgy:
		if p.Options.DodgyTiterIsRegular {
			return 2 * diff
		}
		return 0
	default:
		return 0
	}
}
