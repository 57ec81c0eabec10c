// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gridtest classifies every movable point of a relaxed projection
// as normal, trapped, or hemisphering by re-evaluating stress with that
// point alone moved across a regular mesh, all other points held fixed
// (spec.md §4.L). Run is embarrassingly parallel over points, the same
// semaphore-bounded goroutine fan-out relax.RunMultiple uses for its
// independent starts.
package gridtest

import (
	"math"
	"sync"

	"github.com/skepner/acmacs-chart/chart"
	"github.com/skepner/acmacs-chart/layout"
	"github.com/skepner/acmacs-chart/relax"
	"github.com/skepner/acmacs-chart/stress"
	"github.com/skepner/acmacs-chart/table"
)

// Classification is the verdict for one point after the grid search.
type Classification int

// Supported Classifications.
const (
	Normal Classification = iota
	Trapped
	Hemisphering
)

func (c Classification) String() string {
	switch c {
	case Trapped:
		return "trapped"
	case Hemisphering:
		return "hemisphering"
	default:
		return "normal"
	}
}

// Options controls the mesh search.
type Options struct {
	GridStep float64 // mesh spacing in map distance units; default 0.1

	// TrapThreshold is the minimum stress improvement (original minus
	// grid-location stress) that marks a point trapped.
	TrapThreshold float64

	// Epsilon is the stress tolerance within which a non-original grid
	// location counts as "flat" with the original, marking a point
	// hemisphering.
	Epsilon float64

	// Radius is the mesh half-width around each point. 0 defaults to
	// the layout's diameter (spec.md §4.L step 1: "large enough to
	// detect hemisphering").
	Radius float64

	Threads int // 0 or 1: sequential; >1: parallel fan-out across points
}

// DefaultOptions returns the spec.md §4.L defaults. grid_step's 0.1
// default is the one named in the teacher's own relax command
// (cc/chart/v2/chart-relax.cc's grid-step option); TrapThreshold and
// Epsilon have no stated default, so small values that only flag a
// genuine improvement or a genuinely flat direction are used.
func DefaultOptions() Options {
	return Options{
		GridStep:      0.1,
		TrapThreshold: 0.005,
		Epsilon:       1e-4,
		Threads:       1,
	}
}

// PointResult is one point's classification and, for a trapped or
// hemisphering point, the best alternative location found on the mesh.
type PointResult struct {
	Point          int
	Classification Classification
	OriginalStress float64
	BestStress     float64
	BestLocation   []float64
}

// Result collects every non-fixed point's PointResult. Unmovable and
// disconnected points are never graded and so never appear here.
type Result struct {
	Points []PointResult
}

// TrappedOrHemisphering returns the point indexes Apply would move.
func (r *Result) TrappedOrHemisphering() []int {
	var out []int
	for _, p := range r.Points {
		if p.Classification == Trapped || p.Classification == Hemisphering {
			out = append(out, p.Point)
		}
	}
	return out
}

// Run grades every non-unmovable, non-disconnected point of p against a
// regular mesh of offsets, all other points held at their current
// location (spec.md §4.L steps 1-3).
func Run(t *table.Table, cb *table.ColumnBases, p *chart.Projection, opts Options) *Result {
	dims := p.Dims()
	n := p.NumPoints()
	if dims == 0 || n == 0 {
		return &Result{}
	}

	step := opts.GridStep
	if step <= 0 {
		step = 0.1
	}
	radius := opts.Radius
	if radius <= 0 {
		radius = layoutDiameter(p.Layout)
		if radius <= 0 {
			radius = step
		}
	}
	offsets := enumerateOffsets(dims, radius, step)

	distances := stress.Precompute(t, cb, p.AvidityAdjusts, p.Disconnected)
	problem := &stress.Problem{Dims: dims, Distances: distances, Options: stress.DefaultOptions()}
	base := append([]float64(nil), p.Layout.Raw()...)

	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	results := make([]PointResult, n)
	graded := make([]bool, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, threads)
	for i := 0; i < n; i++ {
		if p.Unmovable[i] || p.Disconnected[i] {
			continue
		}
		graded[i] = true
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = classifyPoint(problem, base, dims, i, offsets, opts)
		}(i)
	}
	wg.Wait()

	out := make([]PointResult, 0, n)
	for i := 0; i < n; i++ {
		if graded[i] {
			out = append(out, results[i])
		}
	}
	return &Result{Points: out}
}

// Apply moves every trapped or hemisphering point to its best location
// and relaxes the projection from there (spec.md §4.L step 4).
func Apply(t *table.Table, cb *table.ColumnBases, p *chart.Projection, result *Result, relaxOpts relax.Options) relax.Status {
	for _, r := range result.Points {
		if r.Classification == Trapped || r.Classification == Hemisphering {
			p.Layout.SetPoint(r.Point, r.BestLocation)
		}
	}
	relaxOpts.Incremental = true
	return relax.Run(t, cb, p, relaxOpts)
}

func classifyPoint(problem *stress.Problem, base []float64, dims, point int, offsets [][]float64, opts Options) PointResult {
	x := append([]float64(nil), base...)
	original := append([]float64(nil), base[point*dims:point*dims+dims]...)
	originalStress := problem.Func(x)

	bestStress := originalStress
	bestOffset := make([]float64, dims)
	hemisphering := false

	for _, off := range offsets {
		if isZero(off) {
			continue
		}
		for k := 0; k < dims; k++ {
			x[point*dims+k] = original[k] + off[k]
		}
		s := problem.Func(x)
		if s < bestStress {
			bestStress = s
			bestOffset = off
		}
		if math.Abs(s-originalStress) <= opts.Epsilon {
			hemisphering = true
		}
	}

	result := PointResult{Point: point, OriginalStress: originalStress}
	switch {
	case originalStress-bestStress > opts.TrapThreshold:
		result.Classification = Trapped
		result.BestStress = bestStress
		result.BestLocation = offsetLocation(original, bestOffset)
	case hemisphering:
		result.Classification = Hemisphering
		result.BestStress = bestStress
		result.BestLocation = offsetLocation(original, bestOffset)
	default:
		result.Classification = Normal
		result.BestStress = originalStress
		result.BestLocation = original
	}
	return result
}

func offsetLocation(original, offset []float64) []float64 {
	out := make([]float64, len(original))
	for k := range out {
		out[k] = original[k] + offset[k]
	}
	return out
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func layoutDiameter(l *layout.Layout) float64 {
	n := l.NumPoints()
	max := 0.0
	for i := 0; i < n; i++ {
		if !l.PointHasCoordinates(i) {
			continue
		}
		for j := i + 1; j < n; j++ {
			if !l.PointHasCoordinates(j) {
				continue
			}
			if d := l.Distance(i, j); d > max {
				max = d
			}
		}
	}
	return max
}

// enumerateOffsets returns the Cartesian product of per-axis offsets
// {-n*step, ..., 0, ..., n*step} with n = floor(radius/step), one axis
// per dimension. Grows as (2n+1)^dims; intended for the 2-3 dimensional
// projections gridtest is normally run against.
func enumerateOffsets(dims int, radius, step float64) [][]float64 {
	n := int(math.Floor(radius/step + 1e-9))
	axis := make([]float64, 0, 2*n+1)
	for i := -n; i <= n; i++ {
		axis = append(axis, float64(i)*step)
	}
	return cartesianProduct(axis, dims)
}

func cartesianProduct(values []float64, dims int) [][]float64 {
	if dims == 0 {
		return [][]float64{{}}
	}
	rest := cartesianProduct(values, dims-1)
	out := make([][]float64, 0, len(values)*len(rest))
	for _, v := range values {
		for _, r := range rest {
			point := make([]float64, 0, dims)
			point = append(point, v)
			point = append(point, r...)
			out = append(out, point)
		}
	}
	return out
}
