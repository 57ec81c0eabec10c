// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package avidity sweeps a per-antigen avidity adjust over a logged
// range, relaxing and Procrustes-realigning the chart at every step, to
// find whether artificially boosting or lowering one antigen's avidity
// would improve the map's stress (spec.md §4.M).
package avidity

import (
	"math"
	"sort"
	"sync"

	"github.com/skepner/acmacs-chart/chart"
	"github.com/skepner/acmacs-chart/procrustes"
	"github.com/skepner/acmacs-chart/relax"
	"github.com/skepner/acmacs-chart/table"
)

// NumberOfMostMoved is the number of other antigens recorded per adjust
// step, most-moved first.
const NumberOfMostMoved = 5

// Options controls the sweep. Defaults are the teacher's own
// (cc/chart/v3/avidity-test.hh's settings_t).
type Options struct {
	AdjustStep float64 // logged avidity units per step; default 1.0
	MinAdjust  float64 // default -6.0
	MaxAdjust  float64 // default 6.0
	Threads    int     // antigens tested in parallel; 0 or 1: sequential

	RelaxOptions relax.Options
}

// DefaultOptions returns spec.md §4.M's defaults.
func DefaultOptions() Options {
	return Options{
		AdjustStep:   1.0,
		MinAdjust:    -6.0,
		MaxAdjust:    6.0,
		Threads:      1,
		RelaxOptions: relax.DefaultOptions(),
	}
}

// MostMoved names one other antigen and how far it moved for a given
// adjust.
type MostMoved struct {
	Antigen  int
	Distance float64
}

// PerAdjust records one antigen's outcome at one logged adjust value
// (spec.md §4.M step 3).
type PerAdjust struct {
	LoggedAdjust          float64
	DistanceTestAntigen   float64
	AngleTestAntigen      float64
	AverageDistanceOthers float64
	FinalCoordinates      []float64
	StressDiff            float64
	MostMoved             []MostMoved
}

// Result is one antigen's full sweep plus its best adjust.
type Result struct {
	Antigen          int
	BestLoggedAdjust float64
	Original         []float64
	Adjusts          []PerAdjust
}

// BestAdjust returns the PerAdjust entry matching BestLoggedAdjust, or
// nil if BestLoggedAdjust is 0 and no entry has that exact value (the
// "no adjust improves stress" case).
func (r *Result) BestAdjust() *PerAdjust {
	for i := range r.Adjusts {
		if r.Adjusts[i].LoggedAdjust == r.BestLoggedAdjust {
			return &r.Adjusts[i]
		}
	}
	return nil
}

// Test sweeps every antigen of c against opts' adjust range, relaxing
// and Procrustes-aligning projection for each step, in parallel across
// antigens up to opts.Threads (spec.md §4.M scheduling model, mirroring
// gridtest's and relax.RunMultiple's per-unit goroutine fan-out).
func Test(c *chart.Chart, t *table.Table, cb *table.ColumnBases, projection *chart.Projection, opts Options) []*Result {
	n := c.NumAntigens()
	results := make([]*Result, n)

	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, threads)
	for a := 0; a < n; a++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(a int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[a] = testAntigen(c, t, cb, projection, a, opts)
		}(a)
	}
	wg.Wait()
	return results
}

func testAntigen(c *chart.Chart, t *table.Table, cb *table.ColumnBases, original *chart.Projection, antigen int, opts Options) *Result {
	result := &Result{
		Antigen:  antigen,
		Original: append([]float64(nil), original.Layout.Point(antigen)...),
	}

	for adjust := opts.AdjustStep; adjust <= opts.MaxAdjust; adjust += opts.AdjustStep {
		result.Adjusts = append(result.Adjusts, testAdjust(c, t, cb, original, antigen, adjust, opts))
	}
	for adjust := -opts.AdjustStep; adjust >= opts.MinAdjust; adjust -= opts.AdjustStep {
		result.Adjusts = append(result.Adjusts, testAdjust(c, t, cb, original, antigen, adjust, opts))
	}

	if best := bestStressDiffIndex(result.Adjusts); best >= 0 && result.Adjusts[best].StressDiff < 0 {
		result.BestLoggedAdjust = result.Adjusts[best].LoggedAdjust
	}
	return result
}

func testAdjust(c *chart.Chart, t *table.Table, cb *table.ColumnBases, original *chart.Projection, antigen int, adjust float64, opts Options) PerAdjust {
	numPoints := c.NumPoints()
	adjusted := cloneProjection(original)
	adjusted.AvidityAdjusts = make([]float64, numPoints)
	copy(adjusted.AvidityAdjusts, original.AvidityAdjusts)
	adjusted.AvidityAdjusts[antigen] = adjust
	adjusted.Comment = ""

	relaxOpts := opts.RelaxOptions
	relaxOpts.Incremental = true
	status := relax.Run(t, cb, adjusted, relaxOpts)

	pairs := make([]procrustes.CommonPair, numPoints)
	for i := 0; i < numPoints; i++ {
		pairs[i] = procrustes.CommonPair{Primary: i, Secondary: i}
	}
	result := PerAdjust{
		LoggedAdjust:     adjust,
		FinalCoordinates: append([]float64(nil), adjusted.Layout.Point(antigen)...),
		StressDiff:       status.FinalStress - original.Stress,
	}

	alignment, err := procrustes.Align(original.Layout, adjusted.Layout, pairs, procrustes.Options{Scaling: false})
	if err != nil {
		return result
	}
	transformed := adjusted.Layout.Transform(alignment.Transformation)

	distances := make([]float64, c.NumAntigens())
	for i := range distances {
		distances[i] = pointDistance(original.Layout.Point(i), transformed.Point(i))
	}
	result.DistanceTestAntigen = distances[antigen]
	result.AngleTestAntigen = displacementAngle(original.Layout.Point(antigen), transformed.Point(antigen))

	sum, count := 0.0, 0
	order := make([]int, 0, len(distances))
	for i, d := range distances {
		if i == antigen {
			continue
		}
		sum += d
		count++
		order = append(order, i)
	}
	if count > 0 {
		result.AverageDistanceOthers = sum / float64(count)
	}
	sort.Slice(order, func(i, j int) bool { return distances[order[i]] > distances[order[j]] })
	for i := 0; i < len(order) && i < NumberOfMostMoved; i++ {
		result.MostMoved = append(result.MostMoved, MostMoved{Antigen: order[i], Distance: distances[order[i]]})
	}
	return result
}

func bestStressDiffIndex(adjusts []PerAdjust) int {
	best := -1
	for i, a := range adjusts {
		if best < 0 || a.StressDiff < adjusts[best].StressDiff {
			best = i
		}
	}
	return best
}

func pointDistance(a, b []float64) float64 {
	sum := 0.0
	for k := range a {
		diff := a[k] - b[k]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// displacementAngle is the direction (radians, atan2 convention) of the
// displacement from a to b in the layout's first two dimensions. spec.md
// §4.M names "angle moved" without defining the reference axis; this
// returns the planar angle of the displacement vector itself, which is
// what every 2-D chart plot (the common case) would show.
func displacementAngle(a, b []float64) float64 {
	if len(a) < 2 {
		return 0
	}
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	return math.Atan2(dy, dx)
}

func cloneProjection(p *chart.Projection) *chart.Projection {
	clone := &chart.Projection{
		Layout:                   p.Layout.Clone(),
		Transformation:           p.Transformation,
		ForcedColumnBases:        p.ForcedColumnBases,
		MinimumColumnBasis:       p.MinimumColumnBasis,
		Disconnected:             copyIntBoolMap(p.Disconnected),
		Unmovable:                copyIntBoolMap(p.Unmovable),
		UnmovableInLastDimension: copyIntBoolMap(p.UnmovableInLastDimension),
		Stress:                   math.NaN(),
		Comment:                  p.Comment,
	}
	return clone
}

func copyIntBoolMap(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
