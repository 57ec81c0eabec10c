// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package relax

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/skepner/acmacs-chart/chart"
	"github.com/skepner/acmacs-chart/layout"
	"github.com/skepner/acmacs-chart/stress"
	"github.com/skepner/acmacs-chart/table"
)

// Run relaxes p in place against t's titers under column bases cb,
// following spec.md §4.H steps 1-5. It returns the run's Status; p.Stress
// and p.Layout are updated to match, with disconnected points that had
// NaN coordinates left at NaN. p.Disconnected is replaced by the
// effective disconnected set, which also holds under-titrated points when
// opts.DisconnectTooFewNumericTiters is set.
func Run(t *table.Table, cb *table.ColumnBases, p *chart.Projection, opts Options) Status {
	dims := p.Dims()
	if dims == 0 {
		return nanStatus()
	}

	disconnected := effectiveDisconnected(t, p, opts)
	distances := stress.Precompute(t, cb, p.AvidityAdjusts, disconnected)

	x := append([]float64(nil), p.Layout.Raw()...)
	if !opts.Incremental || allNaN(x) {
		randomize(x, dims, p, disconnected, distances, opts)
	}

	restore := scopeDisconnectedZero(x, dims, disconnected)
	defer restore()

	problem := &stress.Problem{Dims: dims, Distances: distances, Options: stress.DefaultOptions()}

	fixed := fixedCoordinateMask(dims, p.NumPoints(), p.Unmovable, p.UnmovableInLastDimension)

	gonumProblem := optimize.Problem{
		Func: problem.Func,
		Grad: func(grad, x []float64) []float64 {
			problem.Grad(grad, x)
			for i, isFixed := range fixed {
				if isFixed {
					grad[i] = 0
				}
			}
			return grad
		},
	}

	settings := &optimize.Settings{GradientThreshold: opts.Precision.GradientThreshold()}
	if opts.MaxIterations > 0 {
		settings.MajorIterations = opts.MaxIterations
	}

	method := minimizerMethod(opts.Method)
	result, err := optimize.Minimize(gonumProblem, x, settings, method)

	status := nanStatus()
	if result != nil {
		status.FinalStress = result.F
		status.Iterations = result.MajorIterations
		status.Converged = err == nil && result.Status == optimize.GradientThreshold
		status.TerminationReason = classifyStatus(result.Status, err)
		coords := append([]float64(nil), result.X...)
		original := p.Layout.Raw()
		for i := range coords {
			if disconnected[i/dims] && math.IsNaN(original[i]) {
				coords[i] = math.NaN()
			}
		}
		p.Layout = layout.NewFromSlice(coords, dims)
	}
	p.Stress = status.FinalStress
	p.Disconnected = disconnected
	return status
}

// RunMultiple runs opts.NumberOfOptimizations independent relaxations
// (each from an independent random start, unless opts.Randomizer is
// seeded, which forces a single run) and keeps the lowest-stress
// projection. Runs are spread across opts.Threads goroutines when
// opts.Threads > 1 (spec.md §4.H scheduling model).
func RunMultiple(t *table.Table, cb *table.ColumnBases, p *chart.Projection, opts Options) (*chart.Projection, Status) {
	n := opts.NumberOfOptimizations
	if n < 1 {
		n = 1
	}
	if opts.Randomizer != nil && opts.Randomizer.Seeded() {
		n = 1
	}

	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	candidates := make([]*chart.Projection, n)
	statuses := make([]Status, n)

	var wg sync.WaitGroup
	sem := make(chan struct{}, threads)
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			candidate := clonedProjection(p)
			statuses[i] = Run(t, cb, candidate, opts)
			candidates[i] = candidate
		}(i)
	}
	wg.Wait()

	best := 0
	for i := 1; i < n; i++ {
		if betterStress(statuses[i].FinalStress, statuses[best].FinalStress) {
			best = i
		}
	}
	return candidates[best], statuses[best]
}

// AnnealDimensions relaxes p starting at its current dimensionality,
// then repeatedly drops the least-significant dimension (by SVD of the
// centered coordinates) and re-relaxes, until targetDims is reached
// (spec.md §4.H step 6).
func AnnealDimensions(t *table.Table, cb *table.ColumnBases, p *chart.Projection, targetDims int, opts Options) Status {
	status := Run(t, cb, p, opts)
	for p.Dims() > targetDims {
		dropLeastSignificantDimension(p)
		status = Run(t, cb, p, opts)
	}
	return status
}

func betterStress(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

func clonedProjection(p *chart.Projection) *chart.Projection {
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
	if p.AvidityAdjusts != nil {
		clone.AvidityAdjusts = append([]float64(nil), p.AvidityAdjusts...)
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

// effectiveDisconnected returns the union of p.Disconnected and, when
// opts.DisconnectTooFewNumericTiters is set, every antigen/serum point
// with fewer than opts.MinTitersPerPoint non-don't-care titers (spec.md
// §4.H step 2).
func effectiveDisconnected(t *table.Table, p *chart.Projection, opts Options) map[int]bool {
	out := copyIntBoolMap(p.Disconnected)
	if !opts.DisconnectTooFewNumericTiters {
		return out
	}
	min := opts.MinTitersPerPoint
	if min <= 0 {
		min = 3
	}
	for i := 0; i < t.NumAntigens(); i++ {
		if t.TitrationsForAntigen(i) < min {
			out[i] = true
		}
	}
	numAntigens := t.NumAntigens()
	for j := 0; j < t.NumSera(); j++ {
		if t.TitrationsForSerum(j) < min {
			out[numAntigens+j] = true
		}
	}
	return out
}

// scopeDisconnectedZero replaces NaN coordinates of disconnected points
// in x with 0 and returns a restore function that puts the NaNs back.
// Call the returned function via defer so restoration happens on every
// exit path, including a panic inside the minimizer (spec.md §4.H step
// 3).
func scopeDisconnectedZero(x []float64, dims int, disconnected map[int]bool) (restore func()) {
	type swapped struct{ index int }
	var touched []swapped
	for p := range disconnected {
		base := p * dims
		if base+dims > len(x) {
			continue
		}
		for k := 0; k < dims; k++ {
			if math.IsNaN(x[base+k]) {
				x[base+k] = 0
				touched = append(touched, swapped{base + k})
			}
		}
	}
	return func() {
		for _, s := range touched {
			x[s.index] = math.NaN()
		}
	}
}

// fixedCoordinateMask marks every flat coordinate index that must not
// move: all coordinates of an unmovable point, or only the last
// dimension's coordinate of an unmovable-in-last-dimension point.
func fixedCoordinateMask(dims, numPoints int, unmovable, unmovableLastDim map[int]bool) []bool {
	mask := make([]bool, numPoints*dims)
	for p := range unmovable {
		base := p * dims
		for k := 0; k < dims; k++ {
			mask[base+k] = true
		}
	}
	for p := range unmovableLastDim {
		mask[p*dims+dims-1] = true
	}
	return mask
}

func randomize(x []float64, dims int, p *chart.Projection, disconnected map[int]bool, distances []stress.CellDistance, opts Options) {
	toRandomize := make([]int, 0, p.NumPoints())
	for i := 0; i < p.NumPoints(); i++ {
		if p.Unmovable[i] || disconnected[i] {
			continue
		}
		toRandomize = append(toRandomize, i)
	}
	diameter := maxTableDistance(distances) * opts.RandomizationDiameterMultiplier
	if diameter <= 0 {
		diameter = opts.RandomizationDiameterMultiplier
	}
	r := opts.Randomizer
	if r == nil {
		r = NewUniformRandomizer(0)
	}
	r.Randomize(x, dims, toRandomize, diameter)
}

// maxTableDistance returns the largest table distance among distances,
// the diameter basis spec.md §4.H step 1 calls for; 0 if distances is
// empty.
func maxTableDistance(distances []stress.CellDistance) float64 {
	max := 0.0
	for _, d := range distances {
		if d.TableDistance > max {
			max = d.TableDistance
		}
	}
	return max
}

func allNaN(x []float64) bool {
	for _, v := range x {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

func minimizerMethod(m Method) optimize.Method {
	if m == MethodCG {
		return &optimize.CG{}
	}
	return &optimize.LBFGS{}
}

func classifyStatus(status optimize.Status, err error) TerminationReason {
	if err != nil {
		return TerminationOther
	}
	switch status {
	case optimize.GradientThreshold, optimize.FunctionThreshold:
		return TerminationConverged
	case optimize.IterationLimit:
		return TerminationIterationLimit
	case optimize.FunctionEvaluationLimit:
		return TerminationFunctionEvaluationLimit
	default:
		return TerminationOther
	}
}

// dropLeastSignificantDimension projects p's layout onto the top
// (dims-1) principal axes of its centered coordinates, found via SVD
// (spec.md §4.H step 6), discarding the least-significant axis.
func dropLeastSignificantDimension(p *chart.Projection) {
	dims := p.Dims()
	if dims <= 1 {
		return
	}
	numPoints := p.NumPoints()

	rows := make([]int, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		if p.Layout.PointHasCoordinates(i) {
			rows = append(rows, i)
		}
	}
	mean := make([]float64, dims)
	for _, i := range rows {
		coords := p.Layout.Point(i)
		for k := 0; k < dims; k++ {
			mean[k] += coords[k]
		}
	}
	for k := range mean {
		if len(rows) > 0 {
			mean[k] /= float64(len(rows))
		}
	}

	centered := mat.NewDense(len(rows), dims, nil)
	for r, i := range rows {
		coords := p.Layout.Point(i)
		for k := 0; k < dims; k++ {
			centered.Set(r, k, coords[k]-mean[k])
		}
	}

	var svd mat.SVD
	svd.V = mat.SVDThin
	svd.U = mat.SVDNone
	if !svd.Factorize(centered) {
		return
	}
	var v mat.Dense
	svd.VTo(&v)

	newDims := dims - 1
	newData := make([]float64, numPoints*newDims)
	for i := 0; i < numPoints; i++ {
		if !p.Layout.PointHasCoordinates(i) {
			for k := 0; k < newDims; k++ {
				newData[i*newDims+k] = math.NaN()
			}
			continue
		}
		coords := p.Layout.Point(i)
		centeredCoords := make([]float64, dims)
		for k := 0; k < dims; k++ {
			centeredCoords[k] = coords[k] - mean[k]
		}
		for k := 0; k < newDims; k++ {
			sum := 0.0
			for d := 0; d < dims; d++ {
				sum += centeredCoords[d] * v.At(d, k)
			}
			newData[i*newDims+k] = sum
		}
	}

	p.Layout = layout.NewFromSlice(newData, newDims)
	p.Transformation = layout.NewTransformation(newDims)
}
