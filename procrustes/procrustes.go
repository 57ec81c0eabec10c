// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procrustes aligns one projection's layout onto another's
// through the common points they share, by orthogonal (optionally
// scaled) Procrustes analysis built on gonum.org/v1/gonum/mat's SVD, the
// same factorization relax uses for dimension annealing (spec.md §4.K).
package procrustes

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/skepner/acmacs-chart/layout"
)

// CommonPair is one point shared by the primary and secondary layouts,
// by point index into each.
type CommonPair struct {
	Primary   int
	Secondary int
}

// Options controls the alignment.
type Options struct {
	// Scaling enables the isotropic scale factor (spec.md §4.K step 5);
	// without it scale is fixed at 1.
	Scaling bool
}

// Result is the fitted transformation (to be applied to the secondary
// layout) plus its goodness of fit.
type Result struct {
	Transformation *layout.Transformation
	Scale          float64
	Determinant    float64 // det(R); negative means a reflection was selected
	RMS            float64
}

// ErrNoCommonPoints reports that no usable common pair (with finite
// coordinates on both sides) was supplied.
type ErrNoCommonPoints struct{}

func (ErrNoCommonPoints) Error() string { return "procrustes: no common points with coordinates on both sides" }

// Align fits a transformation mapping secondary's coordinate frame onto
// primary's, using only the common pairs whose point has finite
// coordinates on both sides (spec.md §4.K step 1). Apply the returned
// Transformation to the full secondary layout (layout.Layout.Transform)
// to align it; disconnected points are preserved as NaN automatically.
func Align(primary, secondary *layout.Layout, pairs []CommonPair, opts Options) (*Result, error) {
	dims := primary.NumDims()
	usable := make([]CommonPair, 0, len(pairs))
	for _, p := range pairs {
		if primary.PointHasCoordinates(p.Primary) && secondary.PointHasCoordinates(p.Secondary) {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoCommonPoints{}
	}

	n := len(usable)
	x := mat.NewDense(n, dims, nil)
	y := mat.NewDense(n, dims, nil)
	for r, p := range usable {
		copy(x.RawRowView(r), primary.Point(p.Primary))
		copy(y.RawRowView(r), secondary.Point(p.Secondary))
	}

	meanX := columnMeans(x)
	meanY := columnMeans(y)
	xc := centered(x, meanX)
	yc := centered(y, meanY)

	var m mat.Dense
	m.Mul(yc.T(), xc) // M = (JY)^T(JX)

	var svd mat.SVD
	svd.U = mat.SVDFull
	svd.V = mat.SVDFull
	if !svd.Factorize(&m) {
		return nil, ErrNoCommonPoints{} // degenerate input (e.g. all-coincident points)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(v.T(), &u) // R = V^T U

	det := mat.Det(&r)

	scale := 1.0
	if opts.Scaling {
		var ycr mat.Dense
		ycr.Mul(yc, &r)
		var xcTycr mat.Dense
		xcTycr.Mul(xc.T(), &ycr)
		numerator := trace(&xcTycr)

		var ycTyc mat.Dense
		ycTyc.Mul(yc.T(), yc)
		denominator := trace(&ycTyc)
		if denominator != 0 {
			scale = numerator / denominator
		}
	}

	scaledR := mat.NewDense(dims, dims, nil)
	scaledR.Scale(scale, &r)

	meanYVec := mat.NewVecDense(dims, meanY)
	var rMeanY mat.VecDense
	rMeanY.MulVec(scaledR, meanYVec)
	translation := make([]float64, dims)
	for i := 0; i < dims; i++ {
		translation[i] = meanX[i] - rMeanY.AtVec(i)
	}

	transformation := layout.NewTransformationFrom(dims, rowMajor(scaledR), translation)

	rms := rmsOverPairs(primary, secondary, usable, transformation)

	return &Result{Transformation: transformation, Scale: scale, Determinant: det, RMS: rms}, nil
}

func columnMeans(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	means := make([]float64, cols)
	for c := 0; c < cols; c++ {
		sum := 0.0
		for r := 0; r < rows; r++ {
			sum += m.At(r, c)
		}
		means[c] = sum / float64(rows)
	}
	return means
}

func centered(m *mat.Dense, means []float64) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, m.At(r, c)-means[c])
		}
	}
	return out
}

func trace(m *mat.Dense) float64 {
	rows, cols := m.Dims()
	n := rows
	if cols < n {
		n = cols
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += m.At(i, i)
	}
	return sum
}

func rowMajor(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = m.At(r, c)
		}
	}
	return out
}

func rmsOverPairs(primary, secondary *layout.Layout, pairs []CommonPair, t *layout.Transformation) float64 {
	sum := 0.0
	n := 0
	for _, p := range pairs {
		transformed := t.Apply(secondary.Point(p.Secondary))
		primaryCoords := primary.Point(p.Primary)
		d := 0.0
		for k := range transformed {
			diff := transformed[k] - primaryCoords[k]
			d += diff * diff
		}
		sum += d
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / float64(n))
}
