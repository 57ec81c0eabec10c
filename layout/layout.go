// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout implements the flat point-coordinate array shared by
// every projection, and the affine Transformation applied to it.
// Coordinates of a disconnected point are all NaN.
package layout

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Layout is a flat row-major array of point coordinates: point p's
// coordinates are data[p*Dims : p*Dims+Dims].
type Layout struct {
	data []float64
	dims int
}

// New returns a Layout for numPoints points in numDims dimensions, every
// coordinate set to NaN.
func New(numPoints, numDims int) *Layout {
	data := make([]float64, numPoints*numDims)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Layout{data: data, dims: numDims}
}

// NewFromSlice wraps an existing flat coordinate slice; len(data) must be
// a multiple of numDims.
func NewFromSlice(data []float64, numDims int) *Layout {
	if numDims > 0 && len(data)%numDims != 0 {
		panic("layout: data length is not a multiple of numDims")
	}
	return &Layout{data: data, dims: numDims}
}

// NumPoints returns the number of points in the layout.
func (l *Layout) NumPoints() int {
	if l.dims == 0 {
		return 0
	}
	return len(l.data) / l.dims
}

// NumDims returns the number of coordinates per point.
func (l *Layout) NumDims() int { return l.dims }

// Point returns a copy of point p's coordinates.
func (l *Layout) Point(p int) []float64 {
	out := make([]float64, l.dims)
	copy(out, l.data[p*l.dims:p*l.dims+l.dims])
	return out
}

// SetPoint overwrites point p's coordinates.
func (l *Layout) SetPoint(p int, coords []float64) {
	copy(l.data[p*l.dims:p*l.dims+l.dims], coords)
}

// Raw returns the underlying flat coordinate slice. Mutating it mutates
// the layout.
func (l *Layout) Raw() []float64 { return l.data }

// PointHasCoordinates reports whether every coordinate of point p is
// finite (i.e. the point is not disconnected).
func (l *Layout) PointHasCoordinates(p int) bool {
	for _, v := range l.data[p*l.dims : p*l.dims+l.dims] {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance between points p and q, or NaN
// if either is disconnected.
func (l *Layout) Distance(p, q int) float64 {
	if !l.PointHasCoordinates(p) || !l.PointHasCoordinates(q) {
		return math.NaN()
	}
	return floats.Distance(
		l.data[p*l.dims:p*l.dims+l.dims],
		l.data[q*l.dims:q*l.dims+l.dims],
		2,
	)
}

// Clone returns a deep copy of the layout.
func (l *Layout) Clone() *Layout {
	data := make([]float64, len(l.data))
	copy(data, l.data)
	return &Layout{data: data, dims: l.dims}
}

// RemovePoints removes the points at the given indexes, which must be
// sorted in descending order, keeping the remaining points contiguous.
func (l *Layout) RemovePoints(indexesDesc []int) {
	for _, p := range indexesDesc {
		start := p * l.dims
		end := start + l.dims
		l.data = append(l.data[:start], l.data[end:]...)
	}
}

// Transform applies t to every point of l and returns the result as a new
// Layout; disconnected points are preserved as all-NaN verbatim.
func (l *Layout) Transform(t *Transformation) *Layout {
	out := New(l.NumPoints(), l.dims)
	for p := 0; p < l.NumPoints(); p++ {
		if !l.PointHasCoordinates(p) {
			continue
		}
		out.SetPoint(p, t.Apply(l.Point(p)))
	}
	return out
}

// Transformation is an affine map: a D×D matrix plus a D-length
// translation, lazily applied to a Layout to produce a transformed
// layout.
type Transformation struct {
	dims        int
	matrix      *mat.Dense // D x D
	translation []float64  // length D
}

// NewTransformation returns the identity Transformation in the given
// number of dimensions.
func NewTransformation(dims int) *Transformation {
	m := mat.NewDense(dims, dims, nil)
	for i := 0; i < dims; i++ {
		m.Set(i, i, 1)
	}
	return &Transformation{dims: dims, matrix: m, translation: make([]float64, dims)}
}

// NewTransformationFrom builds a Transformation from an explicit D×D
// matrix (row-major) and translation.
func NewTransformationFrom(dims int, matrixRowMajor []float64, translation []float64) *Transformation {
	m := mat.NewDense(dims, dims, append([]float64(nil), matrixRowMajor...))
	tr := append([]float64(nil), translation...)
	return &Transformation{dims: dims, matrix: m, translation: tr}
}

// Dims returns the transformation's dimensionality.
func (t *Transformation) Dims() int { return t.dims }

// Matrix returns the transformation's D×D matrix.
func (t *Transformation) Matrix() *mat.Dense { return t.matrix }

// Translation returns the transformation's translation vector.
func (t *Transformation) Translation() []float64 { return t.translation }

// Apply maps a single point's coordinates through the transformation:
// y = M*x + translation.
func (t *Transformation) Apply(coords []float64) []float64 {
	x := mat.NewVecDense(t.dims, coords)
	var y mat.VecDense
	y.MulVec(t.matrix, x)
	out := make([]float64, t.dims)
	for i := 0; i < t.dims; i++ {
		out[i] = y.AtVec(i) + t.translation[i]
	}
	return out
}

// Compose returns t followed by other, i.e. the transformation x ↦
// other.Apply(t.Apply(x)) expressed as a single Transformation, using the
// right-multiply convention: resultMatrix = other.matrix * t.matrix.
func (t *Transformation) Compose(other *Transformation) *Transformation {
	var m mat.Dense
	m.Mul(other.matrix, t.matrix)
	translation := other.Apply(t.translation)
	return &Transformation{dims: t.dims, matrix: &m, translation: translation}
}

// IsIdentity reports whether the transformation is (numerically close to)
// the identity map.
func (t *Transformation) IsIdentity() bool {
	for i := 0; i < t.dims; i++ {
		if math.Abs(t.translation[i]) > 1e-12 {
			return false
		}
		for j := 0; j < t.dims; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(t.matrix.At(i, j)-want) > 1e-12 {
				return false
			}
		}
	}
	return true
}
