// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chart

import (
	"math"
	"sort"

	"github.com/skepner/acmacs-chart/layout"
	"github.com/skepner/acmacs-chart/table"
)

// Projection is a Layout plus every piece of metadata needed to
// reproduce its stress: forced column bases, a minimum column basis, the
// disconnected/unmovable/unmovable-in-last-dimension point sets, an
// optional per-point avidity adjust, the cached stress, and a
// human-readable comment.
type Projection struct {
	Layout          *layout.Layout
	Transformation  *layout.Transformation
	ForcedColumnBases *table.ColumnBases
	MinimumColumnBasis int // 0 means "none"

	Disconnected             map[int]bool
	Unmovable                map[int]bool
	UnmovableInLastDimension map[int]bool

	// AvidityAdjusts has length numAntigens+numSera, or is nil if no
	// avidity adjust has been applied.
	AvidityAdjusts []float64

	Stress  float64 // NaN if not yet computed
	Comment string
}

// NewProjection returns an empty Projection over a fresh all-NaN layout
// with numPoints points in numDims dimensions.
func NewProjection(numPoints, numDims int) *Projection {
	return &Projection{
		Layout:                   layout.New(numPoints, numDims),
		Transformation:           layout.NewTransformation(numDims),
		Disconnected:             make(map[int]bool),
		Unmovable:                make(map[int]bool),
		UnmovableInLastDimension: make(map[int]bool),
		Stress:                   math.NaN(),
	}
}

// TransformedLayout derives the layout produced by applying p's
// Transformation to p.Layout. It is computed fresh on every call (spec.md
// §9: lazy caching is a caller concern, not owned by Projection).
func (p *Projection) TransformedLayout() *layout.Layout {
	if p.Transformation == nil || p.Transformation.IsIdentity() {
		return p.Layout.Clone()
	}
	return p.Layout.Transform(p.Transformation)
}

// NumPoints and Dims report the projection's shape.
func (p *Projection) NumPoints() int { return p.Layout.NumPoints() }
func (p *Projection) Dims() int      { return p.Layout.NumDims() }

// RemovePoints removes the given point indexes (any order; duplicates
// ignored) from the projection's layout and every index set it owns,
// keeping them all consistent (spec.md §4.F). indexes need not be
// pre-sorted; RemovePoints sorts them descending internally so the
// layout stays contiguous.
func (p *Projection) RemovePoints(indexes []int) {
	removed := uniqueDescending(indexes)
	if len(removed) == 0 {
		return
	}
	removedSet := make(map[int]bool, len(removed))
	for _, idx := range removed {
		removedSet[idx] = true
	}

	p.Layout.RemovePoints(removed)
	p.Disconnected = remapIndexSet(p.Disconnected, removedSet)
	p.Unmovable = remapIndexSet(p.Unmovable, removedSet)
	p.UnmovableInLastDimension = remapIndexSet(p.UnmovableInLastDimension, removedSet)
	if p.AvidityAdjusts != nil {
		p.AvidityAdjusts = removeSlice(p.AvidityAdjusts, removed)
	}
	if p.ForcedColumnBases != nil {
		// Forced column bases are indexed by serum, not by point; callers
		// that remove sera are responsible for passing the serum-local
		// indexes through table.Compute again. Nothing to remap here
		// generically, so it is left untouched.
		_ = p.ForcedColumnBases
	}
}

func uniqueDescending(indexes []int) []int {
	seen := make(map[int]bool, len(indexes))
	out := make([]int, 0, len(indexes))
	for _, idx := range indexes {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// remapIndexSet drops removed indexes from set and shifts the survivors
// down by the number of removed indexes below them.
func remapIndexSet(set map[int]bool, removed map[int]bool) map[int]bool {
	out := make(map[int]bool, len(set))
	for idx := range set {
		if removed[idx] {
			continue
		}
		shift := 0
		for r := range removed {
			if r < idx {
				shift++
			}
		}
		out[idx-shift] = true
	}
	return out
}

func removeSlice(values []float64, removedDesc []int) []float64 {
	out := append([]float64(nil), values...)
	for _, idx := range removedDesc {
		out = append(out[:idx], out[idx+1:]...)
	}
	return out
}
