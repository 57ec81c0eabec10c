// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chart

import (
	"fmt"
	"math"
	"sort"

	"github.com/skepner/acmacs-chart/table"
)

// PlotSpec is the legacy plot-spec format: a drawing order, a per-point
// style index, and the style array itself. Styles are opaque attribute
// bags (semantic styling, e.g. R, is not interpreted by this package).
type PlotSpec struct {
	DrawingOrder  []int
	PointStyle    []int
	Styles        []map[string]any
	ErrorLineColor string
}

// Chart is the aggregate: Info, Antigens, Sera, Titers and an ordered
// list of Projections (index 0 is "best" once Sort has been called),
// plus optional plot styling. The Chart uniquely owns its antigens,
// sera, titers and projections (spec.md §3 Ownership); projections hold
// point indexes into the chart's numbering but do not own antigen/serum
// records.
type Chart struct {
	Info        Info
	Antigens    []*Antigen
	Sera        []*Serum
	Titers      *table.Table
	Projections []*Projection

	PlotSpec *PlotSpec
	// Styles holds the semantic style library (canonical JSON key "R"),
	// opaque to this package.
	Styles any
	// Extension holds unrecognized top-level fields (canonical JSON key
	// "x"), preserved verbatim on round-trip.
	Extension map[string]any
}

// New returns an empty Chart ready for antigens/sera to be appended and
// titers to be set.
func New() *Chart {
	return &Chart{}
}

// NumAntigens and NumSera report the chart's shape.
func (c *Chart) NumAntigens() int { return len(c.Antigens) }
func (c *Chart) NumSera() int     { return len(c.Sera) }

// NumPoints returns NumAntigens()+NumSera(), the point numbering every
// Projection and Layout uses: indexes [0,NumAntigens) are antigens,
// [NumAntigens,NumPoints) are sera.
func (c *Chart) NumPoints() int { return c.NumAntigens() + c.NumSera() }

// AddAntigen appends an antigen. Antigens may only be appended before
// Titers is set (spec.md §3 Lifecycle).
func (c *Chart) AddAntigen(a *Antigen) { c.Antigens = append(c.Antigens, a) }

// AddSerum appends a serum. Sera may only be appended before Titers is
// set (spec.md §3 Lifecycle).
func (c *Chart) AddSerum(s *Serum) { c.Sera = append(c.Sera, s) }

// AddProjection appends a projection produced by optimization.
func (c *Chart) AddProjection(p *Projection) { c.Projections = append(c.Projections, p) }

// BestProjection returns projection 0, or nil if the chart has no
// projections. Call Sort first to make this the lowest-stress
// projection.
func (c *Chart) BestProjection() *Projection {
	if len(c.Projections) == 0 {
		return nil
	}
	return c.Projections[0]
}

// SortProjections orders Projections by ascending final stress, with NaN
// stresses placed last (spec.md §5, §8 invariant 9). It is the only
// operation that changes projection indexes.
func (c *Chart) SortProjections() {
	sort.SliceStable(c.Projections, func(i, j int) bool {
		si, sj := c.Projections[i].Stress, c.Projections[j].Stress
		if math.IsNaN(si) {
			return false
		}
		if math.IsNaN(sj) {
			return true
		}
		return si < sj
	})
}

// Validate checks the chart's structural invariants (spec.md §3):
// titers' shape matches the antigen/serum counts, and every projection's
// layout shape matches the point count.
func (c *Chart) Validate() error {
	if c.Titers == nil {
		return ErrStructureInvalid{Reason: "titers is nil"}
	}
	if c.Titers.NumAntigens() != c.NumAntigens() {
		return ErrStructureInvalid{Reason: "titers antigen count does not match len(Antigens)"}
	}
	if c.Titers.NumSera() != c.NumSera() {
		return ErrStructureInvalid{Reason: "titers serum count does not match len(Sera)"}
	}
	for i, p := range c.Projections {
		if p.NumPoints() != c.NumPoints() {
			return ErrStructureInvalid{Reason: fmt.Sprintf("projection %d layout point count does not match antigen+serum count", i)}
		}
	}
	return nil
}

// ColumnBases returns the effective column bases for projection p: its
// forced column bases if set, otherwise the chart's titers computed
// under p's minimum column basis.
func (c *Chart) ColumnBases(p *Projection) *table.ColumnBases {
	if p.ForcedColumnBases != nil {
		return p.ForcedColumnBases
	}
	return table.Compute(c.Titers, p.MinimumColumnBasis)
}
