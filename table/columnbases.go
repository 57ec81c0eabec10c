// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/skepner/acmacs-chart/titer"
)

// ColumnBases holds the per-serum log₂ column basis, the natural
// "saturation" titer for that serum, together with the minimum column
// basis floor that was applied to derive it.
type ColumnBases struct {
	raw       []float64 // unfloored, per spec.md §4.D; -Inf for an all-don't-care column
	effective []float64 // max(raw[j], mcbLog)
	mcb       int       // 0 means "none"; otherwise a regular titer value, e.g. 1280
}

// Compute derives the ColumnBases of t under the minimum column basis
// floor mcb (0 for "none", otherwise a regular titer value such as 1280).
func Compute(t *Table, mcb int) *ColumnBases {
	mcbLog := math.Inf(-1)
	if mcb > 0 {
		mcbLog = titer.NewRegular(mcb).LoggedForColumnBases()
	}
	raw := make([]float64, t.NumSera())
	effective := make([]float64, t.NumSera())
	for j := 0; j < t.NumSera(); j++ {
		raw[j] = math.Inf(-1)
		for i := 0; i < t.NumAntigens(); i++ {
			ti := t.Titer(i, j)
			if ti.IsDontCare() {
				continue
			}
			v := ti.LoggedForColumnBases()
			if v > raw[j] {
				raw[j] = v
			}
		}
		effective[j] = math.Max(raw[j], mcbLog)
	}
	return &ColumnBases{raw: raw, effective: effective, mcb: mcb}
}

// NewForced returns a ColumnBases built directly from explicit per-serum
// log₂ values, with no minimum-column-basis floor applied. This is how
// a projection's forced column bases (spec.md §4.F, canonical JSON key
// "C") are represented once imported: they replace the computed
// ColumnBases outright rather than flooring it.
func NewForced(values []float64) *ColumnBases {
	return &ColumnBases{
		raw:       append([]float64(nil), values...),
		effective: append([]float64(nil), values...),
	}
}

// NumSera returns the number of sera the ColumnBases covers.
func (c *ColumnBases) NumSera() int { return len(c.effective) }

// Get returns the effective column basis for serum j:
// max(raw[j], mcb-as-log).
func (c *ColumnBases) Get(j int) float64 { return c.effective[j] }

// Raw returns the unfloored column basis for serum j; it is -Inf if
// every titer in that column is don't-care.
func (c *ColumnBases) Raw(j int) float64 { return c.raw[j] }

// MinimumColumnBasis returns the floor (0 for "none") that produced this
// ColumnBases.
func (c *ColumnBases) MinimumColumnBasis() int { return c.mcb }

// Mean and StdDev summarize the effective column bases, using
// gonum.org/v1/gonum/stat, ignoring any -Inf (all-don't-care) columns.
func (c *ColumnBases) Mean() float64 {
	finite := finiteValues(c.effective)
	if len(finite) == 0 {
		return math.NaN()
	}
	return stat.Mean(finite, nil)
}

func (c *ColumnBases) StdDev() float64 {
	finite := finiteValues(c.effective)
	if len(finite) < 2 {
		return math.NaN()
	}
	return stat.StdDev(finite, nil)
}

func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
