// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chart

import (
	"errors"
	"math"
	"testing"

	"github.com/skepner/acmacs-chart/table"
	"github.com/skepner/acmacs-chart/titer"
)

func smallTable(t *testing.T) *table.Table {
	t.Helper()
	cells := make([][]titer.Titer, 2)
	for i := range cells {
		row := make([]titer.Titer, 3)
		for j := range row {
			row[j] = titer.DontCareTiter
		}
		cells[i] = row
	}
	tb, err := table.NewDense(2, 3, cells)
	if err != nil {
		t.Fatalf("NewDense: %v", err)
	}
	ti, err := titer.Parse("80")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tb.SetTiter(0, 0, ti)
	return tb
}

func TestValidateOK(t *testing.T) {
	c := New()
	c.AddAntigen(NewAntigen("AG1"))
	c.AddAntigen(NewAntigen("AG2"))
	c.AddSerum(NewSerum("SR1"))
	c.AddSerum(NewSerum("SR2"))
	c.AddSerum(NewSerum("SR3"))
	c.Titers = smallTable(t)

	p := NewProjection(c.NumPoints(), 2)
	c.AddProjection(p)

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMismatchedTiters(t *testing.T) {
	c := New()
	c.AddAntigen(NewAntigen("AG1"))
	c.AddSerum(NewSerum("SR1"))
	c.Titers = smallTable(t) // shape 2x3, but chart has 1 antigen, 1 serum

	var want ErrStructureInvalid
	if err := c.Validate(); !errors.As(err, &want) {
		t.Fatalf("Validate: got %v, want ErrStructureInvalid", err)
	}
}

func TestValidateRejectsMismatchedProjection(t *testing.T) {
	c := New()
	c.AddAntigen(NewAntigen("AG1"))
	c.AddAntigen(NewAntigen("AG2"))
	c.AddSerum(NewSerum("SR1"))
	c.AddSerum(NewSerum("SR2"))
	c.AddSerum(NewSerum("SR3"))
	c.Titers = smallTable(t)
	c.AddProjection(NewProjection(c.NumPoints()+1, 2))

	var want ErrStructureInvalid
	if err := c.Validate(); !errors.As(err, &want) {
		t.Fatalf("Validate: got %v, want ErrStructureInvalid", err)
	}
}

func TestSortProjectionsAscendingNaNLast(t *testing.T) {
	c := New()
	stresses := []float64{5.0, math.NaN(), 1.0, math.NaN(), 3.0}
	for _, s := range stresses {
		p := NewProjection(4, 2)
		p.Stress = s
		c.AddProjection(p)
	}

	c.SortProjections()

	finite := -math.MaxFloat64
	sawNaN := false
	for _, p := range c.Projections {
		if math.IsNaN(p.Stress) {
			sawNaN = true
			continue
		}
		if sawNaN {
			t.Fatalf("finite stress %v found after a NaN stress", p.Stress)
		}
		if p.Stress < finite {
			t.Fatalf("stresses not ascending: %v then %v", finite, p.Stress)
		}
		finite = p.Stress
	}
	if c.Projections[0].Stress != 1.0 {
		t.Fatalf("best projection stress = %v, want 1.0", c.Projections[0].Stress)
	}
}

func TestBestProjectionNilWhenEmpty(t *testing.T) {
	c := New()
	if p := c.BestProjection(); p != nil {
		t.Fatalf("BestProjection() = %v, want nil", p)
	}
}

func TestColumnBasesPrefersForced(t *testing.T) {
	c := New()
	c.AddAntigen(NewAntigen("AG1"))
	c.AddAntigen(NewAntigen("AG2"))
	c.AddSerum(NewSerum("SR1"))
	c.AddSerum(NewSerum("SR2"))
	c.AddSerum(NewSerum("SR3"))
	c.Titers = smallTable(t)

	p := NewProjection(c.NumPoints(), 2)
	forced := table.Compute(c.Titers, 0)
	p.ForcedColumnBases = forced

	if got := c.ColumnBases(p); got != forced {
		t.Fatalf("ColumnBases did not return the forced column bases")
	}
}

func TestColumnBasesComputesWhenNotForced(t *testing.T) {
	c := New()
	c.AddAntigen(NewAntigen("AG1"))
	c.AddAntigen(NewAntigen("AG2"))
	c.AddSerum(NewSerum("SR1"))
	c.AddSerum(NewSerum("SR2"))
	c.AddSerum(NewSerum("SR3"))
	c.Titers = smallTable(t)

	p := NewProjection(c.NumPoints(), 2)
	got := c.ColumnBases(p)
	if got == nil {
		t.Fatalf("ColumnBases returned nil")
	}
	if got.NumSera() != 3 {
		t.Fatalf("NumSera() = %d, want 3", got.NumSera())
	}
}
