// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package procrustes

import (
	"math"
	"testing"

	"github.com/skepner/acmacs-chart/layout"
)

func TestAlignRecoversPureTranslation(t *testing.T) {
	primary := layout.NewFromSlice([]float64{0, 0, 1, 0, 0, 1}, 2)
	secondary := layout.NewFromSlice([]float64{5, 5, 6, 5, 5, 6}, 2)
	pairs := []CommonPair{{0, 0}, {1, 1}, {2, 2}}

	result, err := Align(primary, secondary, pairs, Options{})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result.RMS > 1e-6 {
		t.Errorf("RMS = %v, want ~0 for an exact translation", result.RMS)
	}

	transformed := secondary.Transform(result.Transformation)
	for p := 0; p < 3; p++ {
		want := primary.Point(p)
		got := transformed.Point(p)
		for k := range want {
			if math.Abs(want[k]-got[k]) > 1e-6 {
				t.Errorf("point %d coord %d: got %v, want %v", p, k, got[k], want[k])
			}
		}
	}
}

func TestAlignRecoversRotation(t *testing.T) {
	// secondary is primary rotated 90° about the origin: (x,y) -> (-y,x).
	primary := layout.NewFromSlice([]float64{1, 0, 0, 1, -1, 0}, 2)
	secondary := layout.NewFromSlice([]float64{0, 1, -1, 0, 0, -1}, 2)
	pairs := []CommonPair{{0, 0}, {1, 1}, {2, 2}}

	result, err := Align(primary, secondary, pairs, Options{})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result.RMS > 1e-6 {
		t.Errorf("RMS = %v, want ~0 for an exact rotation", result.RMS)
	}
	if math.Abs(math.Abs(result.Determinant)-1) > 1e-6 {
		t.Errorf("Determinant = %v, want |det| ~= 1", result.Determinant)
	}
}

func TestAlignSkipsDisconnectedPairs(t *testing.T) {
	primary := layout.New(2, 2)
	primary.SetPoint(0, []float64{0, 0})
	primary.SetPoint(1, []float64{1, 0})
	secondary := layout.New(2, 2)
	secondary.SetPoint(0, []float64{5, 5})
	// point 1 left disconnected (NaN) in secondary.

	pairs := []CommonPair{{0, 0}, {1, 1}}
	result, err := Align(primary, secondary, pairs, Options{})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result.RMS != 0 {
		t.Errorf("RMS = %v, want 0 using the single usable pair", result.RMS)
	}
}

func TestAlignNoCommonPoints(t *testing.T) {
	primary := layout.New(1, 2)
	secondary := layout.New(1, 2)
	_, err := Align(primary, secondary, []CommonPair{{0, 0}}, Options{})
	if err == nil {
		t.Fatalf("Align: want an error when no common point has coordinates on both sides")
	}
}

func TestAlignWithScaling(t *testing.T) {
	primary := layout.NewFromSlice([]float64{0, 0, 2, 0, 0, 2}, 2)
	secondary := layout.NewFromSlice([]float64{0, 0, 1, 0, 0, 1}, 2)
	pairs := []CommonPair{{0, 0}, {1, 1}, {2, 2}}

	result, err := Align(primary, secondary, pairs, Options{Scaling: true})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if math.Abs(result.Scale-2) > 1e-6 {
		t.Errorf("Scale = %v, want ~2", result.Scale)
	}
	if result.RMS > 1e-6 {
		t.Errorf("RMS = %v, want ~0 with scaling enabled", result.RMS)
	}
}
