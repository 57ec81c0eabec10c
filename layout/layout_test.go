// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import (
	"math"
	"testing"
)

func TestNewAllNaN(t *testing.T) {
	l := New(3, 2)
	for p := 0; p < 3; p++ {
		if l.PointHasCoordinates(p) {
			t.Errorf("point %d: want disconnected after New", p)
		}
	}
}

func TestDistance(t *testing.T) {
	l := New(2, 2)
	l.SetPoint(0, []float64{0, 0})
	l.SetPoint(1, []float64{3, 4})
	if got := l.Distance(0, 1); math.Abs(got-5) > 1e-9 {
		t.Errorf("Distance = %v, want 5", got)
	}
}

func TestDistanceDisconnected(t *testing.T) {
	l := New(2, 2)
	l.SetPoint(0, []float64{0, 0})
	if !math.IsNaN(l.Distance(0, 1)) {
		t.Errorf("Distance with a disconnected point = %v, want NaN", l.Distance(0, 1))
	}
}

func TestRemovePoints(t *testing.T) {
	l := New(3, 1)
	l.SetPoint(0, []float64{1})
	l.SetPoint(1, []float64{2})
	l.SetPoint(2, []float64{3})
	l.RemovePoints([]int{1})
	if l.NumPoints() != 2 {
		t.Fatalf("NumPoints = %d, want 2", l.NumPoints())
	}
	if got := l.Point(0)[0]; got != 1 {
		t.Errorf("Point(0) = %v, want 1", got)
	}
	if got := l.Point(1)[0]; got != 3 {
		t.Errorf("Point(1) = %v, want 3", got)
	}
}

func TestTransformIdentity(t *testing.T) {
	l := New(1, 2)
	l.SetPoint(0, []float64{1, 2})
	tr := NewTransformation(2)
	out := l.Transform(tr)
	got := out.Point(0)
	if math.Abs(got[0]-1) > 1e-12 || math.Abs(got[1]-2) > 1e-12 {
		t.Errorf("identity transform of (1,2) = %v, want (1,2)", got)
	}
}

func TestTransformPreservesNaN(t *testing.T) {
	l := New(1, 2)
	tr := NewTransformation(2)
	out := l.Transform(tr)
	if out.PointHasCoordinates(0) {
		t.Errorf("transform of a disconnected point should remain disconnected")
	}
}

func TestTransformRotation90(t *testing.T) {
	// Rotate (1,0) by 90 degrees -> (0,1).
	tr := NewTransformationFrom(2, []float64{0, -1, 1, 0}, []float64{0, 0})
	got := tr.Apply([]float64{1, 0})
	if math.Abs(got[0]) > 1e-9 || math.Abs(got[1]-1) > 1e-9 {
		t.Errorf("rotate(1,0) = %v, want (0,1)", got)
	}
}

func TestIsIdentity(t *testing.T) {
	tr := NewTransformation(3)
	if !tr.IsIdentity() {
		t.Errorf("NewTransformation should be the identity")
	}
	tr2 := NewTransformationFrom(2, []float64{1, 0, 0, 1}, []float64{0.1, 0})
	if tr2.IsIdentity() {
		t.Errorf("non-zero translation should not be the identity")
	}
}
