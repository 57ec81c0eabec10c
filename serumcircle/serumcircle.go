// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package serumcircle computes theoretical and empirical serum
// protection circles and antigen-coverage partitions (spec.md §4.N).
package serumcircle

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/skepner/acmacs-chart/chart"
	"github.com/skepner/acmacs-chart/layout"
	"github.com/skepner/acmacs-chart/table"
	"github.com/skepner/acmacs-chart/titer"
)

// MinRadius is the floor applied to the radii that Circles.Theoretical
// and Circles.Empirical return (cc/chart/v3/serum-circles.hh's
// serum_circle_min_radius); AntigenCircle values are stored unfloored.
const MinRadius = 2.0

// Status explains why a circle could not be computed, or that it was
// computed successfully.
type Status int

// Supported Statuses.
const (
	StatusNotCalculated Status = iota
	StatusGood
	StatusNonRegularHomologousTiter
	StatusTiterTooLow
	StatusSerumDisconnected
	StatusAntigenDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusNonRegularHomologousTiter:
		return "non_regular_homologous_titer"
	case StatusTiterTooLow:
		return "titer_too_low"
	case StatusSerumDisconnected:
		return "serum_disconnected"
	case StatusAntigenDisconnected:
		return "antigen_disconnected"
	default:
		return "not_calculated"
	}
}

// Error reports a serum-coverage precondition failure (non-regular or
// too-low homologous titer).
type Error struct{ Reason string }

func (e Error) Error() string { return "serumcircle: " + e.Reason }

// AntigenCircle is one homologous antigen's theoretical/empirical radius
// contribution for a serum.
type AntigenCircle struct {
	Antigen        int
	Titer          titer.Titer
	Theoretical    float64
	HasTheoretical bool
	Empirical      float64
	HasEmpirical   bool
	Status         Status
}

// Circles is one serum's homologous-antigen circle data.
type Circles struct {
	Serum       int
	ColumnBasis float64
	Fold        float64
	Antigens    []AntigenCircle
}

// Theoretical returns the smallest theoretical radius across Antigens,
// floored at MinRadius, or false if none has one.
func (c *Circles) Theoretical() (float64, bool) {
	return minOver(c.Antigens, func(a AntigenCircle) (float64, bool) { return a.Theoretical, a.HasTheoretical })
}

// Empirical returns the smallest empirical radius across Antigens,
// floored at MinRadius, or false if none has one.
func (c *Circles) Empirical() (float64, bool) {
	return minOver(c.Antigens, func(a AntigenCircle) (float64, bool) { return a.Empirical, a.HasEmpirical })
}

func minOver(antigens []AntigenCircle, get func(AntigenCircle) (float64, bool)) (float64, bool) {
	best := math.Inf(1)
	found := false
	for _, a := range antigens {
		if v, ok := get(a); ok && v < best {
			best = v
			found = true
		}
	}
	if !found {
		return 0, false
	}
	if best < MinRadius {
		best = MinRadius
	}
	return best, true
}

// Compute builds the per-serum Circles for every serum of c, over each
// serum's homologous antigens (chart.HomologousAntigens), for the given
// fold (spec.md §4.N; cc/chart/v3/serum-circles.cc's serum_circles).
func Compute(c *chart.Chart, p *chart.Projection, fold float64) []*Circles {
	cb := table.Compute(c.Titers, p.MinimumColumnBasis)
	numAntigens := c.NumAntigens()
	out := make([]*Circles, 0, c.NumSera())
	for serumNo, s := range c.Sera {
		columnBasis := cb.Get(serumNo)
		circles := &Circles{Serum: serumNo, ColumnBasis: columnBasis, Fold: fold}
		for _, agNo := range chart.HomologousAntigens(c.Antigens, s) {
			ac := AntigenCircle{Antigen: agNo, Titer: c.Titers.Titer(agNo, serumNo)}
			setTheoretical(&ac, columnBasis, fold)
			setEmpirical(&ac, p.Layout, c.Titers, numAntigens, serumNo, columnBasis, fold)
			circles.Antigens = append(circles.Antigens, ac)
		}
		out = append(out, circles)
	}
	return out
}

// Low reactors are defined as more than fold away from the homologous
// titer: the theoretical radius is fold plus the number of 2-folds
// between the serum's column basis and the homologous titer.
func setTheoretical(ac *AntigenCircle, columnBasis, fold float64) {
	if !ac.Titer.IsRegular() {
		ac.Status = StatusNonRegularHomologousTiter
		return
	}
	ac.Theoretical = fold + columnBasis - ac.Titer.LoggedForColumnBases()
	ac.HasTheoretical = true
}

type titerDistance struct {
	titer           titer.Titer
	finalSimilarity float64
	distance        float64
	valid           bool
}

func setEmpirical(ac *AntigenCircle, l *layout.Layout, titers *table.Table, numAntigens, serumNo int, columnBasis, fold float64) {
	serumPoint := numAntigens + serumNo
	switch {
	case !l.PointHasCoordinates(serumPoint):
		ac.Status = StatusSerumDisconnected
		return
	case !l.PointHasCoordinates(ac.Antigen):
		ac.Status = StatusAntigenDisconnected
		return
	case ac.Titer.IsDontCare():
		ac.Status = StatusNonRegularHomologousTiter
		return
	}

	protectionBoundary := math.Min(columnBasis, ac.Titer.LoggedForColumnBases()) - fold
	if protectionBoundary < 1.0 {
		ac.Status = StatusTiterTooLow
		return
	}

	distances := make([]titerDistance, numAntigens)
	for agNo := 0; agNo < numAntigens; agNo++ {
		t := titers.Titer(agNo, serumNo)
		if t.IsDontCare() {
			continue
		}
		similarity, _ := t.Similarity()
		if t.IsMoreThan() {
			similarity = t.LoggedForColumnBases()
		}
		distances[agNo] = titerDistance{
			titer:           t,
			finalSimilarity: math.Min(columnBasis, similarity),
			distance:        l.Distance(agNo, serumPoint),
			valid:           true,
		}
	}

	order := make([]int, numAntigens)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := distances[order[i]], distances[order[j]]
		if !a.valid {
			return false
		}
		if !b.valid {
			return true
		}
		return a.distance < b.distance
	})

	empirical, ok := radiusSearch(order, distances, protectionBoundary)
	if !ok {
		return
	}
	ac.Empirical = empirical
	ac.HasEmpirical = true
	ac.Status = StatusGood
}

// radiusSearch tries, in order of increasing distance, the radius
// midway between each antigen and the previous one, and keeps whichever
// radius (averaging ties) minimizes protected-but-outside plus
// unprotected-but-inside (spec.md §4.N; cc/chart/v3/serum-circles.cc's
// set_empirical).
func radiusSearch(order []int, distances []titerDistance, protectionBoundary float64) (float64, bool) {
	const none = -1
	bestSum := none
	previousDist := -1.0
	var tiedRadii []float64

	for _, agNo := range order {
		d := distances[agNo]
		if !d.valid {
			break
		}
		radius := d.distance
		if previousDist >= 0 {
			radius = (d.distance + previousDist) / 2
		}

		protectedOutside, notProtectedInside := 0, 0
		for _, pd := range distances {
			if !pd.valid {
				continue
			}
			inside := pd.distance <= radius
			protectedFlag := pd.finalSimilarity > protectionBoundary
			if pd.titer.IsRegular() {
				protectedFlag = pd.finalSimilarity >= protectionBoundary
			}
			switch {
			case protectedFlag && !inside:
				protectedOutside++
			case !protectedFlag && inside:
				notProtectedInside++
			}
		}

		summa := protectedOutside + notProtectedInside
		if bestSum == none || bestSum >= summa {
			if bestSum == summa {
				tiedRadii = append(tiedRadii, radius)
			} else {
				tiedRadii = []float64{radius}
				bestSum = summa
			}
		}
		previousDist = d.distance
	}

	if len(tiedRadii) == 0 {
		return 0, false
	}
	return stat.Mean(tiedRadii, nil), true
}

// Coverage partitions every antigen of titers into within/outside a
// fold of homologousTiter for serum serumNo (spec.md §4.N).
// homologousTiter must be a regular titer at least fold+1 2-folds above
// zero; otherwise Coverage returns an Error.
type Coverage struct {
	Within               []int
	Outside              []int
	HomologousAntigen    int
	HasHomologousAntigen bool
}

func ComputeCoverage(titers *table.Table, homologousTiter titer.Titer, serumNo int, fold float64) (*Coverage, error) {
	if !homologousTiter.IsRegular() {
		return nil, Error{Reason: "cannot handle non-regular homologous titer: " + homologousTiter.Format()}
	}
	threshold := homologousTiter.LoggedForColumnBases() - fold
	if threshold <= 0 {
		return nil, Error{Reason: "homologous titer is too low: " + homologousTiter.Format()}
	}

	cov := &Coverage{}
	for agNo := 0; agNo < titers.NumAntigens(); agNo++ {
		t := titers.Titer(agNo, serumNo)
		value := -1.0
		if !t.IsDontCare() {
			value = t.LoggedForColumnBases()
		}
		switch {
		case value >= threshold:
			cov.Within = append(cov.Within, agNo)
		case value >= 0:
			cov.Outside = append(cov.Outside, agNo)
		}
	}
	return cov, nil
}

// ComputeCoverageForAntigen is ComputeCoverage using antigenNo's own
// titer against serumNo as the homologous titer, also recording
// antigenNo as the homologous antigen.
func ComputeCoverageForAntigen(titers *table.Table, antigenNo, serumNo int, fold float64) (*Coverage, error) {
	cov, err := ComputeCoverage(titers, titers.Titer(antigenNo, serumNo), serumNo, fold)
	if err != nil {
		return nil, err
	}
	cov.HomologousAntigen = antigenNo
	cov.HasHomologousAntigen = true
	return cov, nil
}

// antigenProtection tallies, across a set of sera, how many called an
// antigen protected vs. not, for the multiple-sera circle.
type antigenProtection struct {
	yes, no int
}

func (p antigenProtection) perfect() bool   { return p.yes == 0 || p.no == 0 }
func (p antigenProtection) dominates() bool { return p.yes != p.no }
func (p antigenProtection) protected() bool { return p.yes > p.no }

// MultiResult is the combined circle for averaging several sera's
// coordinates (spec.md §4.N "Serum-circle-for-multiple-sera").
type MultiResult struct {
	Sera         []int
	Fold         float64
	Center       []float64
	Empirical    float64
	HasEmpirical bool
}

// ComputeForMultipleSera averages the coordinates of sera and classifies
// antigens by majority (or, if conservative, unanimous) protection
// across them, then runs the same empirical radius search around the
// averaged center (spec.md §4.N; cc/chart/v3/serum-circles.cc's
// serum_circle_for_multiple_sera).
func ComputeForMultipleSera(c *chart.Chart, p *chart.Projection, sera []int, fold float64, conservative bool) *MultiResult {
	cb := table.Compute(c.Titers, p.MinimumColumnBasis)
	numAntigens := c.NumAntigens()
	protection := make([]antigenProtection, numAntigens)

	result := &MultiResult{Sera: sera, Fold: fold}
	var center []float64
	connected := 0
	for _, serumNo := range sera {
		serumPoint := numAntigens + serumNo
		if !p.Layout.PointHasCoordinates(serumPoint) {
			continue
		}
		for _, homolAg := range chart.HomologousAntigens(c.Antigens, c.Sera[serumNo]) {
			homolTiter := c.Titers.Titer(homolAg, serumNo)
			if !p.Layout.PointHasCoordinates(homolAg) || homolTiter.IsDontCare() {
				continue
			}
			protectionBoundary := math.Min(cb.Get(serumNo), homolTiter.LoggedForColumnBases()) - fold
			if protectionBoundary < 1.0 {
				continue
			}
			for agNo := 0; agNo < numAntigens; agNo++ {
				t := c.Titers.Titer(agNo, serumNo)
				finalSimilarity := 0.0
				if !t.IsDontCare() {
					finalSimilarity = t.LoggedForColumnBases()
				}
				finalSimilarity = math.Min(finalSimilarity, cb.Get(serumNo))
				protectedFlag := finalSimilarity > protectionBoundary
				if t.IsRegular() {
					protectedFlag = finalSimilarity >= protectionBoundary
				}
				if protectedFlag {
					protection[agNo].yes++
				} else {
					protection[agNo].no++
				}
			}
			break // first suitable homologous antigen only
		}

		connected++
		point := p.Layout.Point(serumPoint)
		if center == nil {
			center = append([]float64(nil), point...)
		} else {
			for k := range center {
				center[k] += point[k]
			}
		}
	}
	if connected == 0 {
		return result
	}
	for k := range center {
		center[k] /= float64(connected)
	}
	result.Center = center

	type entry struct {
		antigen   int
		protected bool
		distance  float64
	}
	var entries []entry
	numProtected := 0
	for agNo := 0; agNo < numAntigens; agNo++ {
		ag := protection[agNo]
		if !ag.dominates() || (conservative && !ag.perfect()) {
			continue
		}
		if !p.Layout.PointHasCoordinates(agNo) {
			continue
		}
		entries = append(entries, entry{antigen: agNo, protected: ag.protected(), distance: euclidean(p.Layout.Point(agNo), center)})
		if ag.protected() {
			numProtected++
		}
	}
	if numProtected == 0 || numProtected == len(entries) {
		return result
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].distance < entries[j].distance })

	const none = -1
	bestSum := none
	previousDist := -1.0
	var tiedRadii []float64
	for _, en := range entries {
		radius := en.distance
		if previousDist >= 0 {
			radius = (en.distance + previousDist) / 2
		}
		protectedOutside, notProtectedInside := 0, 0
		for _, other := range entries {
			inside := other.distance <= radius
			switch {
			case other.protected && !inside:
				protectedOutside++
			case !other.protected && inside:
				notProtectedInside++
			}
		}
		summa := protectedOutside + notProtectedInside
		if bestSum == none || bestSum >= summa {
			if bestSum == summa {
				tiedRadii = append(tiedRadii, radius)
			} else {
				tiedRadii = []float64{radius}
				bestSum = summa
			}
		}
		previousDist = en.distance
	}
	if len(tiedRadii) > 0 {
		result.Empirical = stat.Mean(tiedRadii, nil)
		result.HasEmpirical = true
	}
	return result
}

func euclidean(a, b []float64) float64 { return floats.Distance(a, b, 2) }
