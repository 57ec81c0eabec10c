// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package relax

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// LayoutRandomizer draws a set of coordinates for the points being
// randomized. diameter is max(table_distance) ·
// randomization_diameter_multiplier (spec.md §4.H step 1); coords has
// length numPoints*dims and only the rows listed in toRandomize (point
// indexes) are overwritten.
type LayoutRandomizer interface {
	Randomize(coords []float64, dims int, toRandomize []int, diameter float64)
	// Seeded reports whether this randomizer was constructed with an
	// explicit seed; a seeded randomizer forces
	// Options.NumberOfOptimizations to 1 (spec.md §4.H step 1).
	Seeded() bool
}

// UniformRandomizer draws each coordinate independently and uniformly
// within [-diameter/2, diameter/2], grounded on
// gonum.org/v1/gonum/stat/distuv.Uniform.
type UniformRandomizer struct {
	src    rand.Source
	seeded bool
}

// NewUniformRandomizer returns a UniformRandomizer drawing from a source
// seeded with seed; it reports Seeded() false, so it does not force
// Options.NumberOfOptimizations to 1.
func NewUniformRandomizer(seed uint64) *UniformRandomizer {
	return &UniformRandomizer{src: rand.NewSource(seed)}
}

// NewSeededUniformRandomizer returns a UniformRandomizer whose draws are
// reproducible for the given seed; using it forces
// Options.NumberOfOptimizations to 1.
func NewSeededUniformRandomizer(seed uint64) *UniformRandomizer {
	return &UniformRandomizer{src: rand.NewSource(seed), seeded: true}
}

func (r *UniformRandomizer) Seeded() bool { return r.seeded }

func (r *UniformRandomizer) Randomize(coords []float64, dims int, toRandomize []int, diameter float64) {
	d := distuv.Uniform{Min: -diameter / 2, Max: diameter / 2, Src: r.src}
	for _, p := range toRandomize {
		base := p * dims
		for k := 0; k < dims; k++ {
			coords[base+k] = d.Rand()
		}
	}
}

// NormalRandomizer draws each coordinate from a zero-mean normal whose
// standard deviation gives the same spread as a uniform draw over
// diameter, grounded on gonum.org/v1/gonum/stat/distuv.Normal.
type NormalRandomizer struct {
	src    rand.Source
	seeded bool
}

// NewNormalRandomizer returns a NormalRandomizer seeded from seed.
func NewNormalRandomizer(seed uint64) *NormalRandomizer {
	return &NormalRandomizer{src: rand.NewSource(seed)}
}

// NewSeededNormalRandomizer returns a NormalRandomizer whose draws are
// reproducible for the given seed; using it forces
// Options.NumberOfOptimizations to 1.
func NewSeededNormalRandomizer(seed uint64) *NormalRandomizer {
	return &NormalRandomizer{src: rand.NewSource(seed), seeded: true}
}

func (r *NormalRandomizer) Seeded() bool { return r.seeded }

func (r *NormalRandomizer) Randomize(coords []float64, dims int, toRandomize []int, diameter float64) {
	// A uniform distribution on [-d/2, d/2] has standard deviation
	// d/sqrt(12); match that spread so either randomizer produces
	// layouts of comparable scale.
	sigma := diameter / 3.4641016151377544 // sqrt(12)
	d := distuv.Normal{Mu: 0, Sigma: sigma, Src: r.src}
	for _, p := range toRandomize {
		base := p * dims
		for k := 0; k < dims; k++ {
			coords[base+k] = d.Rand()
		}
	}
}
