// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package relax wraps gonum.org/v1/gonum/optimize.Minimize as the
// external minimizer spec.md §4.H calls for: it randomizes a
// projection's starting layout, scopes disconnected points out of the
// optimization, drives Minimize with a stress.Problem, and supports
// dimension annealing and multi-start parallel fan-out.
package relax

import "math"

// Method selects the external minimizer algorithm.
type Method int

// Supported Methods.
const (
	MethodLBFGS Method = iota
	MethodCG
)

func (m Method) String() string {
	if m == MethodCG {
		return "conjugate-gradient"
	}
	return "lbfgs"
}

// PrecisionLevel selects the convergence tolerance. The thresholds are
// chosen to reproduce stored legacy stresses to within 1e-6 (spec.md
// §4.H).
type PrecisionLevel int

// Supported PrecisionLevels.
const (
	PrecisionRough PrecisionLevel = iota
	PrecisionFine
	PrecisionVeryFine
)

// GradientThreshold returns the infinity-norm gradient convergence
// threshold for the precision level, fed to optimize.Settings.
func (p PrecisionLevel) GradientThreshold() float64 {
	switch p {
	case PrecisionFine:
		return 1e-8
	case PrecisionVeryFine:
		return 1e-10
	default:
		return 1e-4
	}
}

func (p PrecisionLevel) String() string {
	switch p {
	case PrecisionFine:
		return "fine"
	case PrecisionVeryFine:
		return "very-fine"
	default:
		return "rough"
	}
}

// Options controls a relax call. Unlike the underlying gonum Method,
// Options carries no cancellation hook: a relax call is synchronous and
// always runs to completion or to one of optimize's own limits
// (spec.md §4.H scheduling model).
type Options struct {
	Threads   int // 0 or 1: sequential; >1: parallel fan-out of NumberOfOptimizations
	Method    Method
	Precision PrecisionLevel

	Incremental bool // if false, every non-unmovable point is randomized first

	MinTitersPerPoint             int  // default 3
	DisconnectTooFewNumericTiters bool // add under-titrated points to disconnected

	RandomizationDiameterMultiplier float64 // default 2.0
	MaxIterations                   int     // 0 means no limit beyond optimize's defaults

	NumberOfOptimizations int // how many independent starts to run; 1 if a seed is set

	Randomizer LayoutRandomizer
}

// DefaultOptions returns the spec.md §4.H defaults.
func DefaultOptions() Options {
	return Options{
		Threads:                          1,
		Method:                           MethodLBFGS,
		Precision:                        PrecisionFine,
		MinTitersPerPoint:                3,
		DisconnectTooFewNumericTiters:    true,
		RandomizationDiameterMultiplier:  2.0,
		NumberOfOptimizations:            1,
		Randomizer:                       NewUniformRandomizer(0),
	}
}

// TerminationReason summarizes why a relax call stopped, independent of
// gonum's own Status type so callers don't need to import optimize.
type TerminationReason int

// Supported TerminationReasons.
const (
	TerminationConverged TerminationReason = iota
	TerminationIterationLimit
	TerminationFunctionEvaluationLimit
	TerminationOther
)

func (r TerminationReason) String() string {
	switch r {
	case TerminationConverged:
		return "converged"
	case TerminationIterationLimit:
		return "iteration-limit"
	case TerminationFunctionEvaluationLimit:
		return "function-evaluation-limit"
	default:
		return "other"
	}
}

// Status reports the outcome of a relax call (spec.md §4.H step 5).
type Status struct {
	FinalStress       float64
	Iterations        int
	Converged         bool
	TerminationReason TerminationReason
}

func nanStatus() Status {
	return Status{FinalStress: math.NaN(), TerminationReason: TerminationOther}
}
