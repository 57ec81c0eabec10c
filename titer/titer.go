// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package titer implements the Titer value: a single hemagglutination-
// inhibition (or similar assay) measurement, stored as a kind tag plus an
// integer value, with arithmetic carried out in log₂ space.
package titer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind distinguishes the five forms a Titer can take.
type Kind uint8

// Supported Kinds.
const (
	// Regular is a plain measured titer, e.g. "40".
	Regular Kind = iota
	// LessThan is an upper-bound-only titer, e.g. "<10".
	LessThan
	// MoreThan is a lower-bound-only titer, e.g. ">1280".
	MoreThan
	// Dodgy is a measured-but-unreliable titer, e.g. "~20".
	Dodgy
	// DontCare marks an unmeasured cell, formatted "*".
	DontCare
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case LessThan:
		return "less-than"
	case MoreThan:
		return "more-than"
	case Dodgy:
		return "dodgy"
	case DontCare:
		return "dont-care"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Titer is a single antigen×serum cross-reactivity measurement. The zero
// value is not a valid Titer; construct one with Parse or the New*
// constructors.
type Titer struct {
	kind  Kind
	value int // a positive multiple of 10; unused (0) for DontCare
}

// ErrInvalidTiter is returned by Parse when text is empty or its numeric
// suffix cannot be parsed as a positive multiple of 10.
type ErrInvalidTiter struct {
	Text string
}

func (e ErrInvalidTiter) Error() string {
	return fmt.Sprintf("titer: invalid titer text %q", e.Text)
}

// DontCareValue is the canonical text of a don't-care titer.
const DontCareValue = "*"

// Parse converts a titer's text form ("40", "<10", ">1280", "~20", "*")
// into a Titer. It fails with ErrInvalidTiter on empty input or an
// unparseable numeric suffix.
func Parse(text string) (Titer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Titer{}, ErrInvalidTiter{Text: text}
	}
	if text == DontCareValue {
		return Titer{kind: DontCare}, nil
	}
	kind := Regular
	rest := text
	switch text[0] {
	case '<':
		kind = LessThan
		rest = text[1:]
	case '>':
		kind = MoreThan
		rest = text[1:]
	case '~':
		kind = Dodgy
		rest = text[1:]
	}
	v, err := strconv.Atoi(rest)
	if err != nil || v <= 0 || v%10 != 0 {
		return Titer{}, ErrInvalidTiter{Text: text}
	}
	return Titer{kind: kind, value: v}, nil
}

// NewRegular returns a regular Titer with the given value, a positive
// multiple of 10.
func NewRegular(value int) Titer { return Titer{kind: Regular, value: value} }

// NewLessThan returns a less-than Titer.
func NewLessThan(value int) Titer { return Titer{kind: LessThan, value: value} }

// NewMoreThan returns a more-than Titer.
func NewMoreThan(value int) Titer { return Titer{kind: MoreThan, value: value} }

// NewDodgy returns a dodgy Titer.
func NewDodgy(value int) Titer { return Titer{kind: Dodgy, value: value} }

// DontCareTiter is the titer for an unmeasured cell.
var DontCareTiter = Titer{kind: DontCare}

// Kind returns the titer's kind.
func (t Titer) Kind() Kind { return t.kind }

// Value returns the titer's raw integer value (0 for don't-care).
func (t Titer) Value() int { return t.value }

// IsRegular reports whether t is a regular titer.
func (t Titer) IsRegular() bool { return t.kind == Regular }

// IsLessThan reports whether t is a less-than titer.
func (t Titer) IsLessThan() bool { return t.kind == LessThan }

// IsMoreThan reports whether t is a more-than titer.
func (t Titer) IsMoreThan() bool { return t.kind == MoreThan }

// IsDodgy reports whether t is a dodgy titer.
func (t Titer) IsDodgy() bool { return t.kind == Dodgy }

// IsDontCare reports whether t is a don't-care titer.
func (t Titer) IsDontCare() bool { return t.kind == DontCare }

// LoggedForColumnBases returns the log₂ contribution of t to a column
// basis computation: log2(v/10) for regular and dodgy, log2(v/10)+1 for
// more-than, log2(v/10) for less-than. It panics on a don't-care titer;
// callers must filter those out first (spec.md §4.D only ever calls this
// on non-dont-care cells).
func (t Titer) LoggedForColumnBases() float64 {
	if t.kind == DontCare {
		panic("titer: LoggedForColumnBases called on a don't-care titer")
	}
	l := math.Log2(float64(t.value) / 10)
	if t.kind == MoreThan {
		return l + 1
	}
	return l
}

// Similarity returns the log₂ similarity value used by layer merge
// (table.SetFromLayers) and serum-circle radius computations:
// log2(v/10) for regular, dodgy and less-than; the ok
// return is false for more-than and don't-care, which have no such value.
func (t Titer) Similarity() (value float64, ok bool) {
	switch t.kind {
	case Regular, Dodgy, LessThan:
		return math.Log2(float64(t.value) / 10), true
	default:
		return 0, false
	}
}

// Format renders t back to its canonical text form; Parse(t.Format())
// always equals t.
func (t Titer) Format() string {
	switch t.kind {
	case DontCare:
		return DontCareValue
	case LessThan:
		return "<" + strconv.Itoa(t.value)
	case MoreThan:
		return ">" + strconv.Itoa(t.value)
	case Dodgy:
		return "~" + strconv.Itoa(t.value)
	default:
		return strconv.Itoa(t.value)
	}
}

// String implements fmt.Stringer.
func (t Titer) String() string { return t.Format() }

// FromLog2 rounds a log₂ similarity value to the nearest 2ⁿ·10 step and
// returns a Titer of the given kind at that value. It is used by layer
// merge (table.SetFromLayers) to turn a geometric-mean or midpoint log
// value back into a titer.
func FromLog2(logValue float64, kind Kind) Titer {
	n := math.Round(logValue)
	value := int(math.Round(10 * math.Pow(2, n)))
	if value <= 0 {
		value = 10
	}
	return Titer{kind: kind, value: value}
}

// MarshalText implements encoding.TextMarshaler, so a Titer can be used
// directly as a JSON string value.
func (t Titer) MarshalText() ([]byte, error) { return []byte(t.Format()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Titer) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
