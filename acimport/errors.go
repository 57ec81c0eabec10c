// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acimport sniffs and imports the three chart text formats
// (canonical JSON, legacy acd1 JSON, lispmds s-expressions) into a
// chart.Chart, and exports back to canonical JSON (spec.md §4.O, §6).
package acimport

// Format is one of the three recognized source formats.
type Format int

// Supported Formats.
const (
	FormatUnknown Format = iota
	FormatAce
	FormatACD1
	FormatLispmds
)

func (f Format) String() string {
	switch f {
	case FormatAce:
		return "ace"
	case FormatACD1:
		return "acd1"
	case FormatLispmds:
		return "lispmds"
	default:
		return "unknown"
	}
}

// ErrUnsupportedFormat reports that data matched none of the three
// recognized sniffing rules (spec.md §6 Sniffing, §7).
type ErrUnsupportedFormat struct{}

func (e ErrUnsupportedFormat) Error() string { return "acimport: unsupported format" }
