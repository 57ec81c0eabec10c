// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acimport

import (
	"fmt"

	"github.com/skepner/acmacs-chart/acimport/ace"
	"github.com/skepner/acmacs-chart/acimport/acd1"
	"github.com/skepner/acmacs-chart/acimport/lispmds"
	"github.com/skepner/acmacs-chart/chart"
)

// Sniff identifies data's format by trying each of the three sniffing
// rules in turn (spec.md §6 Sniffing): canonical JSON, then legacy
// acd1, then lispmds. Order matters only in that it is cheap and
// unambiguous — the three rules do not overlap on well-formed input.
func Sniff(data []byte) Format {
	switch {
	case ace.IsAce(data):
		return FormatAce
	case acd1.IsACD1(data):
		return FormatACD1
	case lispmds.IsLispmds(data):
		return FormatLispmds
	default:
		return FormatUnknown
	}
}

// Import sniffs data's format and decodes it into a *chart.Chart,
// dispatching to whichever of ace/acd1/lispmds recognized it.
func Import(data []byte) (*chart.Chart, error) {
	switch Sniff(data) {
	case FormatAce:
		return ace.Import(data)
	case FormatACD1:
		return acd1.Import(data)
	case FormatLispmds:
		return lispmds.Import(data)
	default:
		return nil, ErrUnsupportedFormat{}
	}
}

// Export writes c in the canonical JSON format: spec.md §4.O states that
// regardless of which format a chart was imported from, the only format
// this package ever writes back out is ace/json.
func Export(c *chart.Chart) ([]byte, error) {
	data, err := ace.Export(c)
	if err != nil {
		return nil, fmt.Errorf("acimport: %w", err)
	}
	return data, nil
}
