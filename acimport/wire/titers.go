// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire holds the titer-grid decode/encode helpers shared by
// every importer (spec.md §6's "t" key: exactly one of a dense "l" list
// or a sparse "d" list of dicts). It is a leaf package so acimport/ace,
// acimport/acd1 and acimport/lispmds can all depend on it without a
// cycle back through acimport itself.
package wire

import (
	"fmt"

	"github.com/skepner/acmacs-chart/table"
	"github.com/skepner/acmacs-chart/titer"
)

// DenseTiters builds a Table from a dense antigen-major grid of titer
// text cells.
func DenseTiters(rows [][]string) (*table.Table, error) {
	numAntigens := len(rows)
	numSera := 0
	if numAntigens > 0 {
		numSera = len(rows[0])
	}
	cells := make([][]titer.Titer, numAntigens)
	for i, row := range rows {
		cells[i] = make([]titer.Titer, numSera)
		for j, text := range row {
			ti, err := titer.Parse(text)
			if err != nil {
				return nil, fmt.Errorf("titer at antigen %d, serum %d: %w", i, j, err)
			}
			cells[i][j] = ti
		}
	}
	return table.NewDense(numAntigens, numSera, cells)
}

// SparseTiters builds a Table from numAntigens rows, each a sparse
// serum-index(as decimal string)→titer-text map; missing cells are
// don't-care.
func SparseTiters(numAntigens, numSera int, rows []map[string]string) (*table.Table, error) {
	maps := make([]map[int]titer.Titer, len(rows))
	for i, row := range rows {
		m := make(map[int]titer.Titer, len(row))
		for key, text := range row {
			j, err := parseIndex(key)
			if err != nil {
				return nil, fmt.Errorf("sparse titer antigen %d: %w", i, err)
			}
			ti, err := titer.Parse(text)
			if err != nil {
				return nil, fmt.Errorf("titer at antigen %d, serum %s: %w", i, key, err)
			}
			m[j] = ti
		}
		maps[i] = m
	}
	return table.NewSparse(numAntigens, numSera, maps)
}

func parseIndex(key string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(key, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid serum index key %q", key)
	}
	return n, nil
}

// DenseGrid renders t as a dense antigen-major grid of titer text, for
// canonical-JSON export.
func DenseGrid(t *table.Table) [][]string {
	out := make([][]string, t.NumAntigens())
	for i := range out {
		out[i] = make([]string, t.NumSera())
		for j := range out[i] {
			out[i][j] = t.Titer(i, j).Format()
		}
	}
	return out
}
