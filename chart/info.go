// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chart is the aggregate data model: Info, Antigen, Serum,
// Projection and Chart itself, plus the annotation/passage helpers the
// common-antigen/sera matcher (package match) builds on.
package chart

// Info is a chart's provenance: lab, assay, date, and — for a merged
// chart — the list of contributing sub-table sources.
type Info struct {
	Name       string
	Virus      string
	Subtype    string
	Assay      string
	Date       string
	Lab        string
	RBCSpecies string
	Subset     string
	TableType  string
	Sources    []Info
}
