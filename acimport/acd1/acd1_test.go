// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acd1

import "testing"

const sampleDoc = `data = {
 'chart_info': {'name': 'test chart', 'virus_type': 'A(H3N2)', 'lab': 'CDC'},
 'table': {
  'antigens': [
   {'name': 'A/TEST/1/2020', 'date': '2020-01-01'},
   {'name': 'A/TEST/2/2020', 'reassortant': 'E3', 'passage': 'MDCK2'},
  ],
  'sera': [
   {'name': 'A/TEST/1/2020', 'serum_id': 'S1'},
  ],
  'titers': {'titers_list_of_list': [['80'], ['>1280']]},
 },
 'projections': [
  {'layout': [[1.0, 2.0], [3.0, 4.0], [5.0, 6.0]], 'stress': 0.25},
 ],
}
`

func TestIsACD1RecognizesDataMarker(t *testing.T) {
	if !IsACD1([]byte(sampleDoc)) {
		t.Fatalf("expected IsACD1 to recognize the sample document")
	}
	if IsACD1([]byte(`{"  version": "acmacs-ace-v1"}`)) {
		t.Fatalf("expected IsACD1 to reject canonical JSON")
	}
}

func TestImportBuildsChartFromSampleDocument(t *testing.T) {
	c, err := Import([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if c.Info.Name != "test chart" || c.Info.Subtype != "A(H3N2)" || c.Info.Lab != "CDC" {
		t.Fatalf("unexpected info: %+v", c.Info)
	}
	if c.NumAntigens() != 2 || c.NumSera() != 1 {
		t.Fatalf("unexpected shape: %d antigens, %d sera", c.NumAntigens(), c.NumSera())
	}
	if c.Antigens[1].Reassortant != "E3" || c.Antigens[1].Passage != "MDCK2" {
		t.Fatalf("unexpected antigen 1: %+v", c.Antigens[1])
	}
	if c.Sera[0].SerumID != "S1" {
		t.Fatalf("unexpected serum 0: %+v", c.Sera[0])
	}
	if got := c.Titers.Titer(0, 0).Format(); got != "80" {
		t.Fatalf("unexpected titer(0,0): %v", got)
	}
	if got := c.Titers.Titer(1, 0).Format(); got != ">1280" {
		t.Fatalf("unexpected titer(1,0): %v", got)
	}

	if len(c.Projections) != 1 {
		t.Fatalf("expected 1 projection, got %d", len(c.Projections))
	}
	p := c.Projections[0]
	if p.Dims() != 2 || p.NumPoints() != 3 {
		t.Fatalf("unexpected projection shape: dims=%d points=%d", p.Dims(), p.NumPoints())
	}
	if p.Stress != 0.25 {
		t.Fatalf("unexpected stress: %v", p.Stress)
	}
	if got := p.Layout.Point(1); got[0] != 3.0 || got[1] != 4.0 {
		t.Fatalf("unexpected point 1: %v", got)
	}
}

func TestImportRejectsMalformedInput(t *testing.T) {
	_, err := Import([]byte(`data = {not valid at all`))
	if err == nil {
		t.Fatalf("expected an error for malformed input")
	}
}

func TestExportRoundTripsThroughImport(t *testing.T) {
	c, err := Import([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	out, err := Export(c)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	reimported, err := Import(out)
	if err != nil {
		t.Fatalf("re-Import of exported data: %v", err)
	}
	if reimported.NumAntigens() != c.NumAntigens() || reimported.NumSera() != c.NumSera() {
		t.Fatalf("round trip changed shape: got %d/%d, want %d/%d",
			reimported.NumAntigens(), reimported.NumSera(), c.NumAntigens(), c.NumSera())
	}
	if reimported.Info.Name != c.Info.Name {
		t.Fatalf("round trip changed chart name: got %q, want %q", reimported.Info.Name, c.Info.Name)
	}
	if got := reimported.Titers.Titer(0, 0).Format(); got != "80" {
		t.Fatalf("round trip changed titer(0,0): %v", got)
	}
}
