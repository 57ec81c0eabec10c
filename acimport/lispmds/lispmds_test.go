// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lispmds

import "testing"

const sampleDoc = `(MAKE-MASTER-MDS-WINDOW
 (TABLE
  (A/TEST/1/2020 A/TEST/2/2020_\(E3\))
  (A/TEST/1/2020_\{S1\} A/TEST/2/2020_SECOND)
  ((3 *) (>7 5))
  "test chart")
 :BATCH-RUNS ((((1.0 2.0) (3.0 4.0) (5.0 6.0) (7.0 8.0)) 0.5))
 (HI-IN-DUMMY 1)
)
`

func TestIsLispmdsRecognizesSExpression(t *testing.T) {
	if !IsLispmds([]byte(sampleDoc)) {
		t.Fatalf("expected IsLispmds to recognize the sample document")
	}
	if IsLispmds([]byte(`{"  version": "acmacs-ace-v1"}`)) {
		t.Fatalf("expected IsLispmds to reject canonical JSON")
	}
	if IsLispmds([]byte(`(MAKE-MASTER-MDS-WINDOW (no HI-IN marker here, padded to be long enough to pass the minimum size check applied before the marker search runs))`)) {
		t.Fatalf("expected IsLispmds to reject input with no (HI-IN marker")
	}
}

func TestImportBuildsChartFromSampleDocument(t *testing.T) {
	c, err := Import([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if c.Info.Name != "test chart" {
		t.Fatalf("unexpected chart name: %q", c.Info.Name)
	}
	if c.NumAntigens() != 2 || c.NumSera() != 2 {
		t.Fatalf("unexpected shape: %d antigens, %d sera", c.NumAntigens(), c.NumSera())
	}

	if c.Antigens[0].Name != "A/TEST/1/2020" || c.Antigens[0].Reassortant != "" {
		t.Fatalf("unexpected antigen 0: %+v", c.Antigens[0])
	}
	if c.Antigens[1].Name != "A/TEST/2/2020" || c.Antigens[1].Reassortant != "E3" {
		t.Fatalf("unexpected antigen 1: %+v", c.Antigens[1])
	}

	if c.Sera[0].Name != "A/TEST/1/2020" || c.Sera[0].SerumID != "S1" {
		t.Fatalf("unexpected serum 0: %+v", c.Sera[0])
	}
	if c.Sera[1].Name != "A/TEST/2/2020 SECOND" {
		t.Fatalf("unexpected serum 1: %+v", c.Sera[1])
	}

	if got := c.Titers.Titer(0, 0).Format(); got != "80" {
		t.Fatalf("unexpected titer(0,0): %v", got)
	}
	if !c.Titers.Titer(0, 1).IsDontCare() {
		t.Fatalf("expected titer(0,1) to be don't-care")
	}
	if got := c.Titers.Titer(1, 0).Format(); got != ">1280" {
		t.Fatalf("unexpected titer(1,0): %v", got)
	}
	if got := c.Titers.Titer(1, 1).Format(); got != "320" {
		t.Fatalf("unexpected titer(1,1): %v", got)
	}

	if len(c.Projections) != 1 {
		t.Fatalf("expected 1 projection, got %d", len(c.Projections))
	}
	p := c.Projections[0]
	if p.Dims() != 2 || p.NumPoints() != 4 {
		t.Fatalf("unexpected projection shape: dims=%d points=%d", p.Dims(), p.NumPoints())
	}
	if p.Stress != 0.5 {
		t.Fatalf("unexpected stress: %v", p.Stress)
	}
	if got := p.Layout.Point(2); got[0] != 5.0 || got[1] != 6.0 {
		t.Fatalf("unexpected point 2: %v", got)
	}
}

func TestImportRejectsMissingAntigens(t *testing.T) {
	_, err := Import([]byte(`(MAKE-MASTER-MDS-WINDOW (TABLE () () ())) `))
	if err == nil {
		t.Fatalf("expected an error for a document with no antigens")
	}
}

func TestImportRejectsMalformedInput(t *testing.T) {
	_, err := Import([]byte(`not lispmds at all`))
	if err == nil {
		t.Fatalf("expected an error for malformed input")
	}
}

func TestImportReturnsErrorRatherThanPanicOnUnsupportedComma(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Import panicked instead of returning an error: %v", r)
		}
	}()
	_, err := Import([]byte(`(MAKE-MASTER-MDS-WINDOW (TABLE (A, B) () ()))`))
	if err == nil {
		t.Fatalf("expected an error for a bare top-level ','")
	}
}

func TestDecodeAntigenNameSplitsTrailingTokens(t *testing.T) {
	name, reassortant, passage, annotations := decodeAntigenName("A/TEST/3/2020 (E3) [DISTINCT1] MDCK2")
	if name != "A/TEST/3/2020" {
		t.Fatalf("unexpected name: %q", name)
	}
	if reassortant != "E3" {
		t.Fatalf("unexpected reassortant: %q", reassortant)
	}
	if passage != "MDCK2" {
		t.Fatalf("unexpected passage: %q", passage)
	}
	if len(annotations) != 1 || annotations[0] != "DISTINCT1" {
		t.Fatalf("unexpected annotations: %v", annotations)
	}
}

func TestLispmdsDecodeUnescapesAndExpandsUnderscores(t *testing.T) {
	got := lispmdsDecode(`A/TEST_\(E3\)`)
	if got != "A/TEST (E3)" {
		t.Fatalf("got %q", got)
	}
}
