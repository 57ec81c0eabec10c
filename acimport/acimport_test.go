// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acimport

import "testing"

const aceDoc = `{
  "  version": "acmacs-ace-v1",
  "c": {
    "i": {"N": "test chart"},
    "a": [{"N": "A/TEST/1/2020"}],
    "s": [{"N": "A/TEST/1/2020", "I": "S1"}],
    "t": {"l": [["80"]]}
  }
}`

const acd1Doc = `data = {'table': {'antigens': [{'name': 'A/TEST/1/2020'}], 'sera': [{'name': 'A/TEST/1/2020', 'serum_id': 'S1'}], 'titers': {'titers_list_of_list': [['80']]}}}`

const lispmdsDoc = `(MAKE-MASTER-MDS-WINDOW
 (TABLE
  (A/TEST/1/2020)
  (A/TEST/1/2020_\{S1\})
  ((3))
  "test chart")
 (HI-IN-DUMMY 1)
)
`

func TestSniffRecognizesAllThreeFormats(t *testing.T) {
	cases := []struct {
		name string
		data string
		want Format
	}{
		{"ace", aceDoc, FormatAce},
		{"acd1", acd1Doc, FormatACD1},
		{"lispmds", lispmdsDoc, FormatLispmds},
		{"unknown", "not a chart at all", FormatUnknown},
	}
	for _, c := range cases {
		if got := Sniff([]byte(c.data)); got != c.want {
			t.Errorf("Sniff(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestImportDispatchesToEachFormat(t *testing.T) {
	for _, data := range []string{aceDoc, acd1Doc, lispmdsDoc} {
		c, err := Import([]byte(data))
		if err != nil {
			t.Fatalf("Import(%q): %v", data[:20], err)
		}
		if c.NumAntigens() != 1 || c.NumSera() != 1 {
			t.Fatalf("Import(%q): unexpected shape %d/%d", data[:20], c.NumAntigens(), c.NumSera())
		}
	}
}

func TestImportRejectsUnrecognizedFormat(t *testing.T) {
	_, err := Import([]byte("not a chart at all"))
	if _, ok := err.(ErrUnsupportedFormat); !ok {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExportAlwaysWritesAce(t *testing.T) {
	for _, data := range []string{aceDoc, acd1Doc, lispmdsDoc} {
		c, err := Import([]byte(data))
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
		if Sniff(out) != FormatAce {
			t.Fatalf("Export did not produce ace-sniffable output for source %q", data[:20])
		}
		if reimported.NumAntigens() != c.NumAntigens() {
			t.Fatalf("round trip changed antigen count")
		}
	}
}
