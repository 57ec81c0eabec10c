// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chart

import "fmt"

// ErrStructureInvalid reports a Chart whose antigens/sera/titers/
// projections disagree in shape (spec.md §3 invariants).
type ErrStructureInvalid struct {
	Reason string
}

func (e ErrStructureInvalid) Error() string {
	return fmt.Sprintf("chart: structure invalid: %s", e.Reason)
}
