// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import "fmt"

// ErrStructureInvalid reports a titer table whose shape violates an
// invariant (e.g. a dense row whose length does not match the serum
// count).
type ErrStructureInvalid struct {
	Reason string
}

func (e ErrStructureInvalid) Error() string {
	return fmt.Sprintf("table: structure invalid: %s", e.Reason)
}

// ErrDataNotAvailable is returned when a requested optional substructure
// (e.g. a layer index out of range) is absent.
type ErrDataNotAvailable struct {
	What string
}

func (e ErrDataNotAvailable) Error() string {
	return fmt.Sprintf("table: data not available: %s", e.What)
}
