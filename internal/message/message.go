// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package message collects the non-fatal diagnostics that chart operations
// emit without failing: annotation mismatches on merge, cheating-assay
// fallbacks, dimension-annealing oddities. Nothing in this module writes to
// stderr or stdout; a Report is returned alongside the operation's result
// and it is the caller's choice whether to print, log, or discard it.
package message

import (
	"fmt"
	"strings"
)

// Kind classifies a Message so callers can filter a Report without string
// matching.
type Kind int

// Supported Kinds.
const (
	// Info is a purely informational note (e.g. a cheating-assay fallback).
	Info Kind = iota
	// Warning indicates data that is unusual but was handled (e.g. an
	// antigen/serum field mismatch during merge).
	Warning
)

func (k Kind) String() string {
	switch k {
	case Info:
		return "info"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Message is a single diagnostic with an optional context label (e.g. the
// cell or record the message is about).
type Message struct {
	Kind    Kind
	Context string
	Text    string
}

func (m Message) String() string {
	if m.Context == "" {
		return m.Text
	}
	return m.Context + ": " + m.Text
}

// Report is an ordered collection of Messages produced during one
// operation (merge, import, set_from_layers, ...).
type Report struct {
	messages []Message
}

// Add appends a Message to the Report.
func (r *Report) Add(kind Kind, context, text string) {
	r.messages = append(r.messages, Message{Kind: kind, Context: context, Text: text})
}

// Warningf appends a Warning built from a formatted string.
func (r *Report) Warningf(context, format string, args ...any) {
	r.Add(Warning, context, fmt.Sprintf(format, args...))
}

// Infof appends an Info built from a formatted string.
func (r *Report) Infof(context, format string, args ...any) {
	r.Add(Info, context, fmt.Sprintf(format, args...))
}

// Messages returns the accumulated messages in emission order.
func (r *Report) Messages() []Message {
	return r.messages
}

// Empty reports whether no message has been recorded.
func (r *Report) Empty() bool {
	return len(r.messages) == 0
}

// Merge appends another Report's messages to r, preserving order.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.messages = append(r.messages, other.messages...)
}

func (r *Report) String() string {
	if r.Empty() {
		return ""
	}
	var b strings.Builder
	for i, m := range r.messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("[" + m.Kind.String() + "] " + m.String())
	}
	return b.String()
}
