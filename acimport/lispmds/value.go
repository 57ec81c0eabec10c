// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lispmds imports the legacy lispmds s-expression chart format
// (spec.md §4.O, §6): a hand-rolled Lisp reader (tokenizer in token.go,
// tree builder here) feeding a small set of fixed-position accessors
// that pull the chart model out of the parsed tree (lispmds.go), a
// direct port of cc/chart/v2/lispmds-token.{cc,hh} and
// cc/chart/v2/lispmds-import.cc.
package lispmds

import (
	"fmt"
	"strconv"
)

// Symbol and Keyword are distinct string kinds so a value's accessors
// can tell a bare symbol ('MDCK1) apart from a keyword (:MDCK1) and from
// a quoted string ("MDCK1"), mirroring the distinct
// acmacs::lispmds::symbol/keyword/string named types.
type Symbol string
type Keyword string

// listNode is the lispmds list value: an ordered, mutable sequence of
// values plus keyword-tagged lookup, mirroring acmacs::lispmds::list
// (itself a thin wrapper around std::vector<value>, built up by
// appending to whichever list is on top of the parser's stack).
type listNode struct {
	items []any
}

func (l *listNode) append(v any) { l.items = append(l.items, v) }

// errKeywordNotFound and errTypeMismatch mirror
// acmacs::lispmds::keyword_no_found / type_mismatch: both are reported
// as plain errors since every caller here treats a missing optional
// keyword the same way the original's catch blocks do — fall back to a
// zero value.
type errKeywordNotFound struct{ keyword string }

func (e errKeywordNotFound) Error() string {
	return fmt.Sprintf("lispmds: keyword %q not found", e.keyword)
}

type errTypeMismatch struct{ reason string }

func (e errTypeMismatch) Error() string { return "lispmds: " + e.reason }

// get walks path (each element an int index or a string keyword) into
// v, a direct port of the get_/get template chain in lispmds-token.hh.
func get(v any, path ...any) (any, error) {
	cur := v
	for _, step := range path {
		l, ok := cur.(*listNode)
		if !ok {
			return nil, errTypeMismatch{"not a list, cannot index"}
		}
		switch key := step.(type) {
		case int:
			if key < 0 || key >= len(l.items) {
				return nil, errTypeMismatch{"index out of range"}
			}
			cur = l.items[key]
		case string:
			found := false
			for i := 0; i+1 < len(l.items); i++ {
				if kw, ok := l.items[i].(Keyword); ok && string(kw) == key {
					cur = l.items[i+1]
					found = true
					break
				}
			}
			if !found {
				return nil, errKeywordNotFound{keyword: key}
			}
		default:
			return nil, errTypeMismatch{"unsupported path step"}
		}
	}
	return cur, nil
}

// mustGet is get, returning nil on any error — used where the caller
// treats "absent" and "wrong shape" identically (the common case here,
// matching the original's liberal catch-and-fall-back style).
func mustGet(v any, path ...any) any {
	r, err := get(v, path...)
	if err != nil {
		return nil
	}
	return r
}

// size mirrors acmacs::lispmds::size: a list's element count, 0 for nil
// ("nil" in lisp terms), and 0 for anything else (the original throws;
// every call site here already expects "not present" to read as empty).
func size(v any) int {
	switch t := v.(type) {
	case *listNode:
		return len(t.items)
	default:
		return 0
	}
}

func sizeAt(v any, path ...any) int { return size(mustGet(v, path...)) }

// empty mirrors acmacs::lispmds::empty.
func empty(v any) bool {
	switch t := v.(type) {
	case *listNode:
		return len(t.items) == 0
	case nil:
		return true
	default:
		return false
	}
}

func emptyAt(v any, path ...any) bool { return empty(mustGet(v, path...)) }

// asNumber converts a lispmds number/symbol value to float64, the way
// the original's std::visit bodies do inline; ok is false if val is
// neither.
func asNumber(val any) (float64, bool) {
	switch t := val.(type) {
	case float64:
		return t, true
	case Symbol:
		f, err := strconv.ParseFloat(numberText(string(t)), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// parseString parses a full lispmds document into its root list value,
// a direct port of acmacs::lispmds::parse_string: the first two tokens
// must be "(" and the symbol MAKE-MASTER-MDS-WINDOW, then every
// following token is appended to (or closes) the list on top of a
// stack, until end of input.
func parseString(data string) (*listNode, error) {
	tz := newTokenizer(data)
	tok, err := tz.next()
	if err != nil {
		return nil, err
	}
	if tok.kind != tokOpenList {
		return nil, fmt.Errorf("lispmds: '(' expected at the beginning of the file")
	}
	if tok, err = tz.next(); err != nil {
		return nil, err
	}
	if tok.kind != tokSymbol || tok.text != "MAKE-MASTER-MDS-WINDOW" {
		return nil, fmt.Errorf("lispmds: \"(MAKE-MASTER-MDS-WINDOW\" expected at the beginning of the file, got %q", tok.text)
	}

	root := &listNode{}
	stack := []*listNode{root}
	for {
		tok, err := tz.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEnd {
			break
		}
		if len(stack) == 0 {
			return nil, errTypeMismatch{"unexpected input after the closing ')'"}
		}
		top := stack[len(stack)-1]
		switch tok.kind {
		case tokOpenList:
			child := &listNode{}
			top.append(child)
			stack = append(stack, child)
		case tokCloseList:
			if len(stack) == 0 {
				return nil, errTypeMismatch{"unexpected ')'"}
			}
			stack = stack[:len(stack)-1]
		case tokSymbol:
			top.append(symbolValue(tok.text))
		case tokKeyword:
			top.append(Keyword(tok.text))
		case tokNumber:
			f, err := strconv.ParseFloat(numberText(tok.text), 64)
			if err != nil {
				return nil, fmt.Errorf("lispmds: invalid number %q: %w", tok.text, err)
			}
			top.append(f)
		case tokString:
			top.append(tok.text)
		}
	}
	// The very first "(" belongs to the outer (MAKE-MASTER-MDS-WINDOW ...)
	// form itself; root holds its arguments, so a well-formed document's
	// matching final ")" pops the stack all the way back to empty.
	if len(stack) != 0 {
		return nil, fmt.Errorf("lispmds: unexpected end of input")
	}
	return root, nil
}

// symbolValue interprets a Symbol token's text the way
// Tokenizer::to_value's caller in parse_string does: "nil"/"NIL" (any
// case) becomes the Go nil value, "t"/"T" becomes true, "f"/"F" becomes
// false, everything else stays a Symbol.
func symbolValue(text string) any {
	if len(text) == 3 && eqFold3(text, "nil") {
		return nil
	}
	if len(text) == 1 && (text[0] == 't' || text[0] == 'T') {
		return true
	}
	if len(text) == 1 && (text[0] == 'f' || text[0] == 'F') {
		return false
	}
	return Symbol(text)
}

func eqFold3(s, lower string) bool {
	for i := 0; i < 3; i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != lower[i] {
			return false
		}
	}
	return true
}
