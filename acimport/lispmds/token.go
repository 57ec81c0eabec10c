// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lispmds

import (
	"fmt"
	"strings"
	"unicode"
)

// tokenKind is the lexical class of one lispmds token, ported from
// cc/chart/v2/lispmds-token.cc's Tokenizer::Token enum (each kind tagged
// with the same character the original uses for its enum values, kept
// here only for familiarity in error messages).
type tokenKind byte

const (
	tokEnd       tokenKind = 'E'
	tokSymbol    tokenKind = '\''
	tokKeyword   tokenKind = ':'
	tokNumber    tokenKind = 'N'
	tokString    tokenKind = 'S'
	tokOpenList  tokenKind = '('
	tokCloseList tokenKind = ')'
)

type token struct {
	kind tokenKind
	text string
}

// tokenizer scans lispmds s-expression text one token at a time, a
// direct port of cc/chart/v2/lispmds-token.cc's Tokenizer class.
type tokenizer struct {
	data string
	pos  int
}

func newTokenizer(data string) *tokenizer { return &tokenizer{data: data} }

func (t *tokenizer) skipSpaces() {
	for t.pos < len(t.data) && unicode.IsSpace(rune(t.data[t.pos])) {
		t.pos++
	}
}

func (t *tokenizer) skipUntilEOL() {
	for t.pos < len(t.data) && t.data[t.pos] != '\n' {
		t.pos++
	}
}

// next returns the next token, or tokEnd once the input is exhausted. It
// returns an error for lexical constructs this reader does not support
// (a bare top-level ','), the Go-idiomatic equivalent of
// cc/chart/v2/lispmds-token.cc:154-155 throwing for the same input: this
// package reports every other malformed-input condition as an error, not
// a panic, and untrusted lispmds input should not be able to crash the
// caller's process.
func (t *tokenizer) next() (token, error) {
	for t.pos < len(t.data) {
		t.skipSpaces()
		if t.pos >= len(t.data) {
			break
		}
		switch c := t.data[t.pos]; c {
		case ';':
			t.skipUntilEOL()
		case '(':
			t.pos++
			return token{kind: tokOpenList}, nil
		case ')':
			t.pos++
			return token{kind: tokCloseList}, nil
		case '+', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			return t.extractNumber(), nil
		case '\'':
			t.pos++
			if t.pos < len(t.data) && t.data[t.pos] != '(' {
				return t.extractSymbol(tokSymbol), nil
			}
		case '`':
			t.pos++
		case '"':
			return t.extractUntil('"', tokString), nil
		case '|':
			return t.extractUntil('|', tokSymbol), nil
		case ',':
			return token{}, malformedInput{reason: fmt.Sprintf("unsupported symbol %q at pos %d", c, t.pos)}
		case ':':
			return t.extractSymbol(tokKeyword), nil
		default:
			return t.extractSymbol(tokSymbol), nil
		}
	}
	return token{kind: tokEnd}, nil
}

// extractNumber consumes a number token (integer, float, or scientific
// with d/D/e/E as the exponent letter), falling back to extractSymbol if
// the run turns out not to be a well-formed number — the same bail-out
// the original performs by resetting mPos and calling extract_symbol.
func (t *tokenizer) extractNumber() token {
	first := t.pos
	t.pos++
	exp, dot, sign := false, false, true // no sign is possible now
	for cont := true; cont && t.pos < len(t.data); {
		switch c := t.data[t.pos]; {
		case c >= '0' && c <= '9':
			t.pos++
		case c == '.':
			if dot {
				t.pos = first
				return t.extractSymbol(tokSymbol)
			}
			dot = true
			t.pos++
		case c == '+' || c == '-':
			if !exp || sign {
				t.pos = first
				return t.extractSymbol(tokSymbol)
			}
			sign = true
			t.pos++
		case c == 'E' || c == 'e' || c == 'D' || c == 'd':
			if exp {
				t.pos = first
				return t.extractSymbol(tokSymbol)
			}
			exp = true
			sign = false // now sign and dot are possible again
			dot = false
			t.pos++
		case c == ' ' || c == '\r' || c == '\n' || c == ')':
			cont = false
		default:
			t.pos = first
			return t.extractSymbol(tokSymbol)
		}
	}
	return token{kind: tokNumber, text: t.data[first:t.pos]}
}

// extractUntil consumes a run terminated by ending (a closing quote or
// pipe), not itself included in the returned text.
func (t *tokenizer) extractUntil(ending byte, kind tokenKind) token {
	t.pos++
	first := t.pos
	for t.pos < len(t.data) && t.data[t.pos] != ending {
		t.pos++
	}
	end := t.pos
	if t.pos < len(t.data) {
		t.pos++
	}
	return token{kind: kind, text: t.data[first:end]}
}

// extractSymbol consumes a bare symbol/keyword run, stopping at
// whitespace, list delimiters, comma, quote or backtick; a backslash
// escapes the next byte, and a pipe run is skipped over verbatim,
// exactly as cc/chart/v2/lispmds-token.cc's extract_symbol does.
func (t *tokenizer) extractSymbol(kind tokenKind) token {
	first := t.pos
	t.pos++
	for cont := true; cont && t.pos < len(t.data); {
		switch t.data[t.pos] {
		case ' ', '\n', '\r', '\t', '(', ')', ',', '\'', '`':
			cont = false
		case '\\':
			t.pos++
			if t.pos < len(t.data) {
				t.pos++
			}
		case '|':
			t.pos++
			for t.pos < len(t.data) && t.data[t.pos] != '|' {
				t.pos++
			}
			if t.pos < len(t.data) {
				t.pos++
			}
		default:
			t.pos++
		}
	}
	return token{kind: kind, text: t.data[first:t.pos]}
}

// numberText rewrites a lispmds number token's text the way
// acmacs::lispmds::number's constructor does: 'd'/'D' (the Lisp
// double-float exponent marker) becomes 'e' so strconv.ParseFloat
// accepts it.
func numberText(text string) string {
	return strings.Map(func(r rune) rune {
		if r == 'd' || r == 'D' {
			return 'e'
		}
		return r
	}, text)
}
