// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acd1

import (
	"strings"
	"unicode"
)

// dataMarker is where the legacy acd1 textual format's payload begins;
// everything before it (a Python-ish assignment header) is discarded.
const dataMarker = "data = {"

// toJSON rewrites acd1's Python-literal text into valid JSON, the same
// eight transforms cc/chart/v2/acd1-import.cc's convert_to_json applies
// in a single left-to-right scan: quote conversion (preserving
// apostrophes inside words), True/False/None keyword replacement,
// "[nan, nan]" collapse, comma-before-close-bracket removal,
// tuple-of-tuples → array-of-arrays, bare numeric key quoting, removal
// of "#" comment lines, and (via the second pass, convertSets) Python
// set-literal → JSON array.
func toJSON(data string) string {
	start := strings.Index(data, dataMarker)
	if start < 0 {
		return data
	}
	start += len(dataMarker) - 1 // position of the opening "{"

	var out strings.Builder
	var perhapsSet []int
	n := len(data)
	for i := start; i < n; i++ {
		c := data[i]
		switch c {
		case '\'':
			if i > 0 && isAlnum(data[i-1]) && i+1 < n && isAlnum(data[i+1]) {
				out.WriteByte(c) // "COTE D'IVOIRE" case
			} else {
				out.WriteByte('"')
				if i > 0 && data[i-1] == '{' {
					perhapsSet = append(perhapsSet, out.Len()-2)
				}
			}
		case '"':
			out.WriteByte(c)
			if i > 0 && data[i-1] == '{' {
				perhapsSet = append(perhapsSet, out.Len()-2)
			}
		case '\\':
			out.WriteByte(c)
			i++
			if i < n {
				out.WriteByte(data[i])
			}
		case 'T':
			if matchesAt(data, i-2, ": True") {
				out.WriteString("true")
				i += 3
			} else {
				out.WriteByte(c)
			}
		case 'F':
			if matchesAt(data, i-2, ": False") {
				out.WriteString("false")
				i += 4
			} else {
				out.WriteByte(c)
			}
		case 'N':
			if matchesAt(data, i-2, ": None") {
				out.WriteString("null")
				i += 3
			} else {
				out.WriteByte(c)
			}
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			isKey, end := objectNumericKey(data, i)
			if isKey {
				out.WriteByte('"')
				out.WriteString(data[i:end])
				out.WriteByte('"')
			} else {
				if i > 0 && data[i-1] == '{' {
					perhapsSet = append(perhapsSet, out.Len()-1)
				}
				out.WriteString(data[i:end])
			}
			i = end - 1
		case 'n':
			if matchesAt(data, i-1, "[nan, nan") {
				i += 3
				for i < n && data[i] != ']' {
					i++
				}
				if i < n {
					out.WriteByte(data[i])
				}
			} else {
				out.WriteByte(c)
			}
		case '}', ']':
			out.WriteByte(c)
			stripTrailingComma(&out)
		case '(':
			if i > 0 && data[i-1] == '{' {
				replaceLast(&out, '[')
				out.WriteByte('[')
			} else {
				out.WriteByte(c)
			}
		case ')':
			switch {
			case i+1 < n && data[i+1] == '}':
				out.WriteString("]]")
				i++
			case i+3 < n && data[i+1:i+4] == ", (":
				out.WriteString("], [")
				i += 3
			default:
				out.WriteByte(c)
			}
		case '#':
			if atLineStart(out.String()) {
				for i++; i < n && data[i] != '\n'; i++ {
				}
			} else {
				out.WriteByte(c)
			}
		default:
			out.WriteByte(c)
		}
	}

	result := out.String()
	return convertSets(result, perhapsSet)
}

func isAlnum(b byte) bool {
	return unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}

func matchesAt(data string, offset int, expected string) bool {
	if offset < 0 || offset+len(expected) > len(data) {
		return false
	}
	return data[offset:offset+len(expected)] == expected
}

// objectNumericKey reports whether the digit run starting at offset is a
// bare numeric object key (e.g. `123: ...`), and returns the index just
// past the run either way.
func objectNumericKey(data string, offset int) (isKey bool, end int) {
	prev := offset - 1
	for prev > 0 && isSpaceByte(data[prev]) {
		prev--
	}
	keyStart := prev >= 0 && (data[prev] == ',' || data[prev] == '{')

	end = offset + 1
	for end < len(data) && isNumberRune(data[end]) {
		end++
	}
	keyEnd := end < len(data) && data[end] == ':'
	return keyStart && keyEnd, end
}

func isNumberRune(b byte) bool {
	switch {
	case b >= '0' && b <= '9', b >= 'a' && b <= 'f', b >= 'A' && b <= 'F':
		return true
	case b == 'x' || b == '.' || b == '-' || b == '+' || b == 'e' || b == 'E':
		return true
	default:
		return false
	}
}

func isSpaceByte(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

// stripTrailingComma erases (turns into a space) a comma that
// immediately precedes the closing bracket/brace just written to out,
// skipping intervening whitespace.
func stripTrailingComma(out *strings.Builder) {
	s := out.String()
	end := len(s) - 2 // the position just before the bracket just appended
	for end > 0 && isSpaceByte(s[end]) {
		end--
	}
	if end >= 0 && end < len(s) && s[end] == ',' {
		fixed := []byte(s)
		fixed[end] = ' '
		out.Reset()
		out.Write(fixed)
	}
}

func replaceLast(out *strings.Builder, b byte) {
	s := []byte(out.String())
	if len(s) == 0 {
		return
	}
	s[len(s)-1] = b
	out.Reset()
	out.Write(s)
}

func atLineStart(built string) bool {
	for i := len(built) - 1; i >= 0; i-- {
		switch built[i] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// convertSets turns each candidate "{...}" recorded in perhapsSet into a
// JSON array "[...]" if it is in fact a Python set literal: a
// single-element or comma-separated run of strings or numbers with no
// ":" key/value separator before its closing brace.
func convertSets(data string, perhapsSet []int) string {
	b := []byte(data)
	for _, offset := range perhapsSet {
		if offset+1 >= len(b) {
			continue
		}
		switch {
		case b[offset+1] == '"':
			p := offset + 2
			for p < len(b) && b[p] != '"' {
				p++
			}
			p++
			if p >= len(b) {
				continue
			}
			switch b[p] {
			case '}':
				b[offset] = '['
				b[p] = ']'
			case ',':
				b[offset] = '['
				for p < len(b) && b[p] != '}' {
					p++
				}
				if p < len(b) {
					b[p] = ']'
				}
			}
		case b[offset+1] >= '0' && b[offset+1] <= '9':
			p := offset + 2
			for p < len(b) && b[p] != ':' && b[p] != '}' {
				p++
			}
			if p < len(b) && b[p] == '}' {
				b[offset] = '['
				b[p] = ']'
			}
		}
	}
	return string(b)
}
