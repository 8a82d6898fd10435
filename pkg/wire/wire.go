/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package wire is the line format spoken between controller and worker.
//
// A request is one line of whitespace separated signed decimal integers. A
// response is one line: "sum=<n>\n", or one of two fixed diagnostics.
//
// Sums use 64-bit two's complement arithmetic and wrap silently on overflow,
// both while accumulating a numeral and while adding numerals together.
package wire

import (
	"bytes"
	"strconv"
)

// Kind classifies a parsed request line.
type Kind int

const (
	// KindEmpty means the line held no numeral.
	KindEmpty Kind = iota
	// KindSum means at least one numeral and no malformed one.
	KindSum
	// KindParseError means a numeral ran into '.' or ','.
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindSum:
		return "sum"
	case KindParseError:
		return "parse_error"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Fixed response texts.
const (
	SumPrefix        = "sum="
	MsgInvalidFormat = "ERR: invalid number format\n"
	MsgNoNumbers     = "ERR: no numbers found\n"
)

// Result is the outcome of ParseSum. Total is meaningful only for KindSum.
type Result struct {
	Kind  Kind
	Total int64
}

// ParseSum sums the numerals of line.
//
// Leading spaces, tabs and carriage returns are skipped before each numeral.
// A numeral is an optional sign and one or more digits. Tokenizing stops at
// the first position that does not start a numeral, which includes the end
// of the line, '\n' and NUL. A numeral followed directly by '.' or ','
// makes the whole line a KindParseError, whatever came before it.
func ParseSum(line []byte) Result {
	var (
		i     int
		total int64
		found bool
	)
	for {
		v, status := nextNumeral(line, &i)
		switch status {
		case tokenOK:
			total += v
			found = true
		case tokenMalformed:
			return Result{Kind: KindParseError}
		default:
			if !found {
				return Result{Kind: KindEmpty}
			}
			return Result{Kind: KindSum, Total: total}
		}
	}
}

type tokenStatus int

const (
	tokenEnd tokenStatus = iota
	tokenOK
	tokenMalformed
)

func nextNumeral(s []byte, i *int) (int64, tokenStatus) {
	for *i < len(s) && (s[*i] == ' ' || s[*i] == '\t' || s[*i] == '\r') {
		*i++
	}
	var neg bool
	if *i < len(s) && (s[*i] == '+' || s[*i] == '-') {
		neg = s[*i] == '-'
		*i++
	}
	if *i >= len(s) || !isDigit(s[*i]) {
		return 0, tokenEnd
	}
	var v int64
	for *i < len(s) && isDigit(s[*i]) {
		v = v*10 + int64(s[*i]-'0')
		*i++
	}
	if *i < len(s) && (s[*i] == '.' || s[*i] == ',') {
		// swallow the rest of the malformed token
		for *i < len(s) && s[*i] != 0 && s[*i] != ' ' && s[*i] != '\n' {
			*i++
		}
		return 0, tokenMalformed
	}
	if neg {
		v = -v
	}
	return v, tokenOK
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// AppendSum appends "sum=<n>\n" to dst.
func AppendSum(dst []byte, n int64) []byte {
	dst = append(dst, SumPrefix...)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, '\n')
}

// EncodeSum returns "sum=<n>\n".
func EncodeSum(n int64) []byte {
	return AppendSum(make([]byte, 0, len(SumPrefix)+21), n)
}

// AppendResponse appends the response line for r to dst.
func AppendResponse(dst []byte, r Result) []byte {
	switch r.Kind {
	case KindSum:
		return AppendSum(dst, r.Total)
	case KindParseError:
		return append(dst, MsgInvalidFormat...)
	default:
		return append(dst, MsgNoNumbers...)
	}
}

// Response returns the response line for r.
func Response(r Result) []byte {
	return AppendResponse(nil, r)
}

// Classify maps a response line back to the kind of request that produced it.
// It reports false for text that is not a response.
func Classify(resp []byte) (Kind, bool) {
	switch {
	case bytes.HasPrefix(resp, []byte(SumPrefix)):
		return KindSum, true
	case bytes.Equal(resp, []byte(MsgInvalidFormat)):
		return KindParseError, true
	case bytes.Equal(resp, []byte(MsgNoNumbers)):
		return KindEmpty, true
	}
	return KindEmpty, false
}

// Truncate cuts line to at most max bytes. Response lines that do not fit a
// transport's buffer are cut, not rejected.
func Truncate(line []byte, max int) []byte {
	if max < 0 {
		max = 0
	}
	if len(line) > max {
		return line[:max]
	}
	return line
}

// IsSentinel reports whether a request is the termination sentinel: an empty
// payload or one that starts with a newline or a NUL byte.
func IsSentinel(line []byte) bool {
	return len(line) == 0 || line[0] == '\n' || line[0] == 0
}
