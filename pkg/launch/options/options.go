// Zaparoo Runtimes
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Runtimes.
//
// Zaparoo Runtimes is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Runtimes is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Runtimes.  If not, see <http://www.gnu.org/licenses/>.

// Package options holds the loosely typed option bag supplied with every
// launch request, and the helpers used to read values out of it.
package options

import (
	"encoding/json"
	"math"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a bag value.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindInvalid:
		return "invalid"
	default:
		return "invalid"
	}
}

// Bag maps option names to values. Values are expected to be one of bool,
// a number, a string or a list of strings; anything else is treated as
// absent by the consumers.
type Bag map[string]any

// Clone returns a shallow copy of the bag. Lists are copied so callers may
// edit them without touching the original.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for k, v := range b {
		switch vv := v.(type) {
		case []string:
			out[k] = append([]string(nil), vv...)
		case []any:
			out[k] = append([]any(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}

// HasAny reports whether any of the given keys is present in the bag,
// compared case-insensitively. The value is not inspected.
func (b Bag) HasAny(keys ...string) bool {
	for k := range b {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				return true
			}
		}
	}
	return false
}

// Bool returns the value of key as a bool, accepting real booleans and the
// strings "true"/"false".
func (b Bag) Bool(key string) bool {
	switch v := b[key].(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && parsed
	default:
		return false
	}
}

// String returns the trimmed string value of key, or "" when the key is
// missing or not a string.
func (b Bag) String(key string) string {
	if s, ok := b[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Strings returns the non-empty elements of a list value.
func (b Bag) Strings(key string) []string {
	items, ok := List(b[key])
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

// KindOf classifies a single value.
func KindOf(v any) Kind {
	if v == nil {
		return KindNull
	}
	switch v.(type) {
	case bool:
		return KindBool
	case string:
		return KindString
	case json.Number, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return KindNumber
	case []string:
		return KindList
	case []any:
		if _, ok := List(v); ok {
			return KindList
		}
		return KindInvalid
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return KindNull
	}
	return KindInvalid
}

// Number converts a numeric value to float64. The second result is false
// for non-numeric values and for non-finite numbers.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatNumber renders a number the shortest way that round-trips, so 1
// becomes "1" and 0.5 stays "0.5".
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// List converts a list value to strings. Elements may be strings or
// numbers; nil elements become empty strings so positions are kept. Any
// other element type makes the whole list invalid.
func List(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			switch iv := item.(type) {
			case nil:
				out = append(out, "")
			case string:
				out = append(out, iv)
			default:
				f, ok := Number(iv)
				if !ok {
					return nil, false
				}
				out = append(out, FormatNumber(f))
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// ExpandTilde replaces a leading "~" or "~/" with home.
func ExpandTilde(p, home string) string {
	if home == "" {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

var numericRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Coerce turns string scalars that look like booleans or numbers into real
// values and expands "~/" paths, recursing into lists and objects. It is
// used for values that end up in a structured document rather than on a
// command line.
func Coerce(v any, home string) any {
	switch val := v.(type) {
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		switch {
		case lower == "true":
			return true
		case lower == "false":
			return false
		case numericRe.MatchString(val):
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				return json.Number(FormatNumber(n))
			}
		}
		return ExpandTilde(val, home)
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Coerce(item, home)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Coerce(item, home)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Coerce(item, home)
		}
		return out
	default:
		return v
	}
}
