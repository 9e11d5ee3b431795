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

package patch

import (
	"errors"
	"regexp"
	"slices"
	"strings"
)

// State is what a startup script currently holds of the cheat menu patch.
type State int

const (
	// StateAbsent means no line of the patch is present.
	StateAbsent State = iota
	// StatePresent means every line of the patch is present as written.
	StatePresent
	// StateForeign means a cheat menu loader exists but not in the form
	// this package writes, e.g. added by hand or by another tool.
	StateForeign
	// StatePartial means some patch lines are left but the cheat menu is
	// not loaded as written, e.g. after an interrupted edit.
	StatePartial
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePresent:
		return "present"
	case StateForeign:
		return "foreign"
	case StatePartial:
		return "partial"
	default:
		return "unknown"
	}
}

var ErrAnchorNotFound = errors.New("injection anchor not found")

// Dialect is one flavour of startup script. Transforms are pure and work
// line by line so the original bytes, line endings included, can be
// restored.
type Dialect struct {
	anchor *regexp.Regexp
	// marker matches every line the patch may have left behind, tolerating
	// whitespace and quote style.
	marker *regexp.Regexp
	// loader matches the marker lines that actually load the cheat menu.
	loader *regexp.Regexp
	Name   string
	// Script and Plugins are relative to the title root.
	Script  string
	Plugins string
	snippet []string
	// appendAtEOF injects at the end of the script when the anchor is
	// missing.
	appendAtEOF bool
}

// MV titles keep everything under www/ and load plugins through
// PluginManager.
var MV = &Dialect{
	Name:    "MV",
	Script:  "www/js/main.js",
	Plugins: "www/js/plugins",
	anchor:  regexp.MustCompile(`PluginManager\s*\.\s*setup\s*\(\s*\$plugins\s*\)`),
	marker: regexp.MustCompile(
		`^\s*PluginManager\s*\.\s*(?:loadScript\s*\(\s*['"][^'"]*Cheat_Menu\.js['"]\s*\)` +
			`|_path\s*=\s*['"]js/plugins/?['"])\s*;?\s*$`,
	),
	loader: regexp.MustCompile(
		`^\s*PluginManager\s*\.\s*loadScript\s*\(\s*['"][^'"]*Cheat_Menu\.js['"]\s*\)\s*;?\s*$`,
	),
	snippet: []string{
		"PluginManager._path= 'js/plugins/';",
		"PluginManager.loadScript('Cheat_Menu.js');",
	},
	appendAtEOF: true,
}

// MZ titles list their boot scripts in a scriptUrls array.
var MZ = &Dialect{
	Name:    "MZ",
	Script:  "js/main.js",
	Plugins: "js/plugins",
	anchor:  regexp.MustCompile(`^\s*const\s+scriptUrls\s*=\s*\[\s*$`),
	marker:  mzMarker,
	loader:  mzMarker,
	snippet: []string{
		`    "js/plugins/Cheat_Menu.js",`,
	},
}

var mzMarker = regexp.MustCompile(`^\s*['"][^'"]*Cheat_Menu\.js['"]\s*,?\s*$`)

// Inspect reports the patch state of content. Only a loader line written
// in another form makes it foreign; leftover lines without one are
// partial and get repaired by Apply.
func (d *Dialect) Inspect(content string) State {
	found := make([]bool, len(d.snippet))
	marked := false
	for _, line := range splitLines(content) {
		b := bare(line)
		if !d.marker.MatchString(b) {
			continue
		}
		marked = true
		i := slices.Index(d.snippet, b)
		if i >= 0 {
			found[i] = true
		} else if d.loader.MatchString(b) {
			return StateForeign
		}
	}

	switch {
	case !slices.Contains(found, false):
		return StatePresent
	case marked:
		return StatePartial
	default:
		return StateAbsent
	}
}

// Apply inserts the patch right after the anchor line. Leftovers of a
// partial patch are dropped first so the snippet is written whole and in
// order. Present and foreign content is returned untouched.
func (d *Dialect) Apply(content string) (string, error) {
	base := content
	switch d.Inspect(content) {
	case StateAbsent:
	case StatePartial:
		base, _ = d.Revert(content)
	case StatePresent, StateForeign:
		return content, nil
	}

	lines := splitLines(base)
	at := slices.IndexFunc(lines, func(l string) bool {
		return d.anchor.MatchString(bare(l))
	})
	if at < 0 {
		if !d.appendAtEOF {
			return content, ErrAnchorNotFound
		}
		at = len(lines) - 1
	}

	return insertAfter(lines, at, d.snippet, lineEnding(content)), nil
}

// Revert drops every line matching the marker. It reports whether
// anything was removed.
func (d *Dialect) Revert(content string) (string, bool) {
	lines := splitLines(content)
	kept := make([]string, 0, len(lines))
	openTail := false
	for i, line := range lines {
		if d.marker.MatchString(bare(line)) {
			if i == len(lines)-1 && !strings.HasSuffix(line, "\n") {
				openTail = true
			}
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == len(lines) {
		return content, false
	}

	// the removed last line had no terminator, so neither did the
	// original line before the patch
	if openTail && len(kept) > 0 {
		last := len(kept) - 1
		kept[last] = strings.TrimSuffix(strings.TrimSuffix(kept[last], "\n"), "\r")
	}
	return strings.Join(kept, ""), true
}

// splitLines keeps each line's terminator. Only the last line may lack
// one.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func bare(line string) string {
	return strings.TrimRight(line, "\r\n")
}

func lineEnding(s string) string {
	if strings.Contains(s, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// insertAfter writes snippet after lines[at]; at -1 means the start of an
// empty script.
func insertAfter(lines []string, at int, snippet []string, eol string) string {
	var b strings.Builder
	for _, l := range lines[:at+1] {
		b.WriteString(l)
	}

	open := at >= 0 && !strings.HasSuffix(lines[at], "\n")
	if open {
		b.WriteString(eol)
	}
	for i, s := range snippet {
		b.WriteString(s)
		if !open || i < len(snippet)-1 {
			b.WriteString(eol)
		}
	}

	for _, l := range lines[at+1:] {
		b.WriteString(l)
	}
	return b.String()
}
