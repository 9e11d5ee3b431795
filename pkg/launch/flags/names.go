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

package flags

import (
	"regexp"
	"strings"
)

var wordBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// FlagName maps an option key to its long flag: soundfontPath becomes
// --soundfont-path and show_fps becomes --show-fps.
func FlagName(key string) string {
	kebab := wordBoundaryRe.ReplaceAllString(key, "$1-$2")
	kebab = strings.ReplaceAll(kebab, "_", "-")
	return "--" + strings.ToLower(kebab)
}

// KeyName is the inverse of FlagName for lowerCamel keys: --soundfont-path
// becomes soundfontPath.
func KeyName(flag string) string {
	words := strings.Split(strings.TrimLeft(flag, "-"), "-")
	var sb strings.Builder
	for i, w := range words {
		if w == "" {
			continue
		}
		if i == 0 {
			_, _ = sb.WriteString(w)
			continue
		}
		_, _ = sb.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	return sb.String()
}
