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

package updates

import (
	"errors"
	"regexp"

	"github.com/tidwall/gjson"
)

var (
	ErrMissingMarker = errors.New("response missing version marker")
	ErrNotArray      = errors.New("response is not an array")
)

const githubJSON = "application/vnd.github+json"

// EasyRPG publishes CI build numbers.
var EasyRPG = Source{
	Name:       "easyrpg",
	URL:        "https://ci.easyrpg.org/job/player-macos/api/json",
	MarkerFile: "easyrpg-build.txt",
	Extract: func(body []byte) (string, error) {
		n := gjson.GetBytes(body, "builds.0.number")
		if !n.Exists() || n.Type == gjson.Null || n.String() == "" {
			return "", ErrMissingMarker
		}
		return n.String(), nil
	},
	Link: func(string) string {
		return "https://ci.easyrpg.org/downloads/macos/EasyRPG-Player-macos.app.zip"
	},
}

// MKXPZ tracks the head commit of the launcher branch.
var MKXPZ = Source{
	Name:       "mkxpz",
	URL:        "https://api.github.com/repos/m5kro/mkxp-z/commits/dev",
	Accept:     githubJSON,
	MarkerFile: "mkxpz-sha.txt",
	Extract: func(body []byte) (string, error) {
		sha := gjson.GetBytes(body, "sha")
		if sha.Type != gjson.String || sha.Str == "" {
			return "", ErrMissingMarker
		}
		return sha.Str, nil
	},
	Link: func(string) string {
		return "https://github.com/m5kro/mkxp-z/releases/download/launcher/Z-universal.zip"
	},
}

// Ruffle only ships nightly prereleases.
var Ruffle = Source{
	Name:       "ruffle",
	URL:        "https://api.github.com/repos/ruffle-rs/ruffle/releases?per_page=50",
	Accept:     githubJSON,
	MarkerFile: "ruffle-release.txt",
	Extract:    latestPrereleaseTag,
	Link: func(tag string) string {
		return "https://github.com/ruffle-rs/ruffle/releases/download/" + tag + "/" + RuffleAssetName(tag)
	},
}

func latestPrereleaseTag(body []byte) (string, error) {
	releases := gjson.ParseBytes(body)
	if !releases.IsArray() {
		return "", ErrNotArray
	}
	for _, r := range releases.Array() {
		if r.Get("prerelease").Type != gjson.True {
			continue
		}
		tag := r.Get("tag_name")
		if tag.Type == gjson.String && tag.Str != "" {
			return tag.Str, nil
		}
		break
	}
	return "", ErrMissingMarker
}

var tagDateRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// RuffleAssetName maps a tag like nightly-2026-01-02 to its universal macOS
// archive, ruffle-nightly-2026_01_02-macos-universal.tar.gz.
func RuffleAssetName(tag string) string {
	loc := tagDateRe.FindStringIndex(tag)
	if loc != nil {
		tag = tag[:loc[0]] + tagDateRe.ReplaceAllString(tag[loc[0]:loc[1]], "${1}_${2}_${3}") + tag[loc[1]:]
	}
	return "ruffle-" + tag + "-macos-universal.tar.gz"
}

// Sources lists every runtime with an update check.
func Sources() []*Source {
	return []*Source{&EasyRPG, &MKXPZ, &Ruffle}
}
