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

// Package detect works out which RPG Maker generation a title targets by
// looking at its Game.ini and the RGSS libraries shipped with it.
package detect

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

const (
	ManifestFile = "Game.ini"
	SystemDir    = "System"
	LibPrefix    = "RGSS"
)

// Classification is the engine generation a title was built for. Version
// is the RGSS version number written to the runtime config.
type Classification struct {
	Name    string
	Version int
}

var (
	Standard = Classification{Name: "Standard", Version: 1} // RPG Maker XP
	RPGVX    = Classification{Name: "RPGVX", Version: 2}    // RPG Maker VX
	RPGVXAce = Classification{Name: "RPGVXace", Version: 3} // RPG Maker VX Ace

	// Default is assumed when nothing else matches.
	Default = Standard
)

var byDigit = map[int]Classification{
	1: Standard,
	2: RPGVX,
	3: RPGVXAce,
}

var byRTPName = map[string]Classification{
	"standard": Standard,
	"rpgvx":    RPGVX,
	"rpgvxace": RPGVXAce,
}

// FromVersion maps an RGSS version number (or the leading digit of a
// library name) to a classification.
func FromVersion(n int) (Classification, bool) {
	c, ok := byDigit[n]
	return c, ok
}

// ParseHint reads the caller supplied rgssVersion option. Whole numbers
// and integer strings are accepted; anything else, 1.9 included, means
// auto (0).
func ParseHint(v any) int {
	if f, ok := options.Number(v); ok {
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0
		}
		return int(f)
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}

// Detector runs the detection cascade against a filesystem.
type Detector struct {
	fs afero.Fs
}

func NewDetector(fs afero.Fs) *Detector {
	return &Detector{fs: fs}
}

// Detect returns the classification for the title at root. A recognised
// non-zero hint is trusted without touching the filesystem. Detection
// never fails: missing files count as a miss and the cascade ends in
// Default.
func (d *Detector) Detect(root string, hint int) Classification {
	if hint != 0 {
		if c, ok := FromVersion(hint); ok {
			return c
		}
		log.Warn().Msgf("unknown rgss version %d, falling back to auto-detect", hint)
	}

	if c, ok := d.fromManifest(root); ok {
		return c
	}

	if c, ok := d.fromLibraries(root, "game folder"); ok {
		return c
	}
	log.Warn().Msg("no RGSS libraries found in game folder, checking System folder")

	if c, ok := d.fromLibraries(filepath.Join(root, SystemDir), "System folder"); ok {
		return c
	}

	log.Warn().Msgf("no RGSS libraries found in System folder, assuming %s RTP", Default.Name)
	return Default
}

var libraryRe = regexp.MustCompile(`(?i)RGSS(\d+)`)

// fromManifest covers the rtp= and library= tiers.
func (d *Detector) fromManifest(root string) (Classification, bool) {
	path := filepath.Join(root, ManifestFile)
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Msgf("%s not found in: %s", ManifestFile, root)
		} else {
			log.Error().Err(err).Msgf("error reading %s", path)
		}
		return Classification{}, false
	}

	rtp, library := manifestValues(data)

	if rtp != nil {
		log.Info().Msg("RTP value found")
		if c, ok := byRTPName[strings.ToLower(*rtp)]; ok {
			return c, true
		}
		log.Warn().Msgf("unknown RTP value in %s: %s", ManifestFile, *rtp)
	}

	if library != nil {
		log.Info().Msg("library value found")
		if m := libraryRe.FindStringSubmatch(*library); m != nil {
			if c, ok := fromLeadingDigit(m[1]); ok {
				return c, true
			}
			log.Warn().Msgf("unknown RTP value in %s: %s", ManifestFile, m[1][:1])
		}
	}

	log.Warn().Msgf("RTP value not found in %s, looking for libraries", ManifestFile)
	return Classification{}, false
}

// manifestValues returns the first rtp and library values found in any
// section. Keys are matched case-insensitively.
func manifestValues(data []byte) (rtp, library *string) {
	f, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		SkipUnrecognizableLines: true,
		IgnoreInlineComment:     true,
	}, data)
	if err != nil {
		log.Warn().Err(err).Msgf("malformed %s", ManifestFile)
		return nil, nil
	}

	for _, section := range f.Sections() {
		if rtp == nil && section.HasKey("rtp") {
			v := strings.TrimSpace(section.Key("rtp").String())
			rtp = &v
		}
		if library == nil && section.HasKey("library") {
			v := strings.TrimSpace(section.Key("library").String())
			library = &v
		}
	}
	return rtp, library
}

var digitsRe = regexp.MustCompile(`\d+`)

// fromLibraries scans dir for RGSS*.dll files. Unknown versions are logged
// and the scan moves on to the next file.
func (d *Detector) fromLibraries(dir, label string) (Classification, bool) {
	entries, err := afero.ReadDir(d.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Msgf("%s not found: %s", label, dir)
		} else {
			log.Error().Err(err).Msgf("error scanning %s", label)
		}
		return Classification{}, false
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsLibrary(name) {
			continue
		}
		m := digitsRe.FindString(name)
		if m == "" {
			continue
		}
		log.Info().Msgf("RGSS library found in %s: %s", label, name)
		if c, ok := fromLeadingDigit(m); ok {
			return c, true
		}
		log.Warn().Msgf("unknown RTP value in %s: %s", label, m[:1])
	}

	return Classification{}, false
}

// IsLibrary reports whether name looks like an RGSS runtime library.
func IsLibrary(name string) bool {
	return strings.HasPrefix(name, LibPrefix) &&
		strings.EqualFold(filepath.Ext(name), ".dll")
}

func fromLeadingDigit(digits string) (Classification, bool) {
	if digits == "" {
		return Classification{}, false
	}
	n, err := strconv.Atoi(digits[:1])
	if err != nil {
		return Classification{}, false
	}
	return FromVersion(n)
}
