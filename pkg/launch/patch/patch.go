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

// Package patch adds and removes optional behaviour in NW.js based RPG
// Maker titles: the cheat menu plugin and the anti-tamper protection
// scripts. Every operation converges on the requested state, so running
// it on each launch is safe.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	CheatScript = "Cheat_Menu.js"
	CheatStyle  = "Cheat_Menu.css"
)

// asset is a file shipped in the runtime's deps directory and copied into
// a title.
type asset struct {
	src  string
	name string
}

var cheatAssets = []asset{
	{src: filepath.Join("cheat-js", CheatScript), name: CheatScript},
	{src: filepath.Join("cheat-css", CheatStyle), name: CheatStyle},
}

// Engine patches titles on disk. deps is the runtime's deps directory
// holding the assets to copy.
type Engine struct {
	fs   afero.Fs
	deps string
}

func NewEngine(fs afero.Fs, deps string) *Engine {
	return &Engine{fs: fs, deps: deps}
}

// DialectFor picks MV when the title has a www directory, MZ otherwise.
func (e *Engine) DialectFor(root string) *Dialect {
	if ok, _ := afero.IsDir(e.fs, filepath.Join(root, "www")); ok {
		return MV
	}
	return MZ
}

// Inspect reports the cheat menu state of the title's startup script. A
// missing script is StateAbsent.
func (e *Engine) Inspect(root string) (State, error) {
	d := e.DialectFor(root)
	data, err := afero.ReadFile(e.fs, filepath.Join(root, d.Script))
	if errors.Is(err, fs.ErrNotExist) {
		return StateAbsent, nil
	} else if err != nil {
		return StateAbsent, fmt.Errorf("failed to read startup script: %w", err)
	}
	return d.Inspect(string(data)), nil
}

// ReconcileCheat makes the cheat menu present or absent. It reports
// whether anything on disk changed.
func (e *Engine) ReconcileCheat(root string, enabled bool) (bool, error) {
	d := e.DialectFor(root)
	if enabled {
		return e.applyCheat(root, d)
	}
	return e.revertCheat(root, d)
}

func (e *Engine) applyCheat(root string, d *Dialect) (bool, error) {
	path := filepath.Join(root, d.Script)
	changed := false

	data, err := afero.ReadFile(e.fs, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug().Msgf("no %s startup script at: %s", d.Name, path)
	case err != nil:
		return false, fmt.Errorf("failed to read startup script: %w", err)
	default:
		content := string(data)
		switch d.Inspect(content) {
		case StatePresent:
		case StateForeign:
			log.Warn().Msgf("cheat menu entry in %s not written by launcher, leaving it", path)
		case StatePartial:
			log.Warn().Msgf("repairing partial cheat menu entry in %s", path)
			fallthrough
		case StateAbsent:
			out, err := d.Apply(content)
			if err != nil {
				log.Warn().Err(err).Msgf("cannot inject cheat menu into %s", path)
				break
			}
			wrote, err := e.writeIfChanged(path, []byte(out))
			if err != nil {
				return false, err
			}
			if wrote {
				log.Info().Msgf("injected cheat menu into %s script: %s", d.Name, path)
				changed = true
			}
		}
	}

	for _, a := range cheatAssets {
		copied, err := e.copyAsset(a, filepath.Join(root, d.Plugins))
		if err != nil {
			return changed, err
		}
		changed = changed || copied
	}

	return changed, nil
}

func (e *Engine) revertCheat(root string, d *Dialect) (bool, error) {
	path := filepath.Join(root, d.Script)
	changed := false

	data, err := afero.ReadFile(e.fs, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return false, fmt.Errorf("failed to read startup script: %w", err)
	default:
		if out, ok := d.Revert(string(data)); ok {
			if _, err := e.writeIfChanged(path, []byte(out)); err != nil {
				return false, err
			}
			log.Info().Msgf("removed cheat menu from %s script: %s", d.Name, path)
			changed = true
		}
	}

	for _, a := range cheatAssets {
		removed, err := e.removeIfExists(filepath.Join(root, d.Plugins, a.name))
		if err != nil {
			return changed, err
		}
		changed = changed || removed
	}

	return changed, nil
}

// copyAsset copies a deps file into dir, overwriting a drifted copy. A
// missing source is skipped.
func (e *Engine) copyAsset(a asset, dir string) (bool, error) {
	src := filepath.Join(e.deps, a.src)
	data, err := afero.ReadFile(e.fs, src)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Msgf("asset not installed: %s", src)
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to read asset %s: %w", a.name, err)
	}

	dst := filepath.Join(dir, a.name)
	copied, err := e.writeIfChanged(dst, data)
	if err != nil {
		return false, err
	}
	if copied {
		log.Debug().Msgf("copied %s to: %s", a.name, dst)
	}
	return copied, nil
}

// writeIfChanged writes data unless path already holds exactly it. The
// file mode of an existing file is kept.
func (e *Engine) writeIfChanged(path string, data []byte) (bool, error) {
	perm := os.FileMode(0o644)
	if cur, err := afero.ReadFile(e.fs, path); err == nil {
		if bytes.Equal(cur, data) {
			return false, nil
		}
		if fi, err := e.fs.Stat(path); err == nil {
			perm = fi.Mode().Perm()
		}
	}

	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(e.fs, path, data, perm); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func (e *Engine) removeIfExists(path string) (bool, error) {
	err := e.fs.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", path, err)
	}
	log.Debug().Msgf("removed: %s", path)
	return true, nil
}
