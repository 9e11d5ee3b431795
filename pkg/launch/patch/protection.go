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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	ManifestFile = "package.json"
	DefaultName  = "Game"

	nameKey         = "name"
	bgScriptKey     = "bg-script"
	chromiumArgsKey = "chromium-args"
	devtoolsFlag    = "--disable-devtools"
	bgScript        = "bg.js"
)

var defaultManifest = []byte(`{"name":"` + DefaultName + `"}`)

var protectionScripts = []asset{
	{src: filepath.Join("bg", bgScript), name: bgScript},
	{src: filepath.Join("disable-child", "disable-child.js"), name: "disable-child.js"},
	{src: filepath.Join("disable-net", "disable-net.js"), name: "disable-net.js"},
}

// ReconcileProtection installs or removes the protection scripts and the
// manifest's bg-script entry. It reports whether anything on disk
// changed.
func (e *Engine) ReconcileProtection(root string, enabled bool) (bool, error) {
	if enabled {
		return e.applyProtection(root)
	}
	return e.removeProtection(root)
}

func (e *Engine) applyProtection(root string) (bool, error) {
	path := filepath.Join(root, ManifestFile)
	doc, _, err := e.readManifest(path)
	if err != nil {
		return false, err
	}

	doc, err = jsonparser.Set(doc, []byte(`"`+bgScript+`"`), bgScriptKey)
	if err != nil {
		return false, fmt.Errorf("failed to set %s: %w", bgScriptKey, err)
	}
	doc, _, err = stripDevtools(doc)
	if err != nil {
		return false, err
	}

	changed, err := e.writeManifest(path, doc)
	if err != nil {
		return false, err
	}
	if changed {
		log.Info().Msgf("enabled protection in: %s", path)
	}

	for _, a := range protectionScripts {
		copied, err := e.copyAsset(a, root)
		if err != nil {
			return changed, err
		}
		changed = changed || copied
	}

	return changed, nil
}

func (e *Engine) removeProtection(root string) (bool, error) {
	path := filepath.Join(root, ManifestFile)
	changed := false

	doc, ok, err := e.readManifest(path)
	if err != nil {
		return false, err
	}
	if ok {
		if _, _, _, err := jsonparser.Get(doc, bgScriptKey); err == nil {
			wrote, err := e.writeManifest(path, jsonparser.Delete(doc, bgScriptKey))
			if err != nil {
				return false, err
			}
			if wrote {
				log.Info().Msgf("disabled protection in: %s", path)
				changed = true
			}
		}
	}

	for _, a := range protectionScripts {
		removed, err := e.removeIfExists(filepath.Join(root, a.name))
		if err != nil {
			return changed, err
		}
		changed = changed || removed
	}

	return changed, nil
}

// PrepareManifest gives an unnamed title the default package name and
// strips the flag that disables devtools. A missing or malformed manifest
// is left alone.
func (e *Engine) PrepareManifest(root string) (bool, error) {
	path := filepath.Join(root, ManifestFile)
	doc, ok, err := e.readManifest(path)
	if err != nil || !ok {
		return false, err
	}

	modified := false
	if name, err := jsonparser.GetString(doc, nameKey); err != nil || strings.TrimSpace(name) == "" {
		doc, err = jsonparser.Set(doc, []byte(`"`+DefaultName+`"`), nameKey)
		if err != nil {
			return false, fmt.Errorf("failed to set %s: %w", nameKey, err)
		}
		log.Info().Msgf("set default package name in: %s", path)
		modified = true
	}

	doc, stripped, err := stripDevtools(doc)
	if err != nil {
		return false, err
	}
	if stripped {
		log.Info().Msgf("removed %s from chromium args in: %s", devtoolsFlag, path)
		modified = true
	}

	if !modified {
		return false, nil
	}
	return e.writeManifest(path, doc)
}

// readManifest returns the title's manifest, or a fresh minimal one when
// it is missing or not a JSON object. ok reports whether the file on disk
// was usable.
func (e *Engine) readManifest(path string) (doc []byte, ok bool, err error) {
	data, err := afero.ReadFile(e.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return bytes.Clone(defaultManifest), false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", ManifestFile, err)
	}

	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) || len(trimmed) == 0 || trimmed[0] != '{' {
		log.Warn().Msgf("malformed %s, starting from a fresh one: %s", ManifestFile, path)
		return bytes.Clone(defaultManifest), false, nil
	}
	return trimmed, true, nil
}

// writeManifest stores doc indented with four spaces.
func (e *Engine) writeManifest(path string, doc []byte) (bool, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "    "); err != nil {
		return false, fmt.Errorf("failed to format %s: %w", ManifestFile, err)
	}
	return e.writeIfChanged(path, buf.Bytes())
}

// stripDevtools removes every --disable-devtools[=value] token from the
// chromium args, dropping the key once nothing is left.
func stripDevtools(doc []byte) ([]byte, bool, error) {
	args, err := jsonparser.GetString(doc, chromiumArgsKey)
	if err != nil {
		return doc, false, nil
	}

	fields := strings.Fields(args)
	kept := slices.DeleteFunc(slices.Clone(fields), func(f string) bool {
		return f == devtoolsFlag || strings.HasPrefix(f, devtoolsFlag+"=")
	})
	if len(kept) == len(fields) {
		return doc, false, nil
	}

	if len(kept) == 0 {
		return jsonparser.Delete(doc, chromiumArgsKey), true, nil
	}
	value, err := json.Marshal(strings.Join(kept, " "))
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode %s: %w", chromiumArgsKey, err)
	}
	doc, err = jsonparser.Set(doc, value, chromiumArgsKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to set %s: %w", chromiumArgsKey, err)
	}
	return doc, true, nil
}
