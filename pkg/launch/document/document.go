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

// Package document builds the ordered JSON configuration files some
// runtimes read instead of command line flags.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/buger/jsonparser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const indent = "    "

var ErrInvalidKey = errors.New("invalid document key")

// Field is a value computed by the launcher rather than passed through
// from the caller.
type Field struct {
	Value any
	Key   string
}

// Document is a JSON object that keeps keys in insertion order. Setting an
// existing key replaces its value in place.
type Document struct {
	raw []byte
}

func New() *Document {
	return &Document{raw: []byte("{}")}
}

// Set encodes value and stores it under key.
func (d *Document) Set(key string, value any) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	encoded, err := encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	raw, err := jsonparser.Set(d.raw, encoded, key)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	d.raw = raw
	return nil
}

// Get returns the raw JSON value stored under key.
func (d *Document) Get(key string) ([]byte, bool) {
	v, t, _, err := jsonparser.Get(d.raw, key)
	if err != nil || t == jsonparser.NotExist {
		return nil, false
	}
	if t == jsonparser.String {
		// Get strips the quotes but leaves escapes alone
		v = append(append([]byte{'"'}, v...), '"')
	}
	return v, true
}

// Keys lists the document's keys in order.
func (d *Document) Keys() []string {
	var keys []string
	_ = jsonparser.ObjectEach(d.raw, func(k, _ []byte, _ jsonparser.ValueType, _ int) error {
		keys = append(keys, string(k))
		return nil
	})
	return keys
}

// Bytes returns the document indented with four spaces.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, d.raw, "", indent); err != nil {
		return nil, fmt.Errorf("failed to format document: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile persists the document, creating parent directories.
func (d *Document) WriteFile(fs afero.Fs, path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	log.Debug().Msgf("wrote document: %s", path)
	return nil
}

// Build starts from the computed fields, in order, then merges the coerced
// passthrough bag in lexical key order. A passthrough key naming a
// computed field overrides its value but keeps its position. Excluded keys
// are consumed by the launcher and never passed through. Values that
// cannot be encoded are logged and skipped.
func Build(computed []Field, bag options.Bag, home string, exclude ...string) *Document {
	d := New()
	for _, f := range computed {
		if err := d.Set(f.Key, f.Value); err != nil {
			log.Warn().Err(err).Msg("skipping computed field")
		}
	}

	keys := make([]string, 0, len(bag))
	for k := range bag {
		if !slices.Contains(exclude, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		if err := d.Set(k, options.Coerce(bag[k], home)); err != nil {
			log.Warn().Err(err).Msg("skipping passthrough option")
		}
	}
	return d
}

// validKey rejects keys the path syntax of jsonparser would misread and
// keys that need escaping.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "[") {
		return false
	}
	encoded, err := encode(key)
	return err == nil && string(encoded) == `"`+key+`"`
}

// encode is json.Marshal without HTML escaping.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
