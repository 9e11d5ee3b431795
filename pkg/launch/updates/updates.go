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

// Package updates compares the version marker cached next to each installed
// runtime with the latest one published upstream.
package updates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout = time.Second
	depsDir        = "deps"
)

// Descriptor tells the caller where to download a newer build.
type Descriptor struct {
	Runtime string `json:"runtime"`
	Version string `json:"version"`
	Link    string `json:"link"`
	Unzip   bool   `json:"unzip"`
}

// Source describes where a runtime publishes its latest version marker.
type Source struct {
	// Extract pulls the marker out of the response body.
	Extract func(body []byte) (string, error)
	// Link builds the download link for a marker.
	Link       func(latest string) string
	Name       string
	URL        string
	Accept     string
	MarkerFile string
}

type Checker struct {
	client     *httpclient.Client
	fs         afero.Fs
	modulesDir string
	timeout    time.Duration
}

func NewChecker(client *httpclient.Client, fs afero.Fs, modulesDir string, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		client:     client,
		fs:         fs,
		modulesDir: modulesDir,
		timeout:    timeout,
	}
}

// MarkerPath is the cached marker location for src.
func (c *Checker) MarkerPath(src *Source) string {
	return filepath.Join(c.modulesDir, src.Name, depsDir, src.MarkerFile)
}

// Check fetches the latest marker for src, falling back to the cached one
// on any failure, and rewrites the cache when they differ. A descriptor is
// returned only when a cached marker existed and the latest one differs.
func (c *Checker) Check(ctx context.Context, src *Source) *Descriptor {
	path := c.MarkerPath(src)
	local := c.readMarker(path, src.Name)

	latest, err := c.fetch(ctx, src)
	if err != nil {
		log.Error().Err(err).Msgf("[%s] failed to fetch latest version", src.Name)
		latest = local
	} else {
		log.Info().Msgf("[%s] latest version: %s", src.Name, latest)
	}

	if latest == "" {
		return nil
	}

	if local == latest {
		return nil
	}

	if err := c.writeMarker(path, latest); err != nil {
		log.Warn().Err(err).Msgf("[%s] failed to write version marker", src.Name)
	}

	if local == "" {
		return nil
	}

	log.Info().Msgf("[%s] update available: %s -> %s", src.Name, local, latest)
	return &Descriptor{
		Runtime: src.Name,
		Version: latest,
		Link:    src.Link(latest),
		Unzip:   true,
	}
}

// CheckAll checks every source concurrently. The result only holds the
// runtimes with an update.
func (c *Checker) CheckAll(ctx context.Context, sources []*Source) map[string]Descriptor {
	var (
		mu  syncutil.Mutex
		out = make(map[string]Descriptor, len(sources))
		g   errgroup.Group
	)

	for _, src := range sources {
		g.Go(func() error {
			d := c.Check(ctx, src)
			if d == nil {
				return nil
			}
			mu.Lock()
			out[src.Name] = *d
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // checks never fail

	return out
}

func (c *Checker) fetch(ctx context.Context, src *Source) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	headers := map[string]string{"Accept": "application/json"}
	if src.Accept != "" {
		headers["Accept"] = src.Accept
	}

	body, err := c.client.GetBody(ctx, src.URL, headers)
	if err != nil {
		return "", err
	}

	latest, err := src.Extract(body)
	if err != nil {
		return "", fmt.Errorf("invalid response: %w", err)
	}
	return latest, nil
}

func (c *Checker) readMarker(path, name string) string {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Msgf("[%s] version marker not found at %q, will create it", name, path)
		} else {
			log.Warn().Err(err).Msgf("[%s] failed to read version marker", name)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (c *Checker) writeMarker(path, latest string) error {
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	if err := afero.WriteFile(c.fs, path, []byte(latest+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	return nil
}
