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

// Package runtimes adapts each supported game runtime to a launch plan:
// which command to run, with which arguments, after which preparation.
package runtimes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/spf13/afero"
)

var (
	ErrUnknownRuntime = errors.New("unknown runtime")
	ErrNotInstalled   = errors.New("runtime not installed")
)

const depsDir = "deps"

// Paths locates installed runtimes and the user's home directory.
type Paths struct {
	ModulesDir string
	Home       string
	// Arch is the GOARCH of the host.
	Arch string
}

// Deps joins elem onto the deps directory of a runtime.
func (p Paths) Deps(runtime string, elem ...string) string {
	return filepath.Join(append([]string{p.ModulesDir, runtime, depsDir}, elem...)...)
}

// AppleSilicon reports whether x86_64 binaries need Rosetta.
func (p Paths) AppleSilicon() bool {
	return p.Arch == "arm64"
}

// Settings are the user preferences that apply to every launch.
type Settings struct {
	NWjsVersion string
	WinePrefix  string
	Rosetta     bool
}

// Env is shared by every launch and never mutated.
type Env struct {
	FS       afero.Fs
	Paths    Paths
	Settings Settings
}

// Request is a single launch.
type Request struct {
	Options    options.Bag
	GamePath   string
	GameFolder string
}

// Step is one command of a plan.
type Step struct {
	Name    string
	Args    []string
	Options command.Options
}

func (s Step) String() string {
	parts := make([]string, 0, len(s.Args)+1)
	for _, p := range append([]string{s.Name}, s.Args...) {
		if p == "" || strings.ContainsAny(p, " \t'\"") {
			p = "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// Plan is what a runtime wants run. Prepare steps run to completion, in
// order, before Launch is started.
type Plan struct {
	Launch  Step
	Prepare []Step
}

// Runtime resolves a launch request into a plan. Patching and config
// document writes happen here; their failures are logged, not returned.
type Runtime interface {
	Name() string
	Plan(ctx context.Context, env *Env, req *Request) (Plan, error)
}

// Registry maps runtime names to adapters.
type Registry struct {
	byName map[string]Runtime
}

func NewRegistry(rts ...Runtime) *Registry {
	r := &Registry{byName: make(map[string]Runtime, len(rts))}
	for _, rt := range rts {
		r.byName[rt.Name()] = rt
	}
	return r
}

// DefaultRegistry holds every built in runtime.
func DefaultRegistry() *Registry {
	return NewRegistry(
		EasyRPG{},
		Ruffle{},
		MKXPZ{},
		NWjs{},
		Wine{},
		Native{},
	)
}

func (r *Registry) Get(name string) (Runtime, error) {
	rt, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuntime, name)
	}
	return rt, nil
}

// Names returns the registered runtime names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func requireFile(fs afero.Fs, runtime, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("failed to check %s binary: %w", runtime, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s binary not found at %s", ErrNotInstalled, runtime, path)
	}
	return nil
}
