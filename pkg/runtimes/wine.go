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

package runtimes

import (
	"context"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	WineName           = "wine"
	DefaultWineVersion = "11.0-rc4"
	archBinary         = "arch"
	wineApp            = "Wine Staging.app"
)

type wineOptions struct {
	Version string `option:"version"`
}

// Wine runs Windows executables in a shared prefix, created on first use.
// Wine builds are x86_64 only, so Apple Silicon goes through Rosetta.
type Wine struct{}

func (Wine) Name() string { return WineName }

func (Wine) Binary(p Paths, version string) string {
	return p.Deps(WineName, "version", version, wineApp, "Contents", "MacOS", "wine")
}

func (Wine) Wineboot(p Paths, version string) string {
	return p.Deps(WineName, "version", version, wineApp, "Contents", "Resources", "wine", "bin", "wineboot")
}

func (w Wine) Plan(_ context.Context, env *Env, req *Request) (Plan, error) {
	var opts wineOptions
	if err := options.Decode(req.Options, &opts); err != nil {
		log.Warn().Err(err).Msg("ignoring invalid wine options")
	}
	if opts.Version == "" {
		opts.Version = DefaultWineVersion
	}

	bin := w.Binary(env.Paths, opts.Version)
	if err := requireFile(env.FS, WineName, bin); err != nil {
		return Plan{}, err
	}

	prefix := env.Settings.WinePrefix
	if prefix == "" {
		prefix = filepath.Join(env.Paths.Home, ".wine")
	}
	cmdOpts := command.Options{Env: []string{"WINEPREFIX=" + prefix}}
	rosetta := env.Paths.AppleSilicon()

	var plan Plan
	exists, err := afero.DirExists(env.FS, prefix)
	if err != nil {
		log.Warn().Err(err).Msgf("failed to check wine prefix: %s", prefix)
	}
	if !exists {
		log.Info().Msgf("initializing wine prefix: %s", prefix)
		plan.Prepare = append(plan.Prepare, x86Step(rosetta, cmdOpts, w.Wineboot(env.Paths, opts.Version), "--init"))
	}

	plan.Launch = x86Step(rosetta, cmdOpts, bin, req.GamePath)
	return plan, nil
}

// x86Step wraps an x86_64 binary with arch when Rosetta is needed.
func x86Step(rosetta bool, opts command.Options, name string, args ...string) Step {
	if !rosetta {
		return Step{Name: name, Args: args, Options: opts}
	}
	return Step{
		Name:    archBinary,
		Args:    append([]string{"-x86_64", name}, args...),
		Options: opts,
	}
}
