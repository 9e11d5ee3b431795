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

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/patch"
	"github.com/rs/zerolog/log"
)

const (
	NWjsName           = "nwjs"
	DefaultNWjsVersion = "0.101.0"
)

type nwjsOptions struct {
	Version           string `option:"version" validate:"omitempty,semver"`
	Cheat             bool   `option:"cheat"`
	DisableProtection bool   `option:"disableProtection"`
}

// NWjs runs RPG Maker MV/MZ and other NW.js titles with an SDK build, after
// reconciling the cheat menu and protection patches.
type NWjs struct{}

func (NWjs) Name() string { return NWjsName }

// Binary is the SDK build for version and the host architecture.
func (NWjs) Binary(p Paths, version string) string {
	arch := "x64"
	if p.AppleSilicon() {
		arch = "arm64"
	}
	return p.Deps(NWjsName, "version", version,
		"nwjs-sdk-"+version+"-osx-"+arch, "nwjs.app", "Contents", "MacOS", "nwjs")
}

func (NWjs) resolve(env *Env, bag options.Bag) nwjsOptions {
	var opts nwjsOptions
	if err := options.Decode(bag, &opts); err != nil {
		log.Warn().Err(err).Msg("ignoring invalid nwjs options")
	}
	if opts.Version == "" {
		opts.Version = env.Settings.NWjsVersion
	}
	if opts.Version == "" {
		opts.Version = DefaultNWjsVersion
	}
	return opts
}

// Patch reconciles the title with the requested patches. Failures are
// logged; a title that cannot be patched still launches.
func (NWjs) Patch(env *Env, folder string, cheat, protection bool) {
	e := patch.NewEngine(env.FS, env.Paths.Deps(NWjsName))

	if changed, err := e.ReconcileCheat(folder, cheat); err != nil {
		log.Error().Err(err).Msg("cheat menu patching failed")
	} else if changed {
		log.Info().Msgf("cheat menu enabled=%v: %s", cheat, folder)
	}

	if changed, err := e.ReconcileProtection(folder, protection); err != nil {
		log.Error().Err(err).Msg("protection setup failed")
	} else if changed {
		log.Info().Msgf("protection enabled=%v: %s", protection, folder)
	}

	if _, err := e.PrepareManifest(folder); err != nil {
		log.Error().Err(err).Msg("failed to prepare package manifest")
	}
}

func (n NWjs) Plan(_ context.Context, env *Env, req *Request) (Plan, error) {
	opts := n.resolve(env, req.Options)

	bin := n.Binary(env.Paths, opts.Version)
	if err := requireFile(env.FS, NWjsName, bin); err != nil {
		return Plan{}, err
	}

	n.Patch(env, req.GameFolder, opts.Cheat, !opts.DisableProtection)

	return Plan{Launch: Step{Name: bin, Args: []string{req.GameFolder}}}, nil
}
