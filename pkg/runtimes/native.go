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
	"github.com/rs/zerolog/log"
)

const (
	NativeName  = "native"
	xattrBinary = "xattr"
	openBinary  = "open"
)

type nativeOptions struct {
	RunWithRosetta bool `option:"runWithRosetta"`
}

// Native opens a macOS app bundle directly after clearing its quarantine
// attributes.
type Native struct{}

func (Native) Name() string { return NativeName }

func (Native) Plan(_ context.Context, env *Env, req *Request) (Plan, error) {
	var opts nativeOptions
	if err := options.Decode(req.Options, &opts); err != nil {
		log.Warn().Err(err).Msg("ignoring invalid native options")
	}

	args := []string{req.GamePath}
	if opts.RunWithRosetta || env.Settings.Rosetta {
		args = []string{"--arch", "x86_64", req.GamePath}
	}

	return Plan{
		Prepare: []Step{{Name: xattrBinary, Args: []string{"-cr", req.GamePath}}},
		Launch:  Step{Name: openBinary, Args: args},
	}, nil
}
