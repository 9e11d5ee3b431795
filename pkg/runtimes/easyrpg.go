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

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/flags"
	"github.com/rs/zerolog/log"
)

const (
	EasyRPGName   = "easyrpg"
	easyRPGBinary = "EasyRPG Player"
)

var easyRPGProfile = flags.Profile{
	Name:         EasyRPGName,
	AllowUnknown: true,
	Pairs: []flags.ContradictionPair{
		{Positive: "vsync", Negative: "noVsync"},
		{Positive: "showFps", Negative: "noShowFps"},
		{Positive: "stretch", Negative: "noStretch"},
		{Positive: "fpsLimit", Negative: "noFpsLimit"},
		{Positive: "pauseFocusLost", Negative: "noPauseFocusLost"},
	},
}

// EasyRPG runs RPG Maker 2000/2003 titles. Every option is passed through
// as a flag.
type EasyRPG struct{}

func (EasyRPG) Name() string { return EasyRPGName }

func (EasyRPG) Binary(p Paths) string {
	return p.Deps(EasyRPGName, "player", easyRPGBinary+".app", "Contents", "MacOS", easyRPGBinary)
}

func (EasyRPG) Soundfont(p Paths) string {
	return p.Deps(EasyRPGName, "soundfont", "GMGSx.SF2")
}

func (e EasyRPG) Plan(_ context.Context, env *Env, req *Request) (Plan, error) {
	bin := e.Binary(env.Paths)
	if err := requireFile(env.FS, EasyRPGName, bin); err != nil {
		return Plan{}, err
	}

	profile := easyRPGProfile
	profile.DefaultResource = &flags.DefaultResource{
		Flag:    "--soundfont-path",
		Path:    e.Soundfont(env.Paths),
		Aliases: []string{"soundfont", "soundfontPath"},
	}

	n := flags.NewNormalizer(env.FS, env.Paths.Home)
	args := n.Normalize(req.Options, &profile, "--window", "--project-path", req.GameFolder)
	log.Debug().Strs("args", args).Msg("resolved easyrpg arguments")

	return Plan{Launch: Step{Name: bin, Args: args}}, nil
}
