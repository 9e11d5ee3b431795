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

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/detect"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/document"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/rs/zerolog/log"
)

const (
	MKXPZName  = "mkxpz"
	mkxpzApp   = "Z-Universal.app"
	ConfigFile = "mkxp.json"

	optRGSSVersion = "rgssVersion"
	optRTP         = "RTP"
)

// MKXPZ runs RPG Maker XP, VX and VX Ace titles. It is configured through
// mkxp.json inside the app bundle rather than flags.
type MKXPZ struct{}

func (MKXPZ) Name() string { return MKXPZName }

func (MKXPZ) Binary(p Paths) string {
	return p.Deps(MKXPZName, "mkxpz", mkxpzApp, "Contents", "MacOS", "Z-Universal")
}

func (MKXPZ) ConfigPath(p Paths) string {
	return p.Deps(MKXPZName, "mkxpz", mkxpzApp, "Contents", "Game", ConfigFile)
}

// DefaultRTP is the bundled runtime package for a classification.
func (MKXPZ) DefaultRTP(p Paths, c detect.Classification) string {
	return p.Deps(MKXPZName, "RTP", "RTP", c.Name)
}

// Document builds mkxp.json: gameFolder, RTP and rgssVersion first, then
// every other option coerced and passed through.
func (m MKXPZ) Document(env *Env, req *Request) *document.Document {
	hint := detect.ParseHint(req.Options[optRGSSVersion])
	c := detect.NewDetector(env.FS).Detect(req.GameFolder, hint)
	log.Info().Msgf("using %s RTP, RGSS version %d", c.Name, c.Version)

	rtp := req.Options.Strings(optRTP)
	for i, p := range rtp {
		rtp[i] = options.ExpandTilde(p, env.Paths.Home)
	}
	if len(rtp) == 0 {
		rtp = []string{m.DefaultRTP(env.Paths, c)}
	}

	return document.Build([]document.Field{
		{Key: "gameFolder", Value: req.GameFolder},
		{Key: optRTP, Value: rtp},
		{Key: optRGSSVersion, Value: c.Version},
	}, req.Options, env.Paths.Home, optRGSSVersion, optRTP)
}

func (m MKXPZ) Plan(_ context.Context, env *Env, req *Request) (Plan, error) {
	bin := m.Binary(env.Paths)
	if err := requireFile(env.FS, MKXPZName, bin); err != nil {
		return Plan{}, err
	}

	doc := m.Document(env, req)
	if err := doc.WriteFile(env.FS, m.ConfigPath(env.Paths)); err != nil {
		log.Error().Err(err).Msg("failed to write mkxp config, launching with the previous one")
	}

	return Plan{Launch: Step{Name: bin}}, nil
}
