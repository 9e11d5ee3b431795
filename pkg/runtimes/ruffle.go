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

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/flags"
	"github.com/rs/zerolog/log"
)

const RuffleName = "ruffle"

func bound(f float64) *float64 { return &f }

// ruffleProfile only knows the options Ruffle accepts. Options equal to
// Ruffle's own defaults are left out.
var ruffleProfile = flags.Profile{
	Name: RuffleName,
	Keys: []string{
		"flashvars",
		"graphics", "power",
		"width", "height",
		"storage", "saveDirectory", "configDirectory", "cacheDirectory",
		"maxExecutionDuration",
		"base", "quality",
		"align", "forceAlign", "scale", "forceScale",
		"volume",
		"proxy", "socketAllow", "tcpConnections", "upgradeToHttps",
		"fullscreen", "loadBehavior", "letterbox",
		"spoofUrl", "referer", "cookie",
		"playerVersion", "playerRuntime", "frameRate",
		"openUrlMode", "filesystemAccessMode",
		"dummyExternalInterface", "noGui",
		"gamepadButton",
		"noAvm2Optimizer",
	},
	Rules: map[string]flags.Rule{
		"flashvars":            {Flag: "-P", Joined: true},
		"width":                {Min: bound(0)},
		"height":               {Min: bound(0)},
		"saveDirectory":        {ExpandHome: true},
		"configDirectory":      {Flag: "--config", ExpandHome: true},
		"cacheDirectory":       {ExpandHome: true},
		"maxExecutionDuration": {Min: bound(0)},
		"volume":               {Default: 1, KeepZero: true, Min: bound(0), Max: bound(1)},
		"tcpConnections":       {Default: "ask"},
		"playerVersion":        {Min: bound(0)},
		"playerRuntime":        {Default: "flash-player"},
		"frameRate":            {Min: bound(0)},
		"openUrlMode":          {Default: "confirm"},
		"filesystemAccessMode": {Default: "ask"},
		"gamepadButton":        {Flag: "-B"},
	},
}

// Ruffle plays Flash movies. The movie path or URL goes last.
type Ruffle struct{}

func (Ruffle) Name() string { return RuffleName }

func (Ruffle) Binary(p Paths) string {
	return p.Deps(RuffleName, "ruffle", "Ruffle.app", "Contents", "MacOS", "ruffle")
}

func (r Ruffle) Plan(_ context.Context, env *Env, req *Request) (Plan, error) {
	bin := r.Binary(env.Paths)
	if err := requireFile(env.FS, RuffleName, bin); err != nil {
		return Plan{}, err
	}

	n := flags.NewNormalizer(env.FS, env.Paths.Home)
	args := n.Normalize(req.Options, &ruffleProfile, req.GamePath)
	log.Debug().Strs("args", args).Msg("resolved ruffle arguments")

	return Plan{Launch: Step{
		Name:    bin,
		Args:    args,
		Options: command.Options{Dir: req.GameFolder},
	}}, nil
}
