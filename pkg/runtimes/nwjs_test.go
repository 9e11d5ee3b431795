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
	"testing"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/patch"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mzTitle = "/games/mz"
	mzMain  = "const scriptUrls = [\n    \"js/rmmz_core.js\"\n];\n"
)

func newNWjsEnv(t *testing.T, version string) *Env {
	t.Helper()
	deps := testPaths.Deps(NWjsName)
	env := newEnv(t,
		NWjs{}.Binary(testPaths, version),
		deps+"/cheat-js/Cheat_Menu.js",
		deps+"/cheat-css/Cheat_Menu.css",
		deps+"/bg/bg.js",
		deps+"/disable-child/disable-child.js",
		deps+"/disable-net/disable-net.js",
	)
	require.NoError(t, afero.WriteFile(env.FS, mzTitle+"/js/main.js", []byte(mzMain), 0o644))
	require.NoError(t, afero.WriteFile(env.FS, mzTitle+"/package.json",
		[]byte(`{"name":"","chromium-args":"--disable-devtools --in-process-gpu"}`), 0o644))
	return env
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}

func TestNWjsBinary(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"/modules/nwjs/deps/version/0.101.0/nwjs-sdk-0.101.0-osx-arm64/nwjs.app/Contents/MacOS/nwjs",
		NWjs{}.Binary(testPaths, DefaultNWjsVersion))
	assert.Equal(t,
		"/modules/nwjs/deps/version/0.90.0/nwjs-sdk-0.90.0-osx-x64/nwjs.app/Contents/MacOS/nwjs",
		NWjs{}.Binary(Paths{ModulesDir: "/modules", Arch: "amd64"}, "0.90.0"))
}

func TestNWjsPlan_CheatAndProtection(t *testing.T) {
	t.Parallel()

	env := newNWjsEnv(t, DefaultNWjsVersion)

	plan, err := NWjs{}.Plan(context.Background(), env, &Request{
		GameFolder: mzTitle,
		Options:    options.Bag{"cheat": "true"},
	})
	require.NoError(t, err)

	assert.Equal(t, Step{Name: NWjs{}.Binary(testPaths, DefaultNWjsVersion), Args: []string{mzTitle}}, plan.Launch)

	state, err := patch.NewEngine(env.FS, testPaths.Deps(NWjsName)).Inspect(mzTitle)
	require.NoError(t, err)
	assert.Equal(t, patch.StatePresent, state)
	assert.True(t, exists(t, env.FS, mzTitle+"/js/plugins/Cheat_Menu.js"))
	assert.True(t, exists(t, env.FS, mzTitle+"/bg.js"))

	pkg := readJSON(t, env.FS, mzTitle+"/package.json")
	assert.Equal(t, map[string]any{
		"name":          "Game",
		"chromium-args": "--in-process-gpu",
		"bg-script":     "bg.js",
	}, pkg)
}

func TestNWjsPlan_Disabled(t *testing.T) {
	t.Parallel()

	env := newNWjsEnv(t, DefaultNWjsVersion)
	ctx := context.Background()

	_, err := NWjs{}.Plan(ctx, env, &Request{GameFolder: mzTitle, Options: options.Bag{"cheat": true}})
	require.NoError(t, err)

	_, err = NWjs{}.Plan(ctx, env, &Request{
		GameFolder: mzTitle,
		Options:    options.Bag{"cheat": false, "disableProtection": true},
	})
	require.NoError(t, err)

	main, err := afero.ReadFile(env.FS, mzTitle+"/js/main.js")
	require.NoError(t, err)
	assert.Equal(t, mzMain, string(main))
	assert.False(t, exists(t, env.FS, mzTitle+"/js/plugins/Cheat_Menu.js"))
	assert.False(t, exists(t, env.FS, mzTitle+"/bg.js"))
	assert.NotContains(t, readJSON(t, env.FS, mzTitle+"/package.json"), "bg-script")
}

func TestNWjsPlan_InvalidVersionKeepsPatches(t *testing.T) {
	t.Parallel()

	env := newNWjsEnv(t, DefaultNWjsVersion)
	ctx := context.Background()
	e := patch.NewEngine(env.FS, testPaths.Deps(NWjsName))

	_, err := NWjs{}.Plan(ctx, env, &Request{GameFolder: mzTitle, Options: options.Bag{"cheat": true}})
	require.NoError(t, err)

	plan, err := NWjs{}.Plan(ctx, env, &Request{
		GameFolder: mzTitle,
		Options:    options.Bag{"cheat": true, "disableProtection": true, "version": "0.101"},
	})
	require.NoError(t, err)
	assert.Equal(t, NWjs{}.Binary(testPaths, DefaultNWjsVersion), plan.Launch.Name)

	state, err := e.Inspect(mzTitle)
	require.NoError(t, err)
	assert.Equal(t, patch.StatePresent, state)
	assert.True(t, exists(t, env.FS, mzTitle+"/js/plugins/Cheat_Menu.js"))
	assert.False(t, exists(t, env.FS, mzTitle+"/bg.js"))
}

func TestNWjsPlan_Version(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bag      options.Bag
		name     string
		setting  string
		want     string
		wantFail bool
	}{
		{name: "default", bag: options.Bag{}, want: DefaultNWjsVersion},
		{name: "setting", bag: options.Bag{}, setting: "0.95.0", want: "0.95.0"},
		{name: "option wins", bag: options.Bag{"version": "0.90.0"}, setting: "0.95.0", want: "0.90.0"},
		{name: "invalid option ignored", bag: options.Bag{"version": "latest"}, want: DefaultNWjsVersion},
		{name: "missing sdk", bag: options.Bag{"version": "0.1.0"}, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			installed := tt.want
			if tt.wantFail {
				installed = DefaultNWjsVersion
			}
			env := newNWjsEnv(t, installed)
			env.Settings.NWjsVersion = tt.setting

			plan, err := NWjs{}.Plan(context.Background(), env, &Request{GameFolder: mzTitle, Options: tt.bag})
			if tt.wantFail {
				require.ErrorIs(t, err, ErrNotInstalled)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, NWjs{}.Binary(testPaths, tt.want), plan.Launch.Name)
		})
	}
}

func TestNWjsPlan_UnpatchableTitleStillLaunches(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	bin := NWjs{}.Binary(testPaths, DefaultNWjsVersion)
	require.NoError(t, afero.WriteFile(base, bin, []byte("x"), 0o755))
	env := &Env{FS: afero.NewReadOnlyFs(base), Paths: testPaths}

	plan, err := NWjs{}.Plan(context.Background(), env, &Request{
		GameFolder: "/games/plain",
		Options:    options.Bag{"cheat": true},
	})
	require.NoError(t, err)
	assert.Equal(t, bin, plan.Launch.Name)
}
