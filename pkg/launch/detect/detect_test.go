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

package detect

import (
	"encoding/json"
	"os"
	"testing"

	testhelpers "github.com/ZaparooProject/zaparoo-runtimes/pkg/testing/helpers"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const root = "/games/title"

func newFS(t *testing.T, structure map[string]any) afero.Fs {
	t.Helper()
	h := testhelpers.NewMemoryFS()
	require.NoError(t, h.CreateDirectoryStructure(map[string]any{root: structure}))
	return h.Fs
}

func TestParseHint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ParseHint(nil))
	assert.Equal(t, 3, ParseHint(3))
	assert.Equal(t, 2, ParseHint(2.0))
	assert.Equal(t, 1, ParseHint(json.Number("1")))
	assert.Equal(t, 2, ParseHint(" 2 "))
	assert.Equal(t, 0, ParseHint("auto"))
	assert.Equal(t, 0, ParseHint([]string{"3"}))
	assert.Equal(t, 0, ParseHint(1.9))
	assert.Equal(t, 0, ParseHint(json.Number("2.5")))
	assert.Equal(t, 0, ParseHint("1.9"))
	assert.Equal(t, 0, ParseHint(1e300))
}

func TestDetect_HintTrusted(t *testing.T) {
	t.Parallel()

	// a manifest that says otherwise must not be consulted
	fs := newFS(t, map[string]any{ManifestFile: "[Game]\nRTP=Standard\n"})

	assert.Equal(t, RPGVXAce, NewDetector(fs).Detect(root, 3))
	assert.Equal(t, RPGVX, NewDetector(afero.NewMemMapFs()).Detect("/nowhere", 2))
}

func TestDetect_HintNotTouchingFilesystem(t *testing.T) {
	t.Parallel()

	// a read-only empty fs would make any read fail loudly in the logs but
	// not the result; a hint must short-circuit before that
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	assert.Equal(t, Standard, NewDetector(fs).Detect(root, 1))
}

func TestDetect_UnknownHintFallsBack(t *testing.T) {
	t.Parallel()

	fs := newFS(t, map[string]any{ManifestFile: "[Game]\nRTP=RPGVX\n"})

	assert.Equal(t, RPGVX, NewDetector(fs).Detect(root, 9))
}

func TestDetect_Cascade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		structure map[string]any
		want      Classification
		name      string
	}{
		{
			name:      "rtp field",
			structure: map[string]any{ManifestFile: "[Game]\nLibrary=RGSS202E.dll\nRTP=RPGVXAce\n"},
			want:      RPGVXAce,
		},
		{
			name:      "rtp field case insensitive key",
			structure: map[string]any{ManifestFile: "[Game]\nrtp = rpgvx\n"},
			want:      RPGVX,
		},
		{
			name:      "rtp wins over libraries on disk",
			structure: map[string]any{ManifestFile: "[Game]\nRTP=Standard\n", "RGSS301.dll": ""},
			want:      Standard,
		},
		{
			name:      "library field",
			structure: map[string]any{ManifestFile: "[Game]\nLibrary=RGSS104.dll\n"},
			want:      Standard,
		},
		{
			name: "library field ignores libraries on disk",
			structure: map[string]any{
				ManifestFile: "[Game]\nLibrary=System\\RGSS301.dll\n",
				"RGSS202E.dll": "",
			},
			want: RPGVXAce,
		},
		{
			name:      "unknown rtp falls to library",
			structure: map[string]any{ManifestFile: "[Game]\nRTP=Custom\nLibrary=RGSS202E.dll\n"},
			want:      RPGVX,
		},
		{
			name: "unknown library digit falls to root scan",
			structure: map[string]any{
				ManifestFile: "[Game]\nLibrary=RGSS900.dll\n",
				"RGSS301.dll":  "",
			},
			want: RPGVXAce,
		},
		{
			name:      "root library without manifest",
			structure: map[string]any{"RGSS202J.dll": ""},
			want:      RPGVX,
		},
		{
			name:      "library extension case insensitive",
			structure: map[string]any{"RGSS300.DLL": ""},
			want:      RPGVXAce,
		},
		{
			name: "unknown root library digit keeps scanning",
			structure: map[string]any{
				"RGSS001.dll": "",
				"RGSS202.dll": "",
			},
			want: RPGVX,
		},
		{
			name: "system folder",
			structure: map[string]any{
				ManifestFile: "[Game]\nTitle=Nothing here\n",
				"Game.exe":   "",
				SystemDir:    map[string]any{"RGSS301.dll": ""},
			},
			want: RPGVXAce,
		},
		{
			name: "lowercase prefix is not a library",
			structure: map[string]any{
				"rgss301.dll": "",
			},
			want: Default,
		},
		{
			name:      "malformed manifest",
			structure: map[string]any{ManifestFile: "\x00\x01 garbage [[[\n=\n"},
			want:      Default,
		},
		{
			name:      "empty title",
			structure: nil,
			want:      Default,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := newFS(t, tt.structure)
			assert.Equal(t, tt.want, NewDetector(fs).Detect(root, 0))
		})
	}
}

func TestDetect_MissingRootDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Standard, NewDetector(afero.NewMemMapFs()).Detect("/does/not/exist", 0))
}

func TestDetect_RealFilesystem(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/"+ManifestFile, []byte("[Game]\r\nLibrary=RGSS104E.dll\r\n"), 0o600))

	assert.Equal(t, Standard, NewDetector(afero.NewOsFs()).Detect(dir, 0))
}

func TestIsLibrary(t *testing.T) {
	t.Parallel()

	assert.True(t, IsLibrary("RGSS104E.dll"))
	assert.True(t, IsLibrary("RGSS3.DLL"))
	assert.False(t, IsLibrary("RGSS104E.so"))
	assert.False(t, IsLibrary("rgss104e.dll"))
	assert.False(t, IsLibrary("Game.dll"))
}
