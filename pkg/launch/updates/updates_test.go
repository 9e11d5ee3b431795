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

package updates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/shared/httpclient"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulesDir = "/modules"

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func shaSource(url string) *Source {
	src := MKXPZ
	src.URL = url
	return &src
}

func newChecker(fs afero.Fs) *Checker {
	return NewChecker(httpclient.NewClient(), fs, modulesDir, time.Second)
}

func readMarker(t *testing.T, fs afero.Fs, c *Checker, src *Source) string {
	t.Helper()
	data, err := afero.ReadFile(fs, c.MarkerPath(src))
	require.NoError(t, err)
	return string(data)
}

func TestCheck_FirstRunWritesMarkerOnly(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	c := newChecker(fs)
	src := shaSource(serve(t, http.StatusOK, `{"sha":"abc123"}`).URL)

	assert.Nil(t, c.Check(context.Background(), src))
	assert.Equal(t, "abc123\n", readMarker(t, fs, c, src))
	assert.Equal(t, "/modules/mkxpz/deps/mkxpz-sha.txt", c.MarkerPath(src))
}

func TestCheck_Mismatch(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	c := newChecker(fs)
	src := shaSource(serve(t, http.StatusOK, `{"sha":"new"}`).URL)
	require.NoError(t, afero.WriteFile(fs, c.MarkerPath(src), []byte("old\n"), 0o644))

	d := c.Check(context.Background(), src)

	require.NotNil(t, d)
	assert.Equal(t, Descriptor{
		Runtime: "mkxpz",
		Version: "new",
		Link:    "https://github.com/m5kro/mkxp-z/releases/download/launcher/Z-universal.zip",
		Unzip:   true,
	}, *d)
	assert.Equal(t, "new\n", readMarker(t, fs, c, src))
}

func TestCheck_MatchLeavesMarker(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	c := newChecker(fs)
	src := shaSource(serve(t, http.StatusOK, `{"sha":"same"}`).URL)
	// no trailing newline; a rewrite would add one
	require.NoError(t, afero.WriteFile(fs, c.MarkerPath(src), []byte("same"), 0o644))

	assert.Nil(t, c.Check(context.Background(), src))
	assert.Equal(t, "same", readMarker(t, fs, c, src))
}

func TestCheck_FallsBackToCachedMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "oops"},
		{name: "rate limited", status: http.StatusForbidden, body: `{"message":"rate limit"}`},
		{name: "missing field", status: http.StatusOK, body: `{"commit":{}}`},
		{name: "not json", status: http.StatusOK, body: "<html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			c := newChecker(fs)
			src := shaSource(serve(t, tt.status, tt.body).URL)
			require.NoError(t, afero.WriteFile(fs, c.MarkerPath(src), []byte("cached\n"), 0o644))

			assert.Nil(t, c.Check(context.Background(), src))
			assert.Equal(t, "cached\n", readMarker(t, fs, c, src))
		})
	}
}

func TestCheck_FailureWithoutCacheIsSilent(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	c := newChecker(fs)
	src := shaSource(serve(t, http.StatusInternalServerError, "").URL)

	assert.Nil(t, c.Check(context.Background(), src))
	exists, err := afero.Exists(fs, c.MarkerPath(src))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCheck_TimeoutBounded(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	fs := afero.NewMemMapFs()
	c := NewChecker(httpclient.NewClient(), fs, modulesDir, 50*time.Millisecond)
	src := shaSource(srv.URL)
	require.NoError(t, afero.WriteFile(fs, c.MarkerPath(src), []byte("cached\n"), 0o644))

	start := time.Now()
	assert.Nil(t, c.Check(context.Background(), src))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCheck_WriteFailureStillReports(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	c := newChecker(base)
	src := shaSource(serve(t, http.StatusOK, `{"sha":"new"}`).URL)
	require.NoError(t, afero.WriteFile(base, c.MarkerPath(src), []byte("old\n"), 0o644))

	ro := NewChecker(httpclient.NewClient(), afero.NewReadOnlyFs(base), modulesDir, time.Second)
	d := ro.Check(context.Background(), src)

	require.NotNil(t, d)
	assert.Equal(t, "new", d.Version)
}

func TestCheckAll(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/easyrpg":
			_, _ = w.Write([]byte(`{"builds":[{"number":201},{"number":200}]}`))
		case "/mkxpz":
			_, _ = w.Write([]byte(`{"sha":"same"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	easy, sha, ruffle := EasyRPG, MKXPZ, Ruffle
	easy.URL = srv.URL + "/easyrpg"
	sha.URL = srv.URL + "/mkxpz"
	ruffle.URL = srv.URL + "/ruffle"

	fs := afero.NewMemMapFs()
	c := newChecker(fs)
	require.NoError(t, afero.WriteFile(fs, c.MarkerPath(&easy), []byte("200\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, c.MarkerPath(&sha), []byte("same\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, c.MarkerPath(&ruffle), []byte("nightly-2026-01-01\n"), 0o644))

	got := c.CheckAll(context.Background(), []*Source{&easy, &sha, &ruffle})

	assert.Equal(t, map[string]Descriptor{
		"easyrpg": {
			Runtime: "easyrpg",
			Version: "201",
			Link:    "https://ci.easyrpg.org/downloads/macos/EasyRPG-Player-macos.app.zip",
			Unzip:   true,
		},
	}, got)
	assert.Equal(t, int32(3), hits.Load())
}

func TestNewChecker_DefaultTimeout(t *testing.T) {
	t.Parallel()

	c := NewChecker(httpclient.NewClient(), afero.NewMemMapFs(), modulesDir, 0)
	assert.Equal(t, DefaultTimeout, c.timeout)
}
