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

package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/updates"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/runtimes"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/service"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/shared/httpclient"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	deps *Deps
	cmd  *mocks.MockCommandExecutor
	fs   afero.Fs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	cmd := &mocks.MockCommandExecutor{}
	env := &runtimes.Env{
		FS:    fs,
		Paths: runtimes.Paths{ModulesDir: "/modules", Home: "/home/u", Arch: "arm64"},
	}
	svc := service.New(cmd, runtimes.DefaultRegistry(), env, clockwork.NewFakeClock())
	t.Cleanup(svc.Wait)

	return &fixture{
		fs:  fs,
		cmd: cmd,
		deps: &Deps{
			Service:        svc,
			Client:         httpclient.NewClient(),
			AllowedOrigins: []string{"http://localhost:*"},
		},
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRuntimesRoute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, NewRouter(f.deps), http.MethodGet, "/api/runtimes", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"runtimes":["easyrpg","mkxpz","native","nwjs","ruffle","wine"]}`,
		rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestVersionRoute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, NewRouter(f.deps), http.MethodGet, "/api/version", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"DEVELOPMENT"}`, rec.Body.String())
}

func TestLaunchRoute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cmd.On("Run", mock.Anything, command.Options{}, "xattr", []string{"-cr", "/Apps/Game.app"}).
		Return(command.Result{}, nil)
	f.cmd.On("Run", mock.Anything, command.Options{}, "open", []string{"--arch", "x86_64", "/Apps/Game.app"}).
		Return(command.Result{}, nil)

	rec := do(t, NewRouter(f.deps), http.MethodPost, "/api/launch",
		`{"runtime":"native","gamePath":"/Apps/Game.app","options":{"runWithRosetta":true}}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var l service.Launch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
	assert.Equal(t, "native", l.Runtime)
	assert.Equal(t, "/Apps/Game.app", l.GamePath)
	assert.NotEmpty(t, l.ID)

	f.deps.Service.Wait()
	f.cmd.AssertExpectations(t)
}

func TestLaunchRoute_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed body", body: `{"runtime":`, want: http.StatusBadRequest},
		{name: "missing runtime", body: `{"gamePath":"/g"}`, want: http.StatusBadRequest},
		{name: "unknown runtime", body: `{"runtime":"dosbox","gamePath":"/g"}`, want: http.StatusBadRequest},
		{name: "not installed", body: `{"runtime":"ruffle","gamePath":"/g/m.swf"}`, want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			rec := do(t, NewRouter(f.deps), http.MethodPost, "/api/launch", tt.body)

			assert.Equal(t, tt.want, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			f.cmd.AssertNotCalled(t, "Run")
		})
	}
}

func TestLaunchesRoute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	release := make(chan struct{})
	f.cmd.On("Run", mock.Anything, mock.Anything, "xattr", mock.Anything).Return(command.Result{}, nil)
	f.cmd.On("Run", mock.Anything, mock.Anything, "open", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(command.Result{}, nil)
	h := NewRouter(f.deps)

	rec := do(t, h, http.MethodPost, "/api/launch", `{"runtime":"native","gameFolder":"/Apps/Game.app"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/launches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Launches []service.Launch `json:"launches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Launches, 1)
	assert.Equal(t, "native", resp.Launches[0].Runtime)

	close(release)
	f.deps.Service.Wait()

	rec = do(t, h, http.MethodGet, "/api/launches", "")
	assert.JSONEq(t, `{"launches":[]}`, rec.Body.String())
}

func TestUpdatesRoute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"sha":"new"}`))
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t)
	src := updates.MKXPZ
	src.URL = srv.URL
	checker := updates.NewChecker(f.deps.Client, f.fs, "/modules", time.Second)
	require.NoError(t, afero.WriteFile(f.fs, checker.MarkerPath(&src), []byte("old\n"), 0o644))
	f.deps.Checker = checker
	f.deps.Sources = []*updates.Source{&src}

	rec := do(t, NewRouter(f.deps), http.MethodPost, "/api/updates", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Updates map[string]updates.Descriptor `json:"updates"`
		Enabled bool                          `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Enabled)
	require.Contains(t, resp.Updates, "mkxpz")
	assert.Equal(t, "new", resp.Updates["mkxpz"].Version)
}

func TestUpdatesRoute_Disabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, NewRouter(f.deps), http.MethodPost, "/api/updates", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false,"updates":{}}`, rec.Body.String())
}

func TestNWjsVersionsRoute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"versions":[
			{"version":"v0.101.0","flavors":["normal","sdk"],"files":["osx-arm64","osx-x64"]},
			{"version":"v0.50.0","flavors":["normal"],"files":["osx-x64"]}
		]}`))
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t)
	f.deps.NWjsURL = srv.URL
	rec := do(t, NewRouter(f.deps), http.MethodGet, "/api/runtimes/nwjs/versions", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]map[string]updates.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
	assert.Contains(t, resp["v0.101.0"], "arm64")
}

func TestNWjsVersionsRoute_UpstreamDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t)
	f.deps.NWjsURL = srv.URL
	rec := do(t, NewRouter(f.deps), http.MethodGet, "/api/runtimes/nwjs/versions", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/runtimes", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()

	NewRouter(f.deps).ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, NewRouter(f.deps)) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/version") //nolint:noctx // test
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
