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

// Package api exposes the launch service over a small JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/config"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/updates"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/runtimes"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/service"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/shared/httpclient"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

const maxRequestBytes = 1 << 20

// Deps are the handlers' collaborators. Checker may be nil when update
// checks are disabled.
type Deps struct {
	Service        *service.Service
	Checker        *updates.Checker
	Client         *httpclient.Client
	NWjsURL        string
	Sources        []*updates.Source
	AllowedOrigins []string
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error writing response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// NewRouter builds the API routes.
func NewRouter(d *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(config.APIRequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", handleVersion)
		r.Get("/runtimes", handleRuntimes(d))
		r.Get("/runtimes/nwjs/versions", handleNWjsVersions(d))
		r.Post("/launch", handleLaunch(d))
		r.Get("/launches", handleLaunches(d))
		r.Post("/updates", handleUpdates(d))
	})

	return r
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": config.AppVersion})
}

func handleRuntimes(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"runtimes": d.Service.Runtimes()})
	}
}

func handleLaunch(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			log.Warn().Err(err).Msg("invalid launch body")
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", service.ErrInvalidRequest, err))
			return
		}

		l, err := d.Service.Launch(r.Context(), &req)
		if err != nil {
			log.Error().Err(err).Msg("launch failed")
			writeError(w, launchStatus(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, l)
	}
}

func launchStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, runtimes.ErrUnknownRuntime):
		return http.StatusBadRequest
	case errors.Is(err, runtimes.ErrNotInstalled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func handleLaunches(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]service.Launch{"launches": d.Service.Running()})
	}
}

func handleUpdates(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found := map[string]updates.Descriptor{}
		if d.Checker != nil {
			found = d.Checker.CheckAll(r.Context(), d.Sources)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"enabled": d.Checker != nil,
			"updates": found,
		})
	}
}

func handleNWjsVersions(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := updates.NWjsVersions(r.Context(), d.Client, d.NWjsURL)
		if err != nil {
			log.Error().Err(err).Msg("error fetching nw.js versions")
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, versions)
	}
}

// Serve runs the API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return serve(ctx, ln, h)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("api listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown failed: %w", err)
		}
		return nil
	}
}
