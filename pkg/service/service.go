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

// Package service runs launch requests: resolve the runtime's plan, then
// hand it to the command executor in the background.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/runtimes"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrInvalidRequest = errors.New("invalid launch request")

// Request is a launch as received from the CLI or the API. Either path may
// be omitted: the folder defaults to the directory of the game path and the
// game path to the folder.
type Request struct {
	Options    options.Bag `json:"options"`
	Runtime    string      `json:"runtime" validate:"required"`
	GamePath   string      `json:"gamePath" validate:"required_without=GameFolder"`
	GameFolder string      `json:"gameFolder" validate:"required_without=GamePath"`
}

// Launch describes a started runtime process.
type Launch struct {
	Started  time.Time `json:"started"`
	ID       string    `json:"id"`
	Runtime  string    `json:"runtime"`
	GamePath string    `json:"gamePath"`
	Command  string    `json:"command"`
}

type Service struct {
	exec     command.Executor
	registry *runtimes.Registry
	env      *runtimes.Env
	clock    clockwork.Clock
	running  map[string]Launch
	titles   syncutil.KeyedMutex
	wg       sync.WaitGroup
	mu       syncutil.Mutex
}

func New(
	exec command.Executor,
	registry *runtimes.Registry,
	env *runtimes.Env,
	clock clockwork.Clock,
) *Service {
	return &Service{
		exec:     exec,
		registry: registry,
		env:      env,
		clock:    clock,
		running:  make(map[string]Launch),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func normalize(req *Request) (runtimes.Request, error) {
	if err := validate.Struct(req); err != nil {
		return runtimes.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	out := runtimes.Request{
		GamePath:   strings.TrimSpace(req.GamePath),
		GameFolder: strings.TrimSpace(req.GameFolder),
		Options:    req.Options,
	}
	if out.GameFolder == "" {
		out.GameFolder = filepath.Dir(out.GamePath)
	}
	if out.GamePath == "" {
		out.GamePath = out.GameFolder
	}
	if out.Options == nil {
		out.Options = options.Bag{}
	}
	return out, nil
}

// Launch resolves the plan for req and starts it in the background. It
// only fails for invalid requests, unknown runtimes and runtimes that are
// not installed; everything after that is logged. Plans for the same
// title folder are resolved one at a time so patches don't interleave.
func (s *Service) Launch(ctx context.Context, req *Request) (Launch, error) {
	rreq, err := normalize(req)
	if err != nil {
		return Launch{}, err
	}

	rt, err := s.registry.Get(req.Runtime)
	if err != nil {
		return Launch{}, err
	}

	id := uuid.New().String()
	logger := log.With().Str("launch", id).Str("runtime", rt.Name()).Logger()
	logger.Info().Msgf("launching: %s", rreq.GamePath)

	unlock := s.titles.Lock(rreq.GameFolder)
	plan, err := rt.Plan(ctx, s.env, &rreq)
	unlock()
	if err != nil {
		return Launch{}, fmt.Errorf("failed to prepare %s: %w", rt.Name(), err)
	}

	l := Launch{
		ID:       id,
		Runtime:  rt.Name(),
		GamePath: rreq.GamePath,
		Command:  plan.Launch.String(),
		Started:  s.clock.Now(),
	}
	logger.Info().Msgf("running: %s", l.Command)

	s.mu.Lock()
	s.running[id] = l
	s.mu.Unlock()

	// the launch outlives the request that started it
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(id)
		s.run(runCtx, plan, &logger)
	}()

	return l, nil
}

func (s *Service) run(ctx context.Context, plan runtimes.Plan, logger *zerolog.Logger) {
	for _, step := range plan.Prepare {
		logger.Debug().Msgf("preparing: %s", step)
		res, err := s.exec.Run(ctx, step.Options, step.Name, step.Args...)
		logOutput(logger, res)
		if err != nil {
			logger.Warn().Err(err).Msgf("preparation step failed: %s", step.Name)
		}
	}

	res, err := s.exec.Run(ctx, plan.Launch.Options, plan.Launch.Name, plan.Launch.Args...)
	logOutput(logger, res)
	if err != nil {
		logger.Error().Err(err).Msg("runtime exited with error")
		return
	}
	logger.Info().Msg("runtime exited")
}

func logOutput(logger *zerolog.Logger, res command.Result) {
	if out := strings.TrimSpace(string(res.Stdout)); out != "" {
		logger.Info().Str("stream", "stdout").Msg(out)
	}
	if out := strings.TrimSpace(string(res.Stderr)); out != "" {
		logger.Warn().Str("stream", "stderr").Msg(out)
	}
}

func (s *Service) finish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

// Running lists the launches whose runtime has not exited yet, oldest
// first.
func (s *Service) Running() []Launch {
	s.mu.Lock()
	out := make([]Launch, 0, len(s.running))
	for _, l := range s.running {
		out = append(out, l)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Launch) int {
		if c := a.Started.Compare(b.Started); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Runtimes lists the registered runtime names.
func (s *Service) Runtimes() []string {
	return s.registry.Names()
}

// Wait blocks until every started runtime has exited.
func (s *Service) Wait() {
	s.wg.Wait()
}
