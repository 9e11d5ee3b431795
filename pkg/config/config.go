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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/syncutil"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const SchemaVersion = 1

var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	Runtimes     Runtimes `toml:"runtimes"`
	Updates      Updates  `toml:"updates,omitempty"`
	Service      Service  `toml:"service,omitempty"`
	ConfigSchema int      `toml:"config_schema"`
	DebugLogging bool     `toml:"debug_logging"`
}

type Runtimes struct {
	// ModulesDir holds one directory per runtime with its deps. Empty means
	// the default under the data directory.
	ModulesDir  string `toml:"modules_dir,omitempty"`
	NWjsVersion string `toml:"nwjs_version,omitempty" validate:"omitempty,semver"`
	WinePrefix  string `toml:"wine_prefix,omitempty"`
	// Rosetta runs native x86_64 app bundles through Rosetta.
	Rosetta bool `toml:"rosetta"`
}

type Updates struct {
	Enabled   *bool `toml:"enabled,omitempty"`
	TimeoutMS int   `toml:"timeout_ms,omitempty" validate:"gte=0,lte=60000"`
}

type Service struct {
	APIPort        *int     `toml:"api_port,omitempty" validate:"omitempty,min=1,max=65535"`
	APIListen      string   `toml:"api_listen,omitempty"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Runtimes: Runtimes{
		NWjsVersion: DefaultNWjsVersion,
	},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type Instance struct {
	cfgPath  string
	env      Env
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file in configDir, writing the defaults to
// disk first if it does not exist yet. Environment overrides are applied
// by the getters and never saved.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	env, err := ParseEnv()
	if err != nil {
		return nil, err
	}
	log.Debug().Msgf("env config path: %s", env.CfgPath)

	cfgPath := env.CfgPath
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		env:      env,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err = cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// fields missing from the file keep their defaults
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	if err := validate.Struct(&newVals); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c.vals = newVals

	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env.Debug != nil {
		return *c.env.Debug
	}
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

// ModulesDir returns the configured modules directory, or fallback when
// none is set. A leading ~/ is expanded against home.
func (c *Instance) ModulesDir(fallback, home string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dir := c.vals.Runtimes.ModulesDir
	if c.env.ModulesDir != "" {
		dir = c.env.ModulesDir
	}
	if dir == "" {
		return fallback
	}
	if home != "" && strings.HasPrefix(dir, "~/") {
		return filepath.Join(home, dir[2:])
	}
	return dir
}

func (c *Instance) NWjsVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Runtimes.NWjsVersion == "" {
		return DefaultNWjsVersion
	}
	return c.vals.Runtimes.NWjsVersion
}

// WinePrefix returns the configured prefix, defaulting to ~/.wine.
func (c *Instance) WinePrefix(home string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Runtimes.WinePrefix == "" {
		return filepath.Join(home, ".wine")
	}
	return c.vals.Runtimes.WinePrefix
}

func (c *Instance) Rosetta() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Runtimes.Rosetta
}

func (c *Instance) UpdatesEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Updates.Enabled == nil {
		return true
	}
	return *c.vals.Updates.Enabled
}

func (c *Instance) UpdateTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Updates.TimeoutMS <= 0 {
		return DefaultUpdateTimeout
	}
	return time.Duration(c.vals.Updates.TimeoutMS) * time.Millisecond
}

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiPortLocked()
}

// apiPortLocked returns the API port. Caller must hold mu (read or write).
func (c *Instance) apiPortLocked() int {
	if c.vals.Service.APIPort == nil {
		return DefaultAPIPort
	}
	return *c.vals.Service.APIPort
}

func (c *Instance) SetAPIPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Service.APIPort = &port
}

// APIListen defaults to localhost only.
func (c *Instance) APIListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.APIListen == "" {
		return "127.0.0.1:" + strconv.Itoa(c.apiPortLocked())
	}
	return c.vals.Service.APIListen
}

// defaultOrigins keeps the launch API to local pages unless configured.
var defaultOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

func (c *Instance) AllowedOrigins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.vals.Service.AllowedOrigins) == 0 {
		return slices.Clone(defaultOrigins)
	}
	return slices.Clone(c.vals.Service.AllowedOrigins)
}
