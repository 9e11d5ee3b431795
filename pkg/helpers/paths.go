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

package helpers

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/config"
	"github.com/adrg/xdg"
)

// Settings holds the directories the app reads and writes.
type Settings struct {
	DataDir   string
	ConfigDir string
	LogDir    string
	HomeDir   string
}

// ModulesDir is the default location of the installed runtimes.
func (s Settings) ModulesDir() string {
	return filepath.Join(s.DataDir, config.ModulesDirName)
}

const (
	// UserDir next to the executable switches to a portable install.
	UserDir = "user"
	logsDir = "logs"
)

// DefaultSettings returns the XDG locations, or the portable user
// directory when one exists.
func DefaultSettings() Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = xdg.Home
	}

	if dir, ok := HasUserDir(); ok {
		return Settings{
			DataDir:   dir,
			ConfigDir: dir,
			LogDir:    filepath.Join(dir, logsDir),
			HomeDir:   home,
		}
	}

	return Settings{
		DataDir:   filepath.Join(xdg.DataHome, config.AppName),
		ConfigDir: filepath.Join(xdg.ConfigHome, config.AppName),
		LogDir:    filepath.Join(xdg.StateHome, config.AppName, logsDir),
		HomeDir:   home,
	}
}

var (
	userDirOnce   sync.Once
	userDirCache  string
	userDirExists bool
)

// HasUserDir reports whether a "user" directory sits next to the
// executable. The result is cached after the first call.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exe, err := os.Executable()
		if err != nil {
			return
		}
		userDirCache, userDirExists = userDirIn(filepath.Dir(exe))
	})
	return userDirCache, userDirExists
}

func userDirIn(parent string) (string, bool) {
	dir := filepath.Join(parent, UserDir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}
