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

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/api"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/config"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/updates"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/runtimes"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/service"
	"github.com/ZaparooProject/zaparoo-runtimes/pkg/shared/httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrNoAction = errors.New("nothing to do: pass -runtime, -check-updates or -serve")

// optionFlags collects repeated -opt key=value flags.
type optionFlags []string

func (o *optionFlags) String() string { return strings.Join(*o, ",") }

func (o *optionFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("option must be key=value: %q", v)
	}
	*o = append(*o, v)
	return nil
}

type Flags struct {
	set          *flag.FlagSet
	Runtime      *string
	Game         *string
	Folder       *string
	Options      *string
	Opts         optionFlags
	CheckUpdates *bool
	Serve        *bool
	Version      *bool
	Debug        *bool
}

// SetupFlags defines the command line flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{
		set: fs,
		Runtime: fs.String(
			"runtime",
			"",
			"runtime to launch the game with",
		),
		Game: fs.String(
			"game",
			"",
			"path to the game file or bundle",
		),
		Folder: fs.String(
			"folder",
			"",
			"game folder, defaults to the directory of -game",
		),
		Options: fs.String(
			"options",
			"",
			"runtime options as a JSON object",
		),
		CheckUpdates: fs.Bool(
			"check-updates",
			false,
			"check every runtime for updates and print the results",
		),
		Serve: fs.Bool(
			"serve",
			false,
			"run the launch API until interrupted",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging for this run",
		),
	}
	fs.Var(&f.Opts, "opt", "single runtime option as key=value, may be repeated")
	return f
}

// Pre parses args and handles the flags that need no environment. It
// returns true when the program should exit.
func (f *Flags) Pre(args []string, out io.Writer) (bool, error) {
	if err := f.set.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *f.Version {
		_, _ = fmt.Fprintf(out, "%s v%s (%s/%s)\n", config.AppName, config.AppVersion, runtime.GOOS, runtime.GOARCH)
		return true, nil
	}
	return false, nil
}

// LaunchRequest builds the service request from the launch flags. Values
// from -opt override keys of the same name in -options.
func (f *Flags) LaunchRequest(home string) (*service.Request, error) {
	bag := options.Bag{}
	if s := strings.TrimSpace(*f.Options); s != "" {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&bag); err != nil {
			return nil, fmt.Errorf("invalid -options: %w", err)
		}
		// null decodes to a nil map
		if bag == nil {
			bag = options.Bag{}
		}
	}

	for _, kv := range f.Opts {
		k, v, _ := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, fmt.Errorf("invalid -opt: %q", kv)
		}
		bag[k] = options.Coerce(v, home)
	}

	return &service.Request{
		Runtime:    *f.Runtime,
		GamePath:   *f.Game,
		GameFolder: *f.Folder,
		Options:    bag,
	}, nil
}

// Setup creates the app directories and initializes logging and the user
// config.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	settings helpers.Settings,
	defaultConfig config.Values,
	writers []io.Writer,
) (*config.Instance, error) {
	if err := helpers.EnsureDirectories(settings); err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}

	if err := helpers.InitLogging(settings, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(settings.ConfigDir, defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return cfg, nil
}

// NewEnv resolves the runtime environment from the config.
func NewEnv(fs afero.Fs, cfg *config.Instance, settings helpers.Settings) *runtimes.Env {
	return &runtimes.Env{
		FS: fs,
		Paths: runtimes.Paths{
			ModulesDir: cfg.ModulesDir(settings.ModulesDir(), settings.HomeDir),
			Home:       settings.HomeDir,
			Arch:       runtime.GOARCH,
		},
		Settings: runtimes.Settings{
			NWjsVersion: cfg.NWjsVersion(),
			WinePrefix:  cfg.WinePrefix(settings.HomeDir),
			Rosetta:     cfg.Rosetta(),
		},
	}
}

// App bundles everything the actions need.
type App struct {
	Config  *config.Instance
	Env     *runtimes.Env
	Service *service.Service
	Checker *updates.Checker
	Client  *httpclient.Client
	Out     io.Writer
}

// NewApp wires the service with the real executor and clock.
func NewApp(cfg *config.Instance, env *runtimes.Env, out io.Writer) *App {
	return newApp(cfg, env, &command.RealExecutor{}, clockwork.NewRealClock(), out)
}

func newApp(
	cfg *config.Instance,
	env *runtimes.Env,
	exec command.Executor,
	clock clockwork.Clock,
	out io.Writer,
) *App {
	client := httpclient.NewClient()
	app := &App{
		Config:  cfg,
		Env:     env,
		Client:  client,
		Out:     out,
		Service: service.New(exec, runtimes.DefaultRegistry(), env, clock),
	}
	if cfg.UpdatesEnabled() {
		app.Checker = updates.NewChecker(client, env.FS, env.Paths.ModulesDir, cfg.UpdateTimeout())
	}
	return app
}

// Run performs the action selected by the flags. Launches block until the
// runtime exits.
func (f *Flags) Run(ctx context.Context, app *App) error {
	switch {
	case *f.Serve:
		deps := &api.Deps{
			Service:        app.Service,
			Checker:        app.Checker,
			Client:         app.Client,
			Sources:        updates.Sources(),
			NWjsURL:        updates.NWjsVersionsURL,
			AllowedOrigins: app.Config.AllowedOrigins(),
		}
		err := api.Serve(ctx, app.Config.APIListen(), api.NewRouter(deps))
		app.Service.Wait()
		if err != nil {
			return fmt.Errorf("error running api: %w", err)
		}
		return nil
	case *f.CheckUpdates:
		return checkUpdates(ctx, app)
	case *f.Runtime != "":
		req, err := f.LaunchRequest(app.Env.Paths.Home)
		if err != nil {
			return err
		}
		l, err := app.Service.Launch(ctx, req)
		if err != nil {
			return fmt.Errorf("error launching: %w", err)
		}
		log.Info().Msgf("started %s: %s", l.Runtime, l.Command)
		app.Service.Wait()
		return nil
	default:
		return ErrNoAction
	}
}

func checkUpdates(ctx context.Context, app *App) error {
	found := map[string]updates.Descriptor{}
	if app.Checker == nil {
		log.Info().Msg("update checks disabled in config")
	} else {
		found = app.Checker.CheckAll(ctx, updates.Sources())
	}

	enc := json.NewEncoder(app.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(found); err != nil {
		return fmt.Errorf("error writing updates: %w", err)
	}
	return nil
}

// Main is the shared entry point of the platform binaries.
func Main(args []string, stdout, stderr io.Writer) int {
	flags := SetupFlags(flag.NewFlagSet(config.AppName, flag.ContinueOnError))
	flags.set.SetOutput(stderr)

	exit, err := flags.Pre(args, stdout)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	if exit {
		return 0
	}

	settings := helpers.DefaultSettings()
	cfg, err := Setup(settings, config.BaseDefaults, []io.Writer{zerolog.ConsoleWriter{Out: stderr}})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if *flags.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signalContext()
	defer stop()

	app := NewApp(cfg, NewEnv(afero.NewOsFs(), cfg, settings), stdout)
	if err := flags.Run(ctx, app); err != nil {
		log.Error().Err(err).Msg("run failed")
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, ErrNoAction) {
			flags.set.Usage()
			return 2
		}
		return 1
	}
	return 0
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
