// Package cli provides the auto-proxy command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/rennerdo30/auto-proxy/internal/config"
	"github.com/rennerdo30/auto-proxy/internal/fsutil"
	"github.com/rennerdo30/auto-proxy/internal/logging"
	"github.com/rennerdo30/auto-proxy/internal/metrics"
	"github.com/rennerdo30/auto-proxy/internal/network"
	"github.com/rennerdo30/auto-proxy/internal/profile"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/target"
)

// App carries the dependencies shared by every command.
type App struct {
	ConfigPath string
	Config     config.AppConfig
	Store      *profile.Store
	Network    network.Lister
	Runner     target.Runner
	Metrics    *metrics.Metrics
	// ReadPassword prompts for a secret. Nil means no terminal is available.
	ReadPassword func(prompt string) (string, error)
}

// AppFactory builds the App for a config path.
type AppFactory func(configPath string) (*App, error)

// NewApp loads the configuration at configPath and wires the real
// collaborators.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.LoadApp(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	store, err := profile.NewStore(cfg.ProfilesDir)
	if err != nil {
		return nil, err
	}
	runner := target.ExecRunner{Timeout: cfg.Targets.CommandTimeout.Duration()}
	lister, err := network.New(network.Options{
		Backend: cfg.Network.Backend,
		Sudo:    cfg.Network.Sudo,
		Runner:  runner,
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		ConfigPath: configPath,
		Config:     cfg,
		Store:      store,
		Network:    lister,
		Runner:     runner,
		Metrics:    metrics.New(),
	}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		app.ReadPassword = func(prompt string) (string, error) {
			fmt.Fprint(os.Stderr, prompt)
			secret, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			return string(secret), err
		}
	}
	return app, nil
}

// Targets builds the selected targets. An empty selection falls back to the
// configured list, and an empty configured list means every target.
func (a *App) Targets(names []string) ([]target.Target, error) {
	if len(names) == 0 {
		names = a.Config.Targets.Enabled
	}
	return target.Select(names, a.Config.TargetOptions(a.Runner))
}

func (a *App) dispatcher(names []string) (*target.Dispatcher, error) {
	targets, err := a.Targets(names)
	if err != nil {
		return nil, err
	}
	var opts []target.DispatcherOption
	if a.Metrics != nil {
		opts = append(opts, target.WithObserver(a.Metrics))
	}
	return target.NewDispatcher(targets, opts...), nil
}

// Apply writes settings to the selected targets and prints the outcome.
func (a *App) Apply(ctx context.Context, w io.Writer, names []string, settings proxy.Settings) error {
	d, err := a.dispatcher(names)
	if err != nil {
		return err
	}
	return a.finish(w, d.Apply(ctx, []proxy.Settings{settings}))
}

// Clear removes the proxy from the selected targets and prints the outcome.
func (a *App) Clear(ctx context.Context, w io.Writer, names []string) error {
	d, err := a.dispatcher(names)
	if err != nil {
		return err
	}
	return a.finish(w, d.Clear(ctx))
}

func (a *App) finish(w io.Writer, report target.Report) error {
	writeReport(w, report)
	if a.Metrics != nil {
		a.Metrics.RecordRun(len(report.Failed()))
	}
	a.exportMetrics()
	return report.Err()
}

// exportMetrics writes the textfile when configured. Failures are logged
// only; metrics never fail a run.
func (a *App) exportMetrics() {
	path := a.Config.Metrics.TextfilePath
	if a.Metrics == nil || path == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(fsutil.MustExpand(path)); err != nil {
		logging.Warn("failed to write metrics textfile", "path", path, "error", err)
	}
}

func (a *App) markProfile(name, network string) {
	if a.Metrics != nil {
		a.Metrics.SetActiveProfile(name, network)
	}
}
