package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/http/httpproxy"
	"gopkg.in/yaml.v3"

	"github.com/rennerdo30/auto-proxy/internal/config"
	"github.com/rennerdo30/auto-proxy/internal/fsutil"
	"github.com/rennerdo30/auto-proxy/internal/logging"
	"github.com/rennerdo30/auto-proxy/internal/network"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/target"
	"github.com/rennerdo30/auto-proxy/internal/util"
	"github.com/rennerdo30/auto-proxy/internal/version"
)

// NewRootCommand builds the auto-proxy command tree. The App is created
// lazily so that --config is honoured.
func NewRootCommand(factory AppFactory) *cobra.Command {
	var (
		configFile string
		logLevel   string
		app        *App
	)

	root := &cobra.Command{
		Use:   "auto-proxy",
		Short: "Apply proxy profiles per WiFi network",
		Long: `auto-proxy writes proxy settings into the native configuration of shells,
package managers, desktops, editors and developer tools, and switches
profiles automatically based on the active WiFi network.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if _, err := logging.ParseLevel(logLevel); err != nil {
					return err
				}
			}
			a, err := factory(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				a.Config.Logging.Level = logLevel
				if err := logging.Setup(a.Config.Logging); err != nil {
					return fmt.Errorf("failed to setup logging: %w", err)
				}
			}
			app = a
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	get := func() *App { return app }

	root.AddCommand(
		newProfileCommand(get),
		newSetCommand(get),
		newUnsetCommand(get),
		newShowCommand(get),
		newAutoApplyCommand(get),
		newTargetsCommand(get),
		newCheckCommand(get),
		newNetworksCommand(get),
		newSetupCommand(get),
		newConfigCommand(get),
		newVersionCommand(),
	)
	return root
}

// settingsFlags binds the flags describing proxy settings.
type settingsFlags struct {
	host      string
	port      string
	username  string
	password  string
	protocols []string
	noProxy   []string
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "proxy host")
	cmd.Flags().StringVar(&f.port, "port", "", "proxy port")
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "proxy username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "proxy password (prompted when omitted on a terminal)")
	cmd.Flags().StringSliceVar(&f.protocols, "protocols", nil, "protocols to proxy: http,https,ftp,socks (default all)")
	cmd.Flags().StringSliceVar(&f.noProxy, "no-proxy", nil, "hosts and domains that bypass the proxy")
}

// apply overlays the flags the user actually set onto s.
func (f *settingsFlags) apply(cmd *cobra.Command, app *App, s proxy.Settings) (proxy.Settings, error) {
	changed := cmd.Flags().Changed
	if changed("host") {
		s.Host = f.host
	}
	if changed("port") {
		s.Port = f.port
	}
	if changed("protocols") {
		s.Protocols = nil
		for _, raw := range f.protocols {
			p, err := proxy.ParseProtocol(raw)
			if err != nil {
				return s, fmt.Errorf("%v: %w", err, util.ErrInvalidConfig)
			}
			if !s.HasProtocol(p) {
				s.Protocols = append(s.Protocols, p)
			}
		}
	}
	if changed("no-proxy") {
		s.NoProxy = f.noProxy
	}
	if changed("username") {
		if f.username == "" {
			s.Auth = nil
		} else {
			password := f.password
			if !changed("password") {
				var err error
				if password, err = promptPassword(app, f.username); err != nil {
					return s, err
				}
			}
			s.Auth = &proxy.Auth{Username: f.username, Password: password}
		}
	} else if changed("password") && s.Auth != nil {
		s.Auth.Password = f.password
	}
	return s, s.Validate()
}

func promptPassword(app *App, username string) (string, error) {
	if app.ReadPassword == nil {
		return "", fmt.Errorf("--password is required for %s when not on a terminal: %w", username, util.ErrInvalidConfig)
	}
	return app.ReadPassword(fmt.Sprintf("Password for %s: ", username))
}

func newSetCommand(app func() *App) *cobra.Command {
	var (
		flags   settingsFlags
		targets []string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Apply ad-hoc proxy settings without a profile",
		Example: `  auto-proxy set --host proxy.corp.example --port 3128 --no-proxy localhost,.corp.example
  auto-proxy set --host 10.0.0.1 --port 8080 -u alice --targets zsh,git`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.apply(cmd, app(), proxy.Settings{})
			if err != nil {
				return err
			}
			return app().Apply(cmd.Context(), cmd.OutOrStdout(), targets, settings)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "targets to update (default from config)")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

func newUnsetCommand(app func() *App) *cobra.Command {
	var targets []string
	cmd := &cobra.Command{
		Use:   "unset",
		Short: "Remove the proxy from every target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Clear(cmd.Context(), cmd.OutOrStdout(), targets)
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "targets to clear (default from config)")
	return cmd
}

func newShowCommand(app func() *App) *cobra.Command {
	var targets []string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the proxy currently configured in each target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := app().Targets(targets)
			if err != nil {
				return err
			}
			writeSnapshots(cmd.OutOrStdout(), target.NewDispatcher(selected).Snapshot(cmd.Context()))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "targets to inspect (default from config)")
	return cmd
}

func newAutoApplyCommand(app func() *App) *cobra.Command {
	var targets []string
	cmd := &cobra.Command{
		Use:   "auto-apply",
		Short: "Apply the profile for the active WiFi network, or clear the proxy",
		Long: `Detect the active WiFi network and apply the first profile, in name order,
that lists it. When no profile matches or no WiFi network is active the proxy
is removed from every target. Suitable for a NetworkManager dispatcher hook.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			current, err := network.RequireCurrent(ctx, a.Network)
			if err != nil && !errors.Is(err, util.ErrNoActiveNetwork) {
				return err
			}
			if current == "" {
				fmt.Fprintln(out, "No active WiFi network; clearing proxy")
				a.markProfile("", "")
				return a.Clear(ctx, out, targets)
			}

			p, err := a.Store.ForNetwork(current)
			if err != nil {
				if !util.IsNotFound(err) {
					logging.Warn("some profiles could not be read", "error", err)
				}
				fmt.Fprintf(out, "No profile for network %q; clearing proxy\n", current)
				a.markProfile("", "")
				return a.Clear(ctx, out, targets)
			}

			fmt.Fprintf(out, "Applying profile %q for network %q\n", p.Name, current)
			a.markProfile(p.Name, current)
			return a.Apply(ctx, out, targets, p.ProxySettings)
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "targets to update (default from config)")
	return cmd
}

func newTargetsCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the available targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			enabled := make(map[string]bool)
			for _, name := range a.Config.Targets.Enabled {
				enabled[strings.ToLower(name)] = true
			}

			all, err := target.Select(nil, a.Config.TargetOptions(a.Runner))
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "target", "enabled", "location", "writable")
			for _, t := range all {
				on := len(enabled) == 0 || enabled[t.Name()]
				location, writable := "(command)", "-"
				if fb, ok := t.(target.FileBacked); ok {
					location = fb.Path()
					writable = "no"
					if fsutil.Writable(location) {
						writable = "yes"
					}
				}
				table.Append([]string{t.Name(), yesNo(on), location, writable})
			}
			table.Render()
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newCheckCommand(app func() *App) *cobra.Command {
	var profileName string
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Report whether a URL would go through the proxy",
		Long: `Evaluate a URL against proxy settings and their no-proxy list. With
--profile the named profile is used, otherwise the proxy environment
variables of the current process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := args[0]
			if !strings.Contains(raw, "://") {
				raw = "http://" + raw
			}
			u, err := url.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid url %q: %w", args[0], err)
			}

			cfg := httpproxy.FromEnvironment()
			if profileName != "" {
				p, err := app().Store.Load(profileName)
				if err != nil {
					return err
				}
				cfg = proxyConfig(p.ProxySettings)
			}

			via, err := cfg.ProxyFunc()(u)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if via == nil {
				fmt.Fprintf(out, "%s: direct\n", u.Redacted())
				return nil
			}
			fmt.Fprintf(out, "%s: via %s\n", u.Redacted(), via.Redacted())
			return nil
		},
	}
	cmd.Flags().StringVar(&profileName, "profile", "", "profile to evaluate")
	return cmd
}

// proxyConfig maps settings onto the resolver Go's HTTP stack uses.
func proxyConfig(s proxy.Settings) *httpproxy.Config {
	cfg := &httpproxy.Config{NoProxy: strings.Join(s.NoProxy, ",")}
	protocols := s.ProtocolsFor(proxy.AllProtocols()...)
	for _, p := range protocols {
		switch p {
		case proxy.HTTP:
			cfg.HTTPProxy = s.Endpoint("http").URL()
		case proxy.HTTPS:
			cfg.HTTPSProxy = s.Endpoint("http").URL()
		}
	}
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" {
		for _, p := range protocols {
			if p == proxy.SOCKS {
				socks := s.Endpoint("socks5").URL()
				cfg.HTTPProxy, cfg.HTTPSProxy = socks, socks
			}
		}
	}
	return cfg
}

func newNetworksCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List known networks and the profiles bound to them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			known, err := a.Network.Known(ctx)
			if err != nil {
				return err
			}
			current, _, err := a.Network.Current(ctx)
			if err != nil {
				logging.Debug("current network unavailable", "error", err)
			}
			profiles, err := a.Store.All()
			if err != nil {
				logging.Warn("some profiles could not be read", "error", err)
			}

			table := newTable(cmd.OutOrStdout(), "network", "active", "profile")
			for _, name := range known {
				bound := "-"
				for _, p := range profiles {
					if p.Matches(name) {
						bound = p.Name
						break
					}
				}
				active := ""
				if name == current {
					active = "*"
				}
				table.Append([]string{name, active, bound})
			}
			table.Render()
			return nil
		},
	}
}

func newSetupCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the config and profile directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			created, err := config.Bootstrap(a.ConfigPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Wrote default configuration to %s\n", fsutil.MustExpand(a.ConfigPath))
			} else {
				fmt.Fprintf(out, "Configuration already exists at %s\n", fsutil.MustExpand(a.ConfigPath))
			}
			fmt.Fprintf(out, "Profiles are stored in %s\n", a.Store.Dir())
			return nil
		},
	}
}

func newConfigCommand(app func() *App) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := yaml.Marshal(app().Config)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:     "set <key> <value>",
			Short:   "Set a configuration value, keeping comments",
			Example: "  auto-proxy config set targets.enabled '[zsh, git, npm]'\n  auto-proxy config set network.backend dbus",
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.SetValue(app().ConfigPath, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), fsutil.MustExpand(app().ConfigPath))
			},
		},
	)
	return configCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// The version needs no configuration.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}
