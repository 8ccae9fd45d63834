package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rennerdo30/auto-proxy/internal/logging"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

func newProfileCommand(app func() *App) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage proxy profiles",
	}

	profileCmd.AddCommand(
		newProfileNewCommand(app),
		newProfileUpdateCommand(app),
		newProfileDeleteCommand(app),
		newProfileListCommand(app),
		newProfileShowCommand(app),
		newProfileUseCommand(app),
	)
	return profileCmd
}

func newProfileNewCommand(app func() *App) *cobra.Command {
	var (
		flags    settingsFlags
		networks []string
	)
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a profile",
		Example: `  auto-proxy profile new office --host proxy.corp.example --port 3128 \
      --no-proxy localhost,.corp.example --network CorpWiFi`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			name := args[0]
			if err := proxy.ValidateName(name); err != nil {
				return err
			}
			if a.Store.Exists(name) {
				return fmt.Errorf("profile %q: %w", name, util.ErrAlreadyExists)
			}
			settings, err := flags.apply(cmd, a, proxy.Settings{})
			if err != nil {
				return err
			}
			if err := a.Store.Save(proxy.NewProfile(name, settings, networks)); err != nil {
				return err
			}
			logging.Info("profile created", "profile", name)
			fmt.Fprintf(cmd.OutOrStdout(), "Created profile %q\n", name)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&networks, "network", "n", nil, "networks that auto-apply this profile")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

func newProfileUpdateCommand(app func() *App) *cobra.Command {
	var (
		flags    settingsFlags
		networks []string
	)
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Change fields of an existing profile",
		Long: `Change fields of an existing profile. Only the flags given are changed;
--network replaces the list of auto-apply networks and an empty --username
removes the credentials.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			p, err := a.Store.Load(args[0])
			if err != nil {
				return err
			}
			if p.ProxySettings, err = flags.apply(cmd, a, p.ProxySettings); err != nil {
				return err
			}
			if cmd.Flags().Changed("network") {
				p.AutoApplyNetworks = networks
			}
			if err := a.Store.Save(p); err != nil {
				return err
			}
			logging.Info("profile updated", "profile", p.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Updated profile %q\n", p.Name)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&networks, "network", "n", nil, "networks that auto-apply this profile")
	return cmd
}

func newProfileDeleteCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app().Store.Delete(args[0]); err != nil {
				return err
			}
			logging.Info("profile deleted", "profile", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %q\n", args[0])
			return nil
		},
	}
}

func newProfileListCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := app().Store.All()
			if err != nil {
				logging.Warn("some profiles could not be read", "error", err)
			}
			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				fmt.Fprintln(out, "No profiles")
				return nil
			}
			table := newTable(out, "name", "proxy", "protocols", "networks")
			for _, p := range profiles {
				table.Append([]string{
					p.Name,
					describe(p.ProxySettings),
					joinProtocols(p.ProxySettings.Protocols),
					orDash(p.AutoApplyNetworks),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newProfileShowCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app().Store.Load(args[0])
			if err != nil {
				return err
			}
			s := p.ProxySettings
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:      %s\n", p.Name)
			fmt.Fprintf(out, "Proxy:     %s\n", describe(s))
			if s.Auth != nil {
				fmt.Fprintf(out, "Username:  %s\n", s.Auth.Username)
			}
			fmt.Fprintf(out, "Protocols: %s\n", joinProtocols(s.Protocols))
			fmt.Fprintf(out, "No proxy:  %s\n", orDash(s.NoProxy))
			fmt.Fprintf(out, "Networks:  %s\n", orDash(p.AutoApplyNetworks))
			return nil
		},
	}
}

func newProfileUseCommand(app func() *App) *cobra.Command {
	var targets []string
	cmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Apply a profile to the targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			p, err := a.Store.Load(args[0])
			if err != nil {
				return err
			}
			a.markProfile(p.Name, "")
			return a.Apply(cmd.Context(), cmd.OutOrStdout(), targets, p.ProxySettings)
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "targets to update (default from config)")
	return cmd
}
