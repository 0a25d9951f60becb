package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleetware/cardbridge/pkg/bridgectl/output"
	"github.com/fleetware/cardbridge/pkg/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bridgectl configuration",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigViewCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		hubServer   string
		fleetServer string
		deviceName  string
		insecure    bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a bridgectl config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}

			cfg := config.DefaultConfig()
			if hubServer != "" {
				cfg.Hub.Server = hubServer
			}
			if fleetServer != "" {
				cfg.Fleet.Server = fleetServer
			}
			cfg.Hub.InsecureSkipTLSVerify = insecure
			cfg.Fleet.InsecureSkipTLSVerify = insecure
			cfg.Device.Name = deviceName

			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&hubServer, "hub-server", "", "Hub server URL")
	cmd.Flags().StringVar(&fleetServer, "fleet-server", "", "Fleet server URL")
	cmd.Flags().StringVar(&deviceName, "device-name", "", "Device name reported during registration")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-tls-verify", false, "Skip TLS verification")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")

	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.cfg == nil {
				loaded, err := config.LoadOrDefault(rt.configPath)
				if err != nil {
					return err
				}
				rt.cfg = loaded
			}
			return output.WriteObject(rt.Writer(), output.FormatYAML, rt.cfg)
		},
	}
}
