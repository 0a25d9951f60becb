package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetware/cardbridge/pkg/bridgectl/output"
	"github.com/fleetware/cardbridge/pkg/chain"
	"github.com/fleetware/cardbridge/pkg/devicelogin"
	"github.com/fleetware/cardbridge/pkg/hub"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate this device against the hub",
	}
	cmd.AddCommand(newAuthLoginCommand(), newAuthStatusCommand(), newAuthLogoutCommand())
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign this device in via browser confirmation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			log, err := buildLogger(rt)
			if err != nil {
				return err
			}
			hubClient, err := buildHubClient(rt)
			if err != nil {
				return err
			}
			st, err := openStore(rt)
			if err != nil {
				return err
			}

			w := rt.Writer()
			options := []devicelogin.FlowOption{
				devicelogin.WithDeviceInfo(deviceInfo(rt)),
			}
			if rt.noBrowser {
				options = append(options, devicelogin.WithBrowserOpener(func(url string) error {
					_, err := fmt.Fprintf(w, "Open this URL to confirm the sign-in:\n\n  %s\n\n", url)
					return err
				}))
			} else {
				options = append(options, devicelogin.WithBrowserOpener(func(url string) error {
					fmt.Fprintf(w, "Confirm the sign-in in your browser: %s\n", url)
					return devicelogin.OpenBrowser(url)
				}))
			}

			flow := devicelogin.New(hubClient, st, log, options...)
			fmt.Fprintln(w, "Waiting for confirmation...")

			user, err := flow.Run(cmd.Context())
			var roleErr *devicelogin.RoleNotAllowedError
			if errors.As(err, &roleErr) {
				return fmt.Errorf("this account cannot operate a card bridge: %w", err)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "Signed in as %s (%s)\n", user.FullName(), user.Email)
			if org := user.OrganizationName(); org != "" {
				fmt.Fprintf(w, "Organization: %s\n", org)
			}
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			st, err := openStore(rt)
			if err != nil {
				return err
			}
			creds, err := st.Load()
			if err != nil {
				return err
			}

			status := output.AuthStatus{
				Authenticated:  creds.DeviceToken != "",
				FleetCompanyID: creds.FleetCompanyID,
				BridgeClientID: creds.BridgeClientID,
				BridgeDeviceID: creds.BridgeDeviceID,
			}
			if exp, ok := chain.TokenExpiry(creds.SessionToken); ok {
				status.SessionExpires = exp.Local().Format(time.RFC3339)
			}
			if exp, ok := chain.TokenExpiry(creds.FleetToken); ok {
				status.FleetExpires = exp.Local().Format(time.RFC3339)
			}

			if status.Authenticated {
				log, err := buildLogger(rt)
				if err != nil {
					return err
				}
				manager, err := buildChain(rt, st, log)
				if err != nil {
					return err
				}
				var user *hub.User
				hubClient, err := buildHubClient(rt)
				if err != nil {
					return err
				}
				err = manager.DoHub(cmd.Context(), func(sessionToken string) error {
					var meErr error
					user, meErr = hubClient.Me(cmd.Context(), sessionToken)
					return meErr
				})
				switch {
				case errors.Is(err, chain.ErrNotAuthenticated):
					status.Authenticated = false
				case err != nil:
					// Offline or hub unavailable; stored state still renders.
					log.Debugw("identity lookup failed", "error", err)
				default:
					status.Email = user.Email
					status.Name = user.FullName()
					status.Organization = user.OrganizationName()
				}
			}

			if format == output.FormatTable {
				return output.WriteAuthStatus(rt.Writer(), status)
			}
			return output.WriteObject(rt.Writer(), format, status)
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard stored tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(rt)
			if err != nil {
				return err
			}
			if err := st.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(rt.Writer(), "Signed out. The bridge client identity was kept.")
			return nil
		},
	}
}
