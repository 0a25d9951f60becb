package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetware/cardbridge/pkg/registrar"
)

func NewRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register this device as a company card bridge",
		Long:  "Ensures the fleet platform knows this installation as a company card bridge client. Safe to run repeatedly; an existing registration is verified and reused.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			log, err := buildLogger(rt)
			if err != nil {
				return err
			}
			st, err := openStore(rt)
			if err != nil {
				return err
			}
			fleetClient, err := buildFleetClient(rt)
			if err != nil {
				return err
			}
			manager, err := buildChain(rt, st, log)
			if err != nil {
				return err
			}

			deviceID, err := registrar.New(fleetClient, manager, st, log).Ensure(cmd.Context())
			if err != nil {
				return err
			}

			creds, loadErr := st.Load()
			if loadErr == nil && creds.BridgeClientID != "" {
				fmt.Fprintf(rt.Writer(), "Bridge client %s registered (device id %s)\n", creds.BridgeClientID, deviceID)
				return nil
			}
			fmt.Fprintf(rt.Writer(), "Bridge client registered (device id %s)\n", deviceID)
			return nil
		},
	}
}
