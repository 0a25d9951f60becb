package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetware/cardbridge/pkg/bridgectl/output"
	"github.com/fleetware/cardbridge/pkg/cards"
	"github.com/fleetware/cardbridge/pkg/reconcile"
)

func NewCardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage the local company card registry",
	}
	cmd.AddCommand(
		newCardsListCommand(),
		newCardsAddCommand(),
		newCardsRenameCommand(),
		newCardsRemoveCommand(),
		newCardsSyncCommand(),
	)
	return cmd
}

func buildCardService(cmd *cobra.Command, rt *runtimeState) (*cards.Service, *cards.Registry, error) {
	log, err := buildLogger(rt)
	if err != nil {
		return nil, nil, err
	}
	registry, err := openRegistry(rt)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(rt)
	if err != nil {
		return nil, nil, err
	}
	fleetClient, err := buildFleetClient(rt)
	if err != nil {
		return nil, nil, err
	}
	manager, err := buildChain(rt, st, log)
	if err != nil {
		return nil, nil, err
	}
	return cards.NewService(registry, fleetClient, manager, log), registry, nil
}

func newCardsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cards in the local registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			registry, err := openRegistry(rt)
			if err != nil {
				return err
			}
			local, err := registry.List()
			if err != nil {
				return err
			}

			list := make([]cards.Card, 0, len(local))
			for _, c := range local {
				list = append(list, c)
			}
			if format == output.FormatTable {
				return output.WriteCardTable(rt.Writer(), list)
			}
			return output.WriteObject(rt.Writer(), format, list)
		},
	}
}

func newCardsAddCommand() *cobra.Command {
	var name, iccid, expiry string

	cmd := &cobra.Command{
		Use:   "add <card-number>",
		Short: "Add a card and announce it to the fleet directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			svc, _, err := buildCardService(cmd, rt)
			if err != nil {
				return err
			}
			card, err := svc.Add(cmd.Context(), cards.Card{Number: args[0], Name: name, ICCID: iccid, Expiry: expiry})
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.Writer(), "Card %s added\n", card.Number)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the card")
	cmd.Flags().StringVar(&iccid, "iccid", "", "ICCID printed on the card")
	cmd.Flags().StringVar(&expiry, "expire", "", "Expiry date printed on the card")
	return cmd
}

func newCardsRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <card-number> <name>",
		Short: "Rename a card locally and in the fleet directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			svc, _, err := buildCardService(cmd, rt)
			if err != nil {
				return err
			}
			card, err := svc.Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.Writer(), "Card %s renamed to %q\n", card.Number, card.Name)
			return nil
		},
	}
}

func newCardsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <card-number>",
		Short: "Remove a card locally and from the fleet directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			svc, _, err := buildCardService(cmd, rt)
			if err != nil {
				return err
			}
			if err := svc.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(rt.Writer(), "Card %s removed\n", args[0])
			return nil
		},
	}
}

func newCardsSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local registry with the fleet directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			log, err := buildLogger(rt)
			if err != nil {
				return err
			}
			registry, err := openRegistry(rt)
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

			summary, err := reconcile.NewEngine(fleetClient, manager, registry, log).Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.Writer(), "Sync complete: %d imported, %d updated\n", summary.Imported, summary.Updated)
			return nil
		},
	}
}
