package cards

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleetware/cardbridge/pkg/chain"
	"github.com/fleetware/cardbridge/pkg/fleet"
	"github.com/fleetware/cardbridge/pkg/httperr"
)

// Service applies card mutations to the local registry and mirrors
// them to the fleet directory when a credential chain is available.
// Remote failures never roll back the local change; the next
// reconciliation run converges the two sides.
type Service struct {
	registry *Registry
	fleet    *fleet.Client
	chain    *chain.Manager
	log      *zap.SugaredLogger
}

func NewService(registry *Registry, fleetClient *fleet.Client, chainManager *chain.Manager, log *zap.SugaredLogger) *Service {
	return &Service{
		registry: registry,
		fleet:    fleetClient,
		chain:    chainManager,
		log:      log,
	}
}

// Add records a new card locally and creates it in the fleet directory.
func (s *Service) Add(ctx context.Context, card Card) (Card, error) {
	if err := s.registry.Upsert(card); err != nil {
		return Card{}, err
	}

	var created *fleet.Card
	err := s.chain.DoFleet(ctx, func(token, companyID string) error {
		var err error
		created, err = s.fleet.CreateCard(ctx, token, companyID, fleet.Card{
			CardNumber: card.Number,
			Name:       card.Name,
			ICCID:      card.ICCID,
		})
		return err
	})
	switch {
	case httperr.IsConflict(err):
		// Already known remotely; reconciliation picks up its id.
		s.log.Infow("card already exists in fleet directory", "card", card.Number)
	case err != nil:
		s.log.Warnw("card saved locally but not pushed to fleet", "card", card.Number, "error", err)
		return card, nil
	default:
		if created != nil && created.ID != "" {
			card.RemoteID = created.ID
			if err := s.registry.Upsert(card); err != nil {
				return Card{}, err
			}
		}
	}
	return card, nil
}

// Rename updates the display name locally and remotely.
func (s *Service) Rename(ctx context.Context, number, name string) (Card, error) {
	card, ok, err := s.registry.Get(number)
	if err != nil {
		return Card{}, err
	}
	if !ok {
		return Card{}, fmt.Errorf("card %q is not in the local registry", number)
	}

	card.Name = name
	if err := s.registry.Upsert(card); err != nil {
		return Card{}, err
	}

	if card.RemoteID == "" {
		s.log.Debugw("card has no remote id yet, rename stays local", "card", number)
		return card, nil
	}
	err = s.chain.DoFleet(ctx, func(token, companyID string) error {
		_, err := s.fleet.UpdateCard(ctx, token, companyID, fleet.Card{
			ID:         card.RemoteID,
			CardNumber: card.Number,
			Name:       card.Name,
			ICCID:      card.ICCID,
		})
		return err
	})
	if err != nil {
		s.log.Warnw("rename saved locally but not pushed to fleet", "card", number, "error", err)
	}
	return card, nil
}

// Remove deletes the card locally and, when it is linked, remotely.
func (s *Service) Remove(ctx context.Context, number string) error {
	card, ok, err := s.registry.Get(number)
	if err != nil {
		return err
	}
	if err := s.registry.Remove(number); err != nil {
		return err
	}
	if !ok || card.RemoteID == "" {
		return nil
	}

	err = s.chain.DoFleet(ctx, func(token, companyID string) error {
		return s.fleet.DeleteCard(ctx, token, companyID, card.RemoteID)
	})
	if httperr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		s.log.Warnw("card removed locally but not from fleet", "card", number, "error", err)
	}
	return nil
}
