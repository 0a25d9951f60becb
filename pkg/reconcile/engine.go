package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fleetware/cardbridge/pkg/cards"
	"github.com/fleetware/cardbridge/pkg/chain"
	"github.com/fleetware/cardbridge/pkg/fleet"
	"github.com/fleetware/cardbridge/pkg/telemetry"
)

// Summary reports what a reconciliation pass changed.
type Summary struct {
	Imported int
	Updated  int
}

type Engine struct {
	fleet    *fleet.Client
	chain    *chain.Manager
	registry *cards.Registry
	log      *zap.SugaredLogger
	metrics  *telemetry.Metrics
	group    singleflight.Group
}

func NewEngine(fleetClient *fleet.Client, chainManager *chain.Manager, registry *cards.Registry, log *zap.SugaredLogger) *Engine {
	return &Engine{fleet: fleetClient, chain: chainManager, registry: registry, log: log}
}

func (e *Engine) WithMetrics(metrics *telemetry.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// Sync runs one reconciliation pass. Only one pass is in flight at a time:
// a call arriving while one runs attaches to the in-flight result instead
// of starting a duplicate.
func (e *Engine) Sync(ctx context.Context) (Summary, error) {
	result, err, _ := e.group.Do("sync", func() (any, error) {
		return e.sync(ctx)
	})
	if err != nil {
		return Summary{}, err
	}
	return result.(Summary), nil
}

func (e *Engine) sync(ctx context.Context) (Summary, error) {
	start := time.Now()

	var remoteCards []fleet.Card
	err := e.chain.DoFleet(ctx, func(token, companyID string) error {
		listed, err := e.fleet.ListCards(ctx, token, companyID)
		if err != nil {
			return err
		}
		remoteCards = listed
		return nil
	})
	if err != nil {
		e.metrics.ReconcileRun("error")
		return Summary{}, err
	}

	local, err := e.registry.List()
	if err != nil {
		e.metrics.ReconcileRun("error")
		return Summary{}, err
	}

	plan := Compute(local, remoteSnapshot(remoteCards))
	for _, card := range plan.Missing {
		if err := e.registry.Upsert(card); err != nil {
			e.metrics.ReconcileRun("error")
			return Summary{}, err
		}
	}
	for _, card := range plan.Updated {
		if err := e.registry.Upsert(card); err != nil {
			e.metrics.ReconcileRun("error")
			return Summary{}, err
		}
	}

	summary := Summary{Imported: len(plan.Missing), Updated: len(plan.Updated)}
	e.metrics.ReconcileRun("ok")
	e.metrics.ReconcileCards("imported", summary.Imported)
	e.metrics.ReconcileCards("updated", summary.Updated)
	e.metrics.ObserveReconcileDuration(time.Since(start).Seconds())
	if !plan.Empty() {
		e.log.Infow("reconciled card registry", "imported", summary.Imported, "updated", summary.Updated)
	}
	return summary, nil
}

// remoteSnapshot keys the fleet directory by card number in the local
// record shape.
func remoteSnapshot(remote []fleet.Card) map[string]cards.Card {
	snapshot := make(map[string]cards.Card, len(remote))
	for _, rc := range remote {
		if rc.CardNumber == "" {
			continue
		}
		snapshot[rc.CardNumber] = cards.Card{
			Number:   rc.CardNumber,
			Name:     rc.Name,
			ICCID:    rc.ICCID,
			RemoteID: rc.ID,
		}
	}
	return snapshot
}
