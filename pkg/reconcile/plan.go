// Package reconcile aligns the local card registry with the fleet
// directory. The diff itself is a pure function over two snapshots; the
// engine around it fetches the remote snapshot, applies the plan to local
// storage, and guarantees a single in-flight pass with late callers
// attaching to the shared result.
package reconcile

import (
	"github.com/fleetware/cardbridge/pkg/cards"
)

// Plan is the merge plan computed from a local and a remote snapshot.
type Plan struct {
	// Missing holds entries present remotely but absent locally. They are
	// imported into local storage without being propagated back to the
	// remote, which stays the writer's responsibility.
	Missing map[string]cards.Card
	// Updated holds entries present on both sides whose remote identity
	// metadata differs from local. The remote is authoritative for
	// identity; a reader-observed local ICCID survives only a remote
	// blank.
	Updated map[string]cards.Card
}

// Empty reports whether the plan changes nothing. Reconciliation is
// idempotent: computing a plan over post-merge state yields an empty plan.
func (p Plan) Empty() bool {
	return len(p.Missing) == 0 && len(p.Updated) == 0
}

// Compute diffs the two snapshots, both keyed by card number. Entries only
// present locally are left untouched: pushing them to the remote belongs to
// the explicit create/update/delete operations, not to reconciliation.
func Compute(local, remote map[string]cards.Card) Plan {
	plan := Plan{
		Missing: map[string]cards.Card{},
		Updated: map[string]cards.Card{},
	}
	for number, remoteCard := range remote {
		localCard, ok := local[number]
		if !ok {
			plan.Missing[number] = remoteCard
			continue
		}
		merged := mergeCard(localCard, remoteCard)
		if merged != localCard {
			plan.Updated[number] = merged
		}
	}
	return plan
}

func mergeCard(local, remote cards.Card) cards.Card {
	merged := local
	merged.Name = remote.Name
	merged.RemoteID = remote.RemoteID
	if remote.ICCID != "" {
		merged.ICCID = remote.ICCID
	}
	return merged
}
