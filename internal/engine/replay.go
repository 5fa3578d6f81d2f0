package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

// Snapshot is the timelock state reconstructed from the event log.
type Snapshot struct {
	// Operations maps every non-Unset id to its ledger timestamp.
	Operations map[ir.OperationID]uint64
	MinDelay   uint64
	Roles      map[ir.Role][]ir.Principal
	// Admins maps each role with an explicit admin to that admin role.
	Admins map[ir.Role]ir.Role
}

// ReplayLedger folds events, in seq order, into a Snapshot.
//
// The event log alone is enough to reconstruct the ledger: CallScheduled
// carries the delay and the clock reading it was scheduled at, Cancelled
// and CallExecuted move the id to Unset and Done, MinDelayChange carries
// the new value, the role events carry membership changes and
// RoleAdminChanged carries the new admin role.
func ReplayLedger(events []store.Event) (*Snapshot, error) {
	snap := &Snapshot{
		Operations: make(map[ir.OperationID]uint64),
		Admins:     make(map[ir.Role]ir.Role),
	}
	members := make(map[ir.Role]map[ir.Principal]bool)

	for _, ev := range events {
		switch ev.Kind {
		case store.EventCallScheduled:
			delay, err := payloadInt(ev, "delay")
			if err != nil {
				return nil, err
			}
			snap.Operations[ev.OperationID] = ev.Timestamp + delay
		case store.EventCancelled:
			delete(snap.Operations, ev.OperationID)
		case store.EventCallExecuted:
			snap.Operations[ev.OperationID] = ir.DoneTimestamp
		case store.EventMinDelayChange:
			d, err := payloadInt(ev, "new_duration")
			if err != nil {
				return nil, err
			}
			snap.MinDelay = d
		case store.EventRoleAdminChanged:
			role, _ := ev.Payload["role"].(ir.IRString)
			admin, _ := ev.Payload["new_admin"].(ir.IRString)
			if role == "" || admin == "" {
				return nil, fmt.Errorf("event %d: %s missing role or new_admin", ev.Seq, ev.Kind)
			}
			snap.Admins[ir.Role(role)] = ir.Role(admin)
		case store.EventRoleGranted, store.EventRoleRevoked:
			role, _ := ev.Payload["role"].(ir.IRString)
			account, _ := ev.Payload["account"].(ir.IRString)
			if role == "" || account == "" {
				return nil, fmt.Errorf("event %d: %s missing role or account", ev.Seq, ev.Kind)
			}
			set := members[ir.Role(role)]
			if set == nil {
				set = make(map[ir.Principal]bool)
				members[ir.Role(role)] = set
			}
			if ev.Kind == store.EventRoleGranted {
				set[ir.Principal(account)] = true
			} else {
				delete(set, ir.Principal(account))
			}
		}
	}

	snap.Roles = make(map[ir.Role][]ir.Principal, len(members))
	for role, set := range members {
		if len(set) == 0 {
			continue
		}
		list := make([]ir.Principal, 0, len(set))
		for p := range set {
			list = append(list, p)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		snap.Roles[role] = list
	}
	return snap, nil
}

func payloadInt(ev store.Event, key string) (uint64, error) {
	v, ok := ev.Payload[key].(ir.IRInt)
	if !ok || v < 0 {
		return 0, fmt.Errorf("event %d: %s payload %q is not a non-negative integer", ev.Seq, ev.Kind, key)
	}
	return uint64(v), nil
}

// ReplayReport compares a replayed Snapshot with the live store.
type ReplayReport struct {
	Events     int      `json:"events"`
	Operations int      `json:"operations"`
	Mismatches []string `json:"mismatches"`
}

// OK reports whether replay matched the live state exactly.
func (r *ReplayReport) OK() bool {
	return len(r.Mismatches) == 0
}

// VerifyReplay rebuilds state from the event log and compares it with the
// live ledger, min_delay, role members and role admins.
func (t *Timelock) VerifyReplay(ctx context.Context) (*ReplayReport, error) {
	report := &ReplayReport{Mismatches: []string{}}
	err := t.view(ctx, func(tx *store.Tx) error {
		events, err := tx.ReadEvents(ctx, store.EventFilter{})
		if err != nil {
			return err
		}
		report.Events = len(events)

		snap, err := ReplayLedger(events)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}

		records, err := tx.ListOperations(ctx)
		if err != nil {
			return err
		}
		report.Operations = len(records)
		live := make(map[ir.OperationID]uint64, len(records))
		for _, r := range records {
			live[r.ID] = r.ReadyTimestamp
			if got, ok := snap.Operations[r.ID]; !ok {
				report.add("operation %s: live %d, missing from replay", r.ID, r.ReadyTimestamp)
			} else if got != r.ReadyTimestamp {
				report.add("operation %s: live %d, replay %d", r.ID, r.ReadyTimestamp, got)
			}
		}
		ids := make([]ir.OperationID, 0, len(snap.Operations))
		for id := range snap.Operations {
			if _, ok := live[id]; !ok {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		for _, id := range ids {
			report.add("operation %s: replay %d, missing from live ledger", id, snap.Operations[id])
		}

		minDelay, err := tx.MinDelay(ctx)
		if err != nil {
			return err
		}
		if minDelay != snap.MinDelay {
			report.add("min_delay: live %d, replay %d", minDelay, snap.MinDelay)
		}

		for _, role := range []ir.Role{ir.RoleDefaultAdmin, ir.RoleProposer, ir.RoleCanceller, ir.RoleExecutor} {
			members, err := tx.Members(ctx, role)
			if err != nil {
				return err
			}
			if fmt.Sprint(members) != fmt.Sprint(nonNil(snap.Roles[role])) {
				report.add("role %s: live %v, replay %v", role, members, nonNil(snap.Roles[role]))
			}
			admin, ok, err := tx.RoleAdmin(ctx, role)
			if err != nil {
				return err
			}
			if replayed, replayedOK := snap.Admins[role]; ok != replayedOK || admin != replayed {
				report.add("role %s admin: live %q, replay %q", role, admin, replayed)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *ReplayReport) add(format string, args ...any) {
	r.Mismatches = append(r.Mismatches, fmt.Sprintf(format, args...))
}

func nonNil(p []ir.Principal) []ir.Principal {
	if p == nil {
		return []ir.Principal{}
	}
	return p
}
