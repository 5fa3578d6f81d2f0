package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/timelock/internal/ir"
)

// EventKind names an event in the log.
type EventKind string

const (
	EventCallScheduled    EventKind = "CallScheduled"
	EventCallSalt         EventKind = "CallSalt"
	EventCancelled        EventKind = "Cancelled"
	EventCallExecuted     EventKind = "CallExecuted"
	EventMinDelayChange   EventKind = "MinDelayChange"
	EventRoleGranted      EventKind = "RoleGranted"
	EventRoleRevoked      EventKind = "RoleRevoked"
	EventRoleAdminChanged EventKind = "RoleAdminChanged"
)

// NoCallIndex marks events that are not tied to one call of a batch.
const NoCallIndex = -1

// Event is one row of the append-only event log.
type Event struct {
	Seq           int64          `json:"seq"`
	Kind          EventKind      `json:"kind"`
	OperationID   ir.OperationID `json:"operation_id"`
	CallIndex     int            `json:"call_index"`
	Timestamp     uint64         `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
	Payload       ir.IRObject    `json:"payload"`
}

// EventFilter narrows ReadEvents. Zero values match everything.
type EventFilter struct {
	OperationID ir.OperationID
	Kinds       []EventKind
	AfterSeq    int64
	Limit       int
}

// AppendEvent writes ev and returns its assigned seq. ev.Seq is ignored.
// The payload is stored as canonical JSON so the log is byte-stable.
func (t *Tx) AppendEvent(ctx context.Context, ev Event) (int64, error) {
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	ts, err := toSQLInt(ev.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	opID := ""
	if !ev.OperationID.IsZero() {
		opID = ev.OperationID.String()
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO events (kind, operation_id, call_index, timestamp, correlation_id, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(ev.Kind), opID, ev.CallIndex, ts, ev.CorrelationID, payload)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: last insert id: %w", err)
	}
	return seq, nil
}

// ReadEvents returns events matching filter ordered by seq.
// Returns an empty slice (not nil) if nothing matches.
func (t *Tx) ReadEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, filter.AfterSeq)
	}
	if !filter.OperationID.IsZero() {
		where = append(where, "operation_id = ?")
		args = append(args, filter.OperationID.String())
	}
	if len(filter.Kinds) > 0 {
		marks := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "kind IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT seq, kind, operation_id, call_index, timestamp, correlation_id, payload FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev      Event
			kind    string
			opID    string
			ts      int64
			payload string
		)
		if err := rows.Scan(&ev.Seq, &kind, &opID, &ev.CallIndex, &ts, &ev.CorrelationID, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		ev.Timestamp = uint64(ts)
		if ev.OperationID, err = ir.ParseOperationID(opID); err != nil {
			return nil, fmt.Errorf("scan event %d: %w", ev.Seq, err)
		}
		if ev.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, fmt.Errorf("scan event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadEvents is a convenience wrapper running Tx.ReadEvents in a View.
func (s *Store) ReadEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	var events []Event
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		events, err = tx.ReadEvents(ctx, filter)
		return err
	})
	return events, err
}
