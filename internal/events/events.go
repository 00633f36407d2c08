// Package events carries till session changes to live views and to the
// external audit log. Publishing is fire-and-forget from the ledger's point of
// view: a failed publish never undoes a recorded operation.
package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const TypeSessionChanged = "session.changed"

// SessionChanged is emitted after every accepted ledger mutation.
type SessionChanged struct {
	Type      string              `json:"type"`
	TillID    string              `json:"till_id"`
	SessionID uuid.UUID           `json:"session_id"`
	Operation model.OperationType `json:"operation"`
	Seq       int                 `json:"seq"`
	Snapshot  model.TillSession   `json:"snapshot"`
	At        time.Time           `json:"at"`
}

// NewSessionChanged builds the event for the last operation of snap.
func NewSessionChanged(snap model.TillSession, at time.Time) SessionChanged {
	ev := SessionChanged{
		Type:      TypeSessionChanged,
		TillID:    snap.TillID,
		SessionID: snap.ID,
		Snapshot:  snap,
		At:        at.UTC(),
	}
	if n := len(snap.Operations); n > 0 {
		ev.Operation = snap.Operations[n-1].Type
		ev.Seq = snap.Operations[n-1].Seq
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev SessionChanged) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, SessionChanged) error { return nil }

// Fanout publishes to every publisher concurrently and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev SessionChanged) error {
	errs := make([]error, len(f))
	var g errgroup.Group
	for i, p := range f {
		i, p := i, p
		g.Go(func() error {
			errs[i] = p.Publish(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// RoutingKey is caja.<till>.<operation>. Dots in the till id would split the
// topic, so they are replaced.
func RoutingKey(ev SessionChanged) string {
	till := strings.ReplaceAll(ev.TillID, ".", "_")
	op := string(ev.Operation)
	if op == "" {
		op = "unknown"
	}
	return "caja." + till + "." + op
}
