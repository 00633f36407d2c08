package ledger

import (
	"fmt"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Effect returns the signed change an operation makes to the theoretical
// balance. Counts and the closing record never move it; card refunds neither.
func Effect(op model.CashOperation) decimal.Decimal {
	switch op.Type {
	case model.OpOpening:
		return op.Amount
	case model.OpReturnRefund:
		if op.PaymentChannel != nil && *op.PaymentChannel == model.ChannelCard {
			return decimal.Zero
		}
		return op.Amount
	case model.OpWithdrawal, model.OpPersonalConsumption:
		return op.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// Replay recomputes the theoretical balance from scratch. The opening record
// contributes the opening float.
func Replay(ops []model.CashOperation) decimal.Decimal {
	balance := decimal.Zero
	for _, op := range ops {
		balance = balance.Add(Effect(op))
	}
	return balance
}

// Session is the till session aggregate. AppendOperation is its only mutator.
type Session struct {
	s model.TillSession
}

func newSession(id uuid.UUID, tillID string, openedBy uuid.UUID, openingFloat decimal.Decimal, openedAt time.Time) *Session {
	return &Session{s: model.TillSession{
		ID:                 id,
		TillID:             tillID,
		OpenedBy:           openedBy,
		OpeningFloat:       openingFloat,
		TheoreticalBalance: decimal.Zero,
		Status:             model.SessionOpen,
		OpenedAt:           openedAt,
	}}
}

// RestoreSession rebuilds an aggregate from a persisted snapshot and checks
// that the stored balance matches a full replay.
func RestoreSession(snap model.TillSession) (*Session, error) {
	s := &Session{s: cloneSession(snap)}
	for i, op := range s.s.Operations {
		if op.Seq != i+1 {
			return nil, fmt.Errorf("restore session %s: operation %s has seq %d, want %d", snap.ID, op.ID, op.Seq, i+1)
		}
	}
	if replay := Replay(s.s.Operations); !replay.Equal(s.s.TheoreticalBalance) {
		return nil, fmt.Errorf("restore session %s: stored balance %s != replay %s",
			snap.ID, s.s.TheoreticalBalance.StringFixed(2), replay.StringFixed(2))
	}
	return s, nil
}

func (s *Session) ID() uuid.UUID                       { return s.s.ID }
func (s *Session) Status() model.SessionStatus         { return s.s.Status }
func (s *Session) TheoreticalBalance() decimal.Decimal { return s.s.TheoreticalBalance }
func (s *Session) Len() int                            { return len(s.s.Operations) }

// AppendOperation appends op in O(1), assigning its sequence number and the
// running balance after it.
func (s *Session) AppendOperation(op model.CashOperation) (model.CashOperation, error) {
	if s.s.Status != model.SessionOpen {
		return model.CashOperation{}, ErrSessionClosed
	}
	if op.Type == model.OpOpening && len(s.s.Operations) > 0 {
		return model.CashOperation{}, fmt.Errorf("%w: opening must be the first operation", ErrInvalidAmount)
	}
	if op.Amount.IsNegative() {
		return model.CashOperation{}, ErrInvalidAmount
	}
	op.SessionID = s.s.ID
	op.Seq = len(s.s.Operations) + 1
	s.s.TheoreticalBalance = s.s.TheoreticalBalance.Add(Effect(op))
	op.BalanceAfter = s.s.TheoreticalBalance
	s.s.Operations = append(s.s.Operations, op)
	return op, nil
}

// freeze marks the session closed. Called by the controller right after the
// closing record was appended.
func (s *Session) freeze(closedAt time.Time, closedBy uuid.UUID, cashCount, cardCount decimal.Decimal, r Reconciliation, note string) {
	counted := r.Counted
	disc := r.Discrepancy
	pct := r.Percent
	class := string(r.Classification)
	s.s.Status = model.SessionClosed
	s.s.ClosedAt = &closedAt
	s.s.ClosedBy = &closedBy
	s.s.CountedCash = &cashCount
	s.s.CountedCard = &cardCount
	s.s.ClosingCount = &counted
	s.s.ClosingDiscrepancy = &disc
	s.s.ClosingDiscrepancyPct = &pct
	s.s.ClosingClassification = &class
	s.s.ClosingSignificant = r.Significant
	if note != "" {
		s.s.ClosingNote = &note
	}
}

// OperationsSince returns a copy of the operations created at or after t.
func (s *Session) OperationsSince(t time.Time) []model.CashOperation {
	return OperationsSince(s.s.Operations, t)
}

// TotalByType sums the stored amounts of one operation type.
func (s *Session) TotalByType(t model.OperationType) decimal.Decimal {
	return TotalByType(s.s.Operations, t)
}

// Snapshot returns a deep copy that shares nothing with the aggregate.
func (s *Session) Snapshot() model.TillSession {
	return cloneSession(s.s)
}

// OperationsSince filters ops created at or after t, keeping append order.
func OperationsSince(ops []model.CashOperation, t time.Time) []model.CashOperation {
	out := make([]model.CashOperation, 0, len(ops))
	for _, op := range ops {
		if !op.CreatedAt.Before(t) {
			out = append(out, cloneOperation(op))
		}
	}
	return out
}

// TotalByType sums the amounts of every operation of type t.
func TotalByType(ops []model.CashOperation, t model.OperationType) decimal.Decimal {
	total := decimal.Zero
	for _, op := range ops {
		if op.Type == t {
			total = total.Add(op.Amount)
		}
	}
	return total
}

func cloneSession(in model.TillSession) model.TillSession {
	out := in
	out.ClosedAt = clonePtr(in.ClosedAt)
	out.ClosedBy = clonePtr(in.ClosedBy)
	out.CountedCash = clonePtr(in.CountedCash)
	out.CountedCard = clonePtr(in.CountedCard)
	out.ClosingCount = clonePtr(in.ClosingCount)
	out.ClosingDiscrepancy = clonePtr(in.ClosingDiscrepancy)
	out.ClosingDiscrepancyPct = clonePtr(in.ClosingDiscrepancyPct)
	out.ClosingClassification = clonePtr(in.ClosingClassification)
	out.ClosingNote = clonePtr(in.ClosingNote)
	out.Operations = nil
	if in.Operations != nil {
		out.Operations = make([]model.CashOperation, len(in.Operations))
		for i, op := range in.Operations {
			out.Operations[i] = cloneOperation(op)
		}
	}
	return out
}

func cloneOperation(in model.CashOperation) model.CashOperation {
	out := in
	out.RelatedOrderID = clonePtr(in.RelatedOrderID)
	out.PaymentChannel = clonePtr(in.PaymentChannel)
	out.Discrepancy = clonePtr(in.Discrepancy)
	out.Classification = clonePtr(in.Classification)
	if in.Denominations != nil {
		out.Denominations = append([]byte(nil), in.Denominations...)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
