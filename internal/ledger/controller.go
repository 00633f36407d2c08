package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ControllerConfig holds the collaborators of a till controller.
type ControllerConfig struct {
	TillID            string
	Authorizer        Authorizer      // nil = DefaultRolePolicy
	VarianceThreshold decimal.Decimal // zero = DefaultVarianceThreshold
	Clock             func() time.Time
	NewID             func() uuid.UUID
}

// Controller is the session lifecycle state machine of one till:
// CLOSED → OPEN → CLOSED. It is the single writer of the till's sessions.
// Every public method runs its check-and-mutate under one lock, so two
// mutations never interleave and readers only see complete snapshots.
type Controller struct {
	mu        sync.Mutex
	tillID    string
	auth      Authorizer
	threshold decimal.Decimal
	now       func() time.Time
	newID     func() uuid.UUID

	current *Session // open session, nil while the till is closed
	last    *Session // most recent session, open or closed
	pending *pendingClose
}

type pendingClose struct {
	actor   Actor
	cash    decimal.Decimal
	card    decimal.Decimal
	note    string
	ledgerN int
	rec     Reconciliation
}

// ReturnInput describes a refund paid back out of (or into) the till.
type ReturnInput struct {
	Amount  decimal.Decimal
	Note    string
	OrderID *string
	Channel model.PaymentChannel // empty = cash
}

// CountInput is either a denomination breakdown or a direct amount.
type CountInput struct {
	Denominations []Denomination
	Amount        *decimal.Decimal
}

// CloseInput is the closing declaration.
type CloseInput struct {
	CountedCash decimal.Decimal
	CountedCard decimal.Decimal
	Note        string
}

// CloseResult carries the frozen (or, on warning, still open) session and the
// binding reconciliation.
type CloseResult struct {
	Session        model.TillSession
	Reconciliation Reconciliation
}

// NewController returns a controller for one till with no session open.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Authorizer == nil {
		cfg.Authorizer = DefaultRolePolicy()
	}
	if !cfg.VarianceThreshold.IsPositive() {
		cfg.VarianceThreshold = DefaultVarianceThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.New
	}
	return &Controller{
		tillID:    cfg.TillID,
		auth:      cfg.Authorizer,
		threshold: cfg.VarianceThreshold,
		now:       cfg.Clock,
		newID:     cfg.NewID,
	}
}

func (c *Controller) TillID() string { return c.tillID }

// Restore seeds the controller with the last persisted session of the till.
func (c *Controller) Restore(snap model.TillSession) error {
	if snap.TillID != c.tillID {
		return fmt.Errorf("restore: session %s belongs to till %q, not %q", snap.ID, snap.TillID, c.tillID)
	}
	s, err := RestoreSession(snap)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s
	c.current = nil
	if s.Status() == model.SessionOpen {
		c.current = s
	}
	c.pending = nil
	return nil
}

// Current returns a snapshot of the open session.
func (c *Controller) Current() (model.TillSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return model.TillSession{}, false
	}
	return c.current.Snapshot(), true
}

// Last returns a snapshot of the most recent session, open or closed.
func (c *Controller) Last() (model.TillSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return model.TillSession{}, false
	}
	return c.last.Snapshot(), true
}

// PendingClose reports a close waiting for ConfirmClose.
func (c *Controller) PendingClose() (Reconciliation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Reconciliation{}, false
	}
	return c.pending.rec, true
}

// Open starts a new session with the given opening float.
func (c *Controller) Open(actor Actor, openingFloat decimal.Decimal, note string) (model.TillSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return model.TillSession{}, ErrAlreadyOpen
	}
	if openingFloat.IsNegative() || !isMoney(openingFloat) {
		return model.TillSession{}, fmt.Errorf("%w: opening float %s", ErrInvalidAmount, openingFloat.String())
	}

	at := c.timestamp()
	s := newSession(c.newID(), c.tillID, actor.ID, openingFloat, at)
	if _, err := s.AppendOperation(c.operation(model.OpOpening, actor, openingFloat, note, at)); err != nil {
		return model.TillSession{}, err
	}
	c.current = s
	c.last = s
	c.pending = nil
	return s.Snapshot(), nil
}

// Withdraw takes cash out of the drawer. Requires ActionWithdraw and a note;
// the till may never go below zero.
func (c *Controller) Withdraw(actor Actor, amount decimal.Decimal, note string) (model.TillSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return model.TillSession{}, ErrNoOpenSession
	}
	if !c.auth.CanPerform(actor, ActionWithdraw) {
		return model.TillSession{}, ErrUnauthorized
	}
	if err := checkOutflow(c.current, amount); err != nil {
		return model.TillSession{}, err
	}
	if strings.TrimSpace(note) == "" {
		return model.TillSession{}, ErrNoteRequired
	}
	return c.append(c.operation(model.OpWithdrawal, actor, amount, note, c.timestamp()))
}

// RecordPersonalConsumption records goods or cash taken by staff. Any
// operator may record it.
func (c *Controller) RecordPersonalConsumption(actor Actor, amount decimal.Decimal, note string) (model.TillSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return model.TillSession{}, ErrNoOpenSession
	}
	if err := checkOutflow(c.current, amount); err != nil {
		return model.TillSession{}, err
	}
	return c.append(c.operation(model.OpPersonalConsumption, actor, amount, note, c.timestamp()))
}

// RecordReturn records a customer refund. Cash refunds raise the theoretical
// balance; card refunds are recorded without touching it.
func (c *Controller) RecordReturn(actor Actor, in ReturnInput) (model.TillSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return model.TillSession{}, ErrNoOpenSession
	}
	if !in.Amount.IsPositive() || !isMoney(in.Amount) {
		return model.TillSession{}, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount.String())
	}
	if strings.TrimSpace(in.Note) == "" {
		return model.TillSession{}, ErrNoteRequired
	}
	channel := in.Channel
	if channel == "" {
		channel = model.ChannelCash
	}
	if channel != model.ChannelCash && channel != model.ChannelCard {
		return model.TillSession{}, fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}

	op := c.operation(model.OpReturnRefund, actor, in.Amount, in.Note, c.timestamp())
	op.PaymentChannel = &channel
	if in.OrderID != nil && *in.OrderID != "" {
		id := *in.OrderID
		op.RelatedOrderID = &id
	}
	return c.append(op)
}

// CountCash records an informational mid-shift count. It never moves the
// theoretical balance.
func (c *Controller) CountCash(actor Actor, in CountInput) (model.TillSession, Reconciliation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return model.TillSession{}, Reconciliation{}, ErrNoOpenSession
	}
	counted, breakdown, err := countedTotal(in)
	if err != nil {
		return model.TillSession{}, Reconciliation{}, err
	}

	rec := Reconcile(c.current.TheoreticalBalance(), counted, c.threshold)
	op := c.operation(model.OpMidShiftCount, actor, counted, "", c.timestamp())
	withReconciliation(&op, rec)
	op.Denominations = breakdown

	snap, err := c.append(op)
	if err != nil {
		return model.TillSession{}, Reconciliation{}, err
	}
	return snap, rec, nil
}

// Close reconciles the closing declaration against the theoretical balance
// and freezes the session. A significant variance does not close: it returns
// *SignificantVarianceWarning and waits for ConfirmClose.
func (c *Controller) Close(actor Actor, in CloseInput) (CloseResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return CloseResult{}, ErrNoOpenSession
	}
	if !c.auth.CanPerform(actor, ActionClose) {
		return CloseResult{}, ErrUnauthorized
	}
	for _, v := range []decimal.Decimal{in.CountedCash, in.CountedCard} {
		if v.IsNegative() || !isMoney(v) {
			return CloseResult{}, fmt.Errorf("%w: counted %s", ErrInvalidAmount, v.String())
		}
	}

	rec := Reconcile(c.current.TheoreticalBalance(), in.CountedCash.Add(in.CountedCard), c.threshold)
	if rec.Significant {
		c.pending = &pendingClose{
			actor:   actor,
			cash:    in.CountedCash,
			card:    in.CountedCard,
			note:    in.Note,
			ledgerN: c.current.Len(),
			rec:     rec,
		}
		return CloseResult{Session: c.current.Snapshot(), Reconciliation: rec},
			&SignificantVarianceWarning{Reconciliation: rec, Threshold: c.threshold.StringFixed(2)}
	}
	return c.finishClose(actor, in.CountedCash, in.CountedCard, in.Note, rec)
}

// ConfirmClose completes a close held back by a significant variance. The
// confirming operator needs ActionReconcile and must leave an observation.
func (c *Controller) ConfirmClose(actor Actor, note string) (CloseResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return CloseResult{}, ErrNoOpenSession
	}
	if c.pending == nil {
		return CloseResult{}, ErrNoPendingClose
	}
	if c.pending.ledgerN != c.current.Len() {
		c.pending = nil
		return CloseResult{}, fmt.Errorf("%w: ledger changed since close was requested", ErrNoPendingClose)
	}
	if !c.auth.CanPerform(actor, ActionReconcile) {
		return CloseResult{}, ErrUnauthorized
	}
	if strings.TrimSpace(note) == "" {
		return CloseResult{}, ErrNoteRequired
	}

	p := c.pending
	joined := note
	if strings.TrimSpace(p.note) != "" {
		joined = p.note + "; " + note
	}
	return c.finishClose(actor, p.cash, p.card, joined, p.rec)
}

// CancelClose drops a close waiting for confirmation.
func (c *Controller) CancelClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	had := c.pending != nil
	c.pending = nil
	return had
}

func (c *Controller) finishClose(actor Actor, cash, card decimal.Decimal, note string, rec Reconciliation) (CloseResult, error) {
	at := c.timestamp()
	op := c.operation(model.OpClosing, actor, rec.Counted, note, at)
	withReconciliation(&op, rec)
	if _, err := c.current.AppendOperation(op); err != nil {
		return CloseResult{}, err
	}
	c.current.freeze(at, actor.ID, cash, card, rec, note)
	snap := c.current.Snapshot()
	c.current = nil
	c.pending = nil
	return CloseResult{Session: snap, Reconciliation: rec}, nil
}

// append must be called with the lock held and a session open.
func (c *Controller) append(op model.CashOperation) (model.TillSession, error) {
	if _, err := c.current.AppendOperation(op); err != nil {
		return model.TillSession{}, err
	}
	c.pending = nil
	return c.current.Snapshot(), nil
}

func (c *Controller) operation(t model.OperationType, actor Actor, amount decimal.Decimal, note string, at time.Time) model.CashOperation {
	return model.CashOperation{
		ID:        c.newID(),
		Type:      t,
		Amount:    amount,
		ActorID:   actor.ID,
		Note:      strings.TrimSpace(note),
		CreatedAt: at,
	}
}

// timestamp is truncated to microseconds so it survives a Postgres round trip.
func (c *Controller) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

func checkOutflow(s *Session, amount decimal.Decimal) error {
	if !amount.IsPositive() || !isMoney(amount) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	if amount.GreaterThan(s.TheoreticalBalance()) {
		return fmt.Errorf("%w: %s > %s", ErrInsufficientBalance,
			amount.StringFixed(2), s.TheoreticalBalance().StringFixed(2))
	}
	return nil
}

func countedTotal(in CountInput) (decimal.Decimal, []byte, error) {
	if len(in.Denominations) > 0 {
		clean, err := NormalizeDenominations(in.Denominations)
		if err != nil {
			return decimal.Zero, nil, err
		}
		total, err := Total(clean)
		if err != nil {
			return decimal.Zero, nil, err
		}
		raw, err := json.Marshal(clean)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("encode denominations: %w", err)
		}
		return total, raw, nil
	}
	if in.Amount == nil || in.Amount.IsNegative() || !isMoney(*in.Amount) {
		return decimal.Zero, nil, fmt.Errorf("%w: count needs denominations or a non-negative amount", ErrInvalidAmount)
	}
	return *in.Amount, nil, nil
}

func withReconciliation(op *model.CashOperation, rec Reconciliation) {
	disc := rec.Discrepancy
	class := string(rec.Classification)
	op.Discrepancy = &disc
	op.Classification = &class
	op.Significant = rec.Significant
}

// isMoney rejects amounts finer than one cent.
func isMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
