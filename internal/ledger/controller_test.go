package ledger_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/ledger"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cajero     = ledger.Actor{ID: uuid.New(), Role: "cajero"}
	supervisor = ledger.Actor{ID: uuid.New(), Role: "supervisor"}
)

// fakeClock advances one second on every reading.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newController(t *testing.T) (*ledger.Controller, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)}
	return ledger.NewController(ledger.ControllerConfig{
		TillID: "tpv-1",
		Clock:  clock.Now,
	}), clock
}

func openWith(t *testing.T, c *ledger.Controller, float string) model.TillSession {
	t.Helper()
	snap, err := c.Open(cajero, d(float), "apertura")
	require.NoError(t, err)
	return snap
}

// assertReplay checks the incrementally kept balance against a full replay
// and against openingFloat + Σ(signed non-opening effects).
func assertReplay(t *testing.T, s model.TillSession) {
	t.Helper()
	assert.True(t, ledger.Replay(s.Operations).Equal(s.TheoreticalBalance),
		"replay %s != balance %s", ledger.Replay(s.Operations), s.TheoreticalBalance)

	sum := s.OpeningFloat
	for _, op := range s.Operations[1:] {
		sum = sum.Add(ledger.Effect(op))
	}
	assert.True(t, sum.Equal(s.TheoreticalBalance))
	for i, op := range s.Operations {
		assert.Equal(t, i+1, op.Seq)
	}
}

func TestOpen(t *testing.T) {
	c, _ := newController(t)
	snap := openWith(t, c, "100.00")

	assert.Equal(t, model.SessionOpen, snap.Status)
	assert.Equal(t, "tpv-1", snap.TillID)
	assert.Equal(t, "100.00", snap.TheoreticalBalance.StringFixed(2))
	require.Len(t, snap.Operations, 1)
	assert.Equal(t, model.OpOpening, snap.Operations[0].Type)
	assert.Equal(t, "100.00", snap.Operations[0].Amount.StringFixed(2))
	assert.Equal(t, cajero.ID, snap.Operations[0].ActorID)
	assert.Nil(t, snap.ClosedAt)
	assertReplay(t, snap)
}

func TestOpen_AlreadyOpen(t *testing.T) {
	c, _ := newController(t)
	first := openWith(t, c, "50")

	_, err := c.Open(supervisor, d("20"), "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyOpen)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, first.ID, cur.ID)
}

func TestOpen_NegativeFloat(t *testing.T) {
	c, _ := newController(t)
	_, err := c.Open(cajero, d("-1"), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestOpen_ZeroFloatAllowed(t *testing.T) {
	c, _ := newController(t)
	snap := openWith(t, c, "0")
	assert.True(t, snap.TheoreticalBalance.IsZero())
}

func TestReopenStartsNewSession(t *testing.T) {
	c, _ := newController(t)
	first := openWith(t, c, "10")
	_, err := c.Close(cajero, ledger.CloseInput{CountedCash: d("10")})
	require.NoError(t, err)

	second := openWith(t, c, "20")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, second.Operations, 1)
}

func TestOperationsRequireOpenSession(t *testing.T) {
	c, _ := newController(t)

	_, err := c.Withdraw(supervisor, d("1"), "x")
	assert.ErrorIs(t, err, ledger.ErrNoOpenSession)
	_, err = c.RecordPersonalConsumption(cajero, d("1"), "")
	assert.ErrorIs(t, err, ledger.ErrNoOpenSession)
	_, err = c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("1"), Note: "x"})
	assert.ErrorIs(t, err, ledger.ErrNoOpenSession)
	amount := d("1")
	_, _, err = c.CountCash(cajero, ledger.CountInput{Amount: &amount})
	assert.ErrorIs(t, err, ledger.ErrNoOpenSession)
	_, err = c.Close(cajero, ledger.CloseInput{})
	assert.ErrorIs(t, err, ledger.ErrNoOpenSession)
	_, err = c.ConfirmClose(supervisor, "ok")
	assert.ErrorIs(t, err, ledger.ErrNoOpenSession)
}

func TestWithdraw(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")

	snap, err := c.Withdraw(supervisor, d("30"), "ingreso en banco")
	require.NoError(t, err)
	assert.Equal(t, "70.00", snap.TheoreticalBalance.StringFixed(2))
	last := snap.Operations[len(snap.Operations)-1]
	assert.Equal(t, model.OpWithdrawal, last.Type)
	assert.Equal(t, "30.00", last.Amount.StringFixed(2), "amounts are stored positive")
	assert.Equal(t, "70.00", last.BalanceAfter.StringFixed(2))
	assert.Equal(t, "ingreso en banco", last.Note)
	assertReplay(t, snap)
}

func TestWithdraw_EntireBalance(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "25.50")
	snap, err := c.Withdraw(supervisor, d("25.50"), "vaciado")
	require.NoError(t, err)
	assert.True(t, snap.TheoreticalBalance.IsZero())
}

func TestWithdraw_RejectionLeavesNoTrace(t *testing.T) {
	cases := []struct {
		name   string
		actor  ledger.Actor
		amount string
		note   string
		want   error
	}{
		{"unauthorized", cajero, "10", "banco", ledger.ErrUnauthorized},
		{"anonymous", ledger.Actor{Role: "supervisor"}, "10", "banco", ledger.ErrUnauthorized},
		{"zero", supervisor, "0", "banco", ledger.ErrInvalidAmount},
		{"negative", supervisor, "-5", "banco", ledger.ErrInvalidAmount},
		{"sub-cent", supervisor, "1.005", "banco", ledger.ErrInvalidAmount},
		{"no note", supervisor, "10", "   ", ledger.ErrNoteRequired},
		{"over balance", supervisor, "100.01", "banco", ledger.ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newController(t)
			openWith(t, c, "100")
			before, _ := c.Current()

			_, err := c.Withdraw(tc.actor, d(tc.amount), tc.note)
			assert.ErrorIs(t, err, tc.want)

			after, _ := c.Current()
			assert.Equal(t, before, after)
		})
	}
}

func TestPersonalConsumption(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "20")

	// Any operator may record it, note optional.
	snap, err := c.RecordPersonalConsumption(cajero, d("2.40"), "")
	require.NoError(t, err)
	assert.Equal(t, "17.60", snap.TheoreticalBalance.StringFixed(2))
	assertReplay(t, snap)

	_, err = c.RecordPersonalConsumption(cajero, d("0"), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = c.RecordPersonalConsumption(cajero, d("17.61"), "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestReturn_CashRaisesBalance(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "50")
	order := "PED-1042"

	snap, err := c.RecordReturn(cajero, ledger.ReturnInput{
		Amount: d("5"), Note: "producto defectuoso", OrderID: &order, Channel: model.ChannelCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "55.00", snap.TheoreticalBalance.StringFixed(2))
	last := snap.Operations[len(snap.Operations)-1]
	require.NotNil(t, last.RelatedOrderID)
	assert.Equal(t, order, *last.RelatedOrderID)
	require.NotNil(t, last.PaymentChannel)
	assert.Equal(t, model.ChannelCash, *last.PaymentChannel)
	assertReplay(t, snap)
}

func TestReturn_CardDoesNotTouchCashBalance(t *testing.T) {
	c, _ := newController(t)
	before := openWith(t, c, "50")

	snap, err := c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("20"), Note: "devolucion", Channel: model.ChannelCard})
	require.NoError(t, err)
	assert.True(t, snap.TheoreticalBalance.Equal(before.TheoreticalBalance))
	assert.Len(t, snap.Operations, len(before.Operations)+1)
	assertReplay(t, snap)
}

func TestReturn_DefaultsToCash(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "0")
	snap, err := c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("3"), Note: "x"})
	require.NoError(t, err)
	assert.Equal(t, "3.00", snap.TheoreticalBalance.StringFixed(2))
}

func TestReturn_Validation(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "10")

	_, err := c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("0"), Note: "x"})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("1"), Note: ""})
	assert.ErrorIs(t, err, ledger.ErrNoteRequired)
	_, err = c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("1"), Note: "x", Channel: "bizum"})
	assert.ErrorIs(t, err, ledger.ErrInvalidChannel)

	cur, _ := c.Current()
	assert.Len(t, cur.Operations, 1)
}

func TestCountCash_DoesNotMoveBalance(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")

	snap, rec, err := c.CountCash(cajero, ledger.CountInput{Denominations: []ledger.Denomination{
		{FaceValue: d("50"), Kind: ledger.Banknote, Count: 1},
		{FaceValue: d("20"), Kind: ledger.Banknote, Count: 2},
		{FaceValue: d("2"), Kind: ledger.Coin, Count: 4},
	}})
	require.NoError(t, err)
	assert.Equal(t, "100.00", snap.TheoreticalBalance.StringFixed(2))
	assert.Equal(t, "-2.00", rec.Discrepancy.StringFixed(2))
	assert.Equal(t, ledger.Shortfall, rec.Classification)

	last := snap.Operations[len(snap.Operations)-1]
	assert.Equal(t, model.OpMidShiftCount, last.Type)
	assert.Equal(t, "98.00", last.Amount.StringFixed(2))
	require.NotNil(t, last.Discrepancy)
	assert.Equal(t, "-2.00", last.Discrepancy.StringFixed(2))
	assert.NotEmpty(t, last.Denominations)
	assertReplay(t, snap)
}

func TestCountCash_DirectAmount(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")
	amount := d("100.01")
	_, rec, err := c.CountCash(cajero, ledger.CountInput{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, ledger.Balanced, rec.Classification)
}

func TestCountCash_InvalidInput(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")

	_, _, err := c.CountCash(cajero, ledger.CountInput{})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, _, err = c.CountCash(cajero, ledger.CountInput{Denominations: []ledger.Denomination{
		{FaceValue: d("5"), Count: 1}, {FaceValue: d("5.00"), Count: 1},
	}})
	assert.ErrorIs(t, err, ledger.ErrDuplicateDenomination)
}

func TestEndToEndShift(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100.00")

	_, err := c.Withdraw(supervisor, d("30.00"), "bank deposit")
	require.NoError(t, err)
	snap, err := c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("5.00"), Note: "defective item", Channel: model.ChannelCash})
	require.NoError(t, err)
	assert.Equal(t, "75.00", snap.TheoreticalBalance.StringFixed(2))

	res, err := c.Close(cajero, ledger.CloseInput{CountedCash: d("74.50"), CountedCard: d("0.00")})
	require.NoError(t, err)
	assert.Equal(t, "-0.50", res.Reconciliation.Discrepancy.StringFixed(2))
	assert.Equal(t, ledger.Shortfall, res.Reconciliation.Classification)
	assert.False(t, res.Reconciliation.Significant)

	s := res.Session
	assert.Equal(t, model.SessionClosed, s.Status)
	require.NotNil(t, s.ClosedAt)
	require.NotNil(t, s.ClosingDiscrepancy)
	assert.Equal(t, "-0.50", s.ClosingDiscrepancy.StringFixed(2))
	require.NotNil(t, s.ClosingClassification)
	assert.Equal(t, "shortfall", *s.ClosingClassification)
	assert.Equal(t, "75.00", s.TheoreticalBalance.StringFixed(2))
	assert.Equal(t, model.OpClosing, s.Operations[len(s.Operations)-1].Type)
	assertReplay(t, s)

	_, ok := c.Current()
	assert.False(t, ok)
	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, s.ID, last.ID)

	// Closed sessions are read-only.
	_, err = c.Withdraw(supervisor, d("1"), "x")
	assert.ErrorIs(t, err, ledger.ErrNoOpenSession)
}

func TestClose_Unauthorized(t *testing.T) {
	c := ledger.NewController(ledger.ControllerConfig{
		TillID:     "tpv-2",
		Authorizer: ledger.RolePolicy{ledger.ActionClose: {"supervisor"}},
	})
	_, err := c.Open(cajero, d("10"), "")
	require.NoError(t, err)

	before, _ := c.Current()
	_, err = c.Close(cajero, ledger.CloseInput{CountedCash: d("10")})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	after, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestClose_CardCountAddsToCounted(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "40")
	res, err := c.Close(cajero, ledger.CloseInput{CountedCash: d("35"), CountedCard: d("5")})
	require.NoError(t, err)
	assert.Equal(t, ledger.Balanced, res.Reconciliation.Classification)
	assert.Equal(t, "40.00", res.Session.ClosingCount.StringFixed(2))
}

func TestClose_SignificantVarianceNeedsConfirmation(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")

	res, err := c.Close(cajero, ledger.CloseInput{CountedCash: d("80"), Note: "faltan billetes"})
	var warn *ledger.SignificantVarianceWarning
	require.ErrorAs(t, err, &warn)
	assert.Equal(t, "-20.00", warn.Reconciliation.Discrepancy.StringFixed(2))
	assert.True(t, warn.Reconciliation.Significant)
	assert.Equal(t, model.SessionOpen, res.Session.Status)

	// Still open and untouched.
	cur, ok := c.Current()
	require.True(t, ok)
	assert.Len(t, cur.Operations, 1)
	_, pending := c.PendingClose()
	assert.True(t, pending)

	// A cashier cannot confirm; a supervisor must leave an observation.
	_, err = c.ConfirmClose(cajero, "ok")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = c.ConfirmClose(supervisor, "")
	assert.ErrorIs(t, err, ledger.ErrNoteRequired)

	done, err := c.ConfirmClose(supervisor, "revisado con encargada")
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, done.Session.Status)
	assert.True(t, done.Session.ClosingSignificant)
	require.NotNil(t, done.Session.ClosingNote)
	assert.Equal(t, "faltan billetes; revisado con encargada", *done.Session.ClosingNote)
	require.NotNil(t, done.Session.ClosedBy)
	assert.Equal(t, supervisor.ID, *done.Session.ClosedBy)
	assertReplay(t, done.Session)
}

func TestConfirmClose_InvalidatedByLaterOperation(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")

	_, err := c.Close(cajero, ledger.CloseInput{CountedCash: d("50")})
	require.Error(t, err)

	_, err = c.RecordPersonalConsumption(cajero, d("1"), "cafe")
	require.NoError(t, err)

	_, err = c.ConfirmClose(supervisor, "ok")
	assert.ErrorIs(t, err, ledger.ErrNoPendingClose)
	_, ok := c.Current()
	assert.True(t, ok)
}

func TestConfirmClose_WithoutPending(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")
	_, err := c.ConfirmClose(supervisor, "ok")
	assert.ErrorIs(t, err, ledger.ErrNoPendingClose)
}

func TestCancelClose(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")
	_, err := c.Close(cajero, ledger.CloseInput{CountedCash: d("0")})
	require.Error(t, err)
	assert.True(t, c.CancelClose())
	assert.False(t, c.CancelClose())
	_, err = c.ConfirmClose(supervisor, "ok")
	assert.ErrorIs(t, err, ledger.ErrNoPendingClose)
}

func TestReplayInvariantHoldsAtEveryStep(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "200")

	steps := []func() (model.TillSession, error){
		func() (model.TillSession, error) { return c.Withdraw(supervisor, d("50"), "banco") },
		func() (model.TillSession, error) { return c.RecordPersonalConsumption(cajero, d("3.20"), "desayuno") },
		func() (model.TillSession, error) {
			return c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("12.75"), Note: "tarta", Channel: model.ChannelCash})
		},
		func() (model.TillSession, error) {
			return c.RecordReturn(cajero, ledger.ReturnInput{Amount: d("9.99"), Note: "pan", Channel: model.ChannelCard})
		},
		func() (model.TillSession, error) {
			amount := d("150")
			s, _, err := c.CountCash(cajero, ledger.CountInput{Amount: &amount})
			return s, err
		},
		func() (model.TillSession, error) { return c.Withdraw(supervisor, d("500"), "demasiado") },
		func() (model.TillSession, error) { return c.Withdraw(supervisor, d("100"), "banco") },
	}

	var prev model.TillSession
	prev, _ = c.Current()
	for i, step := range steps {
		_, _ = step()
		cur, ok := c.Current()
		require.True(t, ok)
		assertReplay(t, cur)

		// Append-only: never shrinks, earlier records unchanged.
		require.GreaterOrEqual(t, len(cur.Operations), len(prev.Operations), "step %d", i)
		assert.Equal(t, prev.Operations, cur.Operations[:len(prev.Operations)], "step %d", i)
		prev = cur
	}
	assert.Equal(t, "59.55", prev.TheoreticalBalance.StringFixed(2))
}

func TestSnapshotIsIsolated(t *testing.T) {
	c, _ := newController(t)
	snap := openWith(t, c, "10")
	snap.Operations[0].Amount = d("999")
	snap.TheoreticalBalance = d("999")

	cur, _ := c.Current()
	assert.Equal(t, "10.00", cur.TheoreticalBalance.StringFixed(2))
	assert.Equal(t, "10.00", cur.Operations[0].Amount.StringFixed(2))
}

func TestRestore(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "100")
	snap, err := c.Withdraw(supervisor, d("40"), "banco")
	require.NoError(t, err)

	restored := ledger.NewController(ledger.ControllerConfig{TillID: "tpv-1"})
	require.NoError(t, restored.Restore(snap))
	cur, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, snap, cur)

	_, err = restored.Open(cajero, d("1"), "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyOpen)
}

func TestRestore_RejectsTamperedBalance(t *testing.T) {
	c, _ := newController(t)
	snap := openWith(t, c, "100")
	snap.TheoreticalBalance = d("101")

	restored := ledger.NewController(ledger.ControllerConfig{TillID: "tpv-1"})
	assert.Error(t, restored.Restore(snap))
}

func TestRestore_RejectsForeignTill(t *testing.T) {
	c, _ := newController(t)
	snap := openWith(t, c, "100")
	other := ledger.NewController(ledger.ControllerConfig{TillID: "tpv-9"})
	assert.Error(t, other.Restore(snap))
}

func TestSessionProjections(t *testing.T) {
	c, clock := newController(t)
	openWith(t, c, "100")
	_, err := c.Withdraw(supervisor, d("10"), "a")
	require.NoError(t, err)
	mark := clock.Now()
	_, err = c.Withdraw(supervisor, d("15"), "b")
	require.NoError(t, err)
	snap, err := c.RecordPersonalConsumption(cajero, d("1.50"), "")
	require.NoError(t, err)

	s, err := ledger.RestoreSession(snap)
	require.NoError(t, err)
	assert.Equal(t, "25.00", s.TotalByType(model.OpWithdrawal).StringFixed(2))
	assert.Equal(t, "100.00", s.TotalByType(model.OpOpening).StringFixed(2))
	assert.True(t, s.TotalByType(model.OpClosing).IsZero())

	since := s.OperationsSince(mark)
	require.Len(t, since, 2)
	assert.Equal(t, model.OpWithdrawal, since[0].Type)
	assert.Equal(t, model.OpPersonalConsumption, since[1].Type)

	// Projections never mutate.
	since[0].Amount = d("0")
	assert.Equal(t, "25.00", s.TotalByType(model.OpWithdrawal).StringFixed(2))
	assert.Equal(t, len(snap.Operations), s.Len())
}

func TestAppendOperation_ClosedSession(t *testing.T) {
	c, _ := newController(t)
	openWith(t, c, "5")
	res, err := c.Close(cajero, ledger.CloseInput{CountedCash: d("5")})
	require.NoError(t, err)

	s, err := ledger.RestoreSession(res.Session)
	require.NoError(t, err)
	_, err = s.AppendOperation(model.CashOperation{Type: model.OpWithdrawal, Amount: d("1")})
	assert.ErrorIs(t, err, ledger.ErrSessionClosed)
}

// A close racing a pending withdrawal is serialized: the withdrawal either
// lands before the close computes the balance or is rejected afterwards.
func TestCloseAndWithdrawAreSerialized(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, _ := newController(t)
		openWith(t, c, "100")

		var wg sync.WaitGroup
		var withdrawErr, closeErr error
		var closed ledger.CloseResult
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, withdrawErr = c.Withdraw(supervisor, d("5"), "banco")
		}()
		go func() {
			defer wg.Done()
			closed, closeErr = c.Close(supervisor, ledger.CloseInput{CountedCash: d("95")})
		}()
		wg.Wait()

		require.NoError(t, closeErr)
		s := closed.Session
		assertReplay(t, s)
		if withdrawErr == nil {
			assert.Equal(t, "95.00", s.TheoreticalBalance.StringFixed(2))
			assert.Equal(t, ledger.Balanced, closed.Reconciliation.Classification)
		} else {
			assert.True(t, errors.Is(withdrawErr, ledger.ErrNoOpenSession))
			assert.Equal(t, "100.00", s.TheoreticalBalance.StringFixed(2))
		}
	}
}

func TestSingleOpenUnderConcurrency(t *testing.T) {
	c, _ := newController(t)
	var wg sync.WaitGroup
	var mu sync.Mutex
	opened := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Open(cajero, decimal.NewFromInt(10), ""); err == nil {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, opened)
}
