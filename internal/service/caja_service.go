package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/dto"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/events"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/infra"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/ledger"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/repository"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrPersist is returned when an accepted operation could not be stored. The
// operation is discarded and the till reloaded from the database.
var ErrPersist = errors.New("no se pudo guardar la operacion")

type CajaService interface {
	Abrir(ctx context.Context, tillID string, actor ledger.Actor, req dto.AbrirCajaRequest) (*dto.SesionResponse, error)
	Retirar(ctx context.Context, tillID string, actor ledger.Actor, req dto.MovimientoRequest) (*dto.SesionResponse, error)
	ConsumoPropio(ctx context.Context, tillID string, actor ledger.Actor, req dto.MovimientoRequest) (*dto.SesionResponse, error)
	Devolucion(ctx context.Context, tillID string, actor ledger.Actor, req dto.DevolucionRequest) (*dto.SesionResponse, error)
	Arqueo(ctx context.Context, tillID string, actor ledger.Actor, req dto.ArqueoRequest) (*dto.ArqueoResponse, error)
	// Cerrar returns the response together with *ledger.SignificantVarianceWarning
	// when the close is held for confirmation.
	Cerrar(ctx context.Context, tillID string, actor ledger.Actor, req dto.CerrarCajaRequest) (*dto.CierreResponse, error)
	ConfirmarCierre(ctx context.Context, tillID string, actor ledger.Actor, req dto.ConfirmarCierreRequest) (*dto.CierreResponse, error)
	CancelarCierre(ctx context.Context, tillID string) (bool, error)
	GetActiva(ctx context.Context, tillID string) (*dto.SesionResponse, error)

	Reporte(ctx context.Context, sessionID uuid.UUID) (*dto.ReporteCajaResponse, error)
	OperacionesDesde(ctx context.Context, sessionID uuid.UUID, since time.Time) ([]dto.OperacionResponse, error)
	Historial(ctx context.Context, filter dto.SessionFilter) (*dto.HistorialResponse, error)
	ExportXLSX(ctx context.Context, sessionID uuid.UUID) (*bytes.Buffer, string, error)
}

// OrderLookup resolves the original payment channel of an order.
type OrderLookup interface {
	Lookup(ctx context.Context, orderID string) (*infra.OrderInfo, error)
}

// CierreEnqueuer is satisfied by *worker.Dispatcher.
type CierreEnqueuer interface {
	EnqueueCierre(ctx context.Context, payload worker.CierreJobPayload) error
}

// CajaConfig carries the till policy and optional collaborators. Nil
// collaborators are skipped.
type CajaConfig struct {
	Authorizer        ledger.Authorizer
	VarianceThreshold decimal.Decimal
	Clock             func() time.Time
	Publisher         events.Publisher
	Orders            OrderLookup
	Jobs              CierreEnqueuer
}

// till serializes mutate-then-save for one till so snapshots reach the
// database in ledger order.
type till struct {
	mu   sync.Mutex
	ctrl *ledger.Controller
}

type cajaService struct {
	repo repository.CajaRepository
	cfg  CajaConfig

	mu    sync.Mutex
	tills map[string]*till
}

func NewCajaService(repo repository.CajaRepository, cfg CajaConfig) CajaService {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	return &cajaService{repo: repo, cfg: cfg, tills: make(map[string]*till)}
}

// ── Till registry ────────────────────────────────────────────────────────────

// acquire returns the till locked, restoring its controller from the last
// persisted session on first use.
func (s *cajaService) acquire(ctx context.Context, tillID string) (*till, error) {
	s.mu.Lock()
	t, ok := s.tills[tillID]
	if !ok {
		t = &till{}
		s.tills[tillID] = t
	}
	s.mu.Unlock()

	t.mu.Lock()
	if t.ctrl != nil {
		return t, nil
	}

	ctrl := ledger.NewController(ledger.ControllerConfig{
		TillID:            tillID,
		Authorizer:        s.cfg.Authorizer,
		VarianceThreshold: s.cfg.VarianceThreshold,
		Clock:             s.cfg.Clock,
	})
	snap, err := s.repo.Load(ctx, tillID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		t.mu.Unlock()
		return nil, fmt.Errorf("load till %s: %w", tillID, err)
	default:
		if err := ctrl.Restore(*snap); err != nil {
			t.mu.Unlock()
			return nil, err
		}
	}
	t.ctrl = ctrl
	return t, nil
}

// mutate runs one ledger operation, persists the resulting snapshot and
// publishes it while holding the till, so events leave in ledger order. A
// failed save drops the in-memory controller.
func (s *cajaService) mutate(ctx context.Context, tillID string, fn func(*ledger.Controller) (model.TillSession, error)) (model.TillSession, error) {
	t, err := s.acquire(ctx, tillID)
	if err != nil {
		return model.TillSession{}, err
	}
	defer t.mu.Unlock()

	snap, err := fn(t.ctrl)
	if err != nil {
		return model.TillSession{}, err
	}
	if err := s.repo.Save(ctx, &snap); err != nil {
		t.ctrl = nil
		log.Error().Err(err).Str("till_id", tillID).Str("session_id", snap.ID.String()).
			Msg("caja: save failed, till reloaded from database")
		return model.TillSession{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.recorded(ctx, snap)
	return snap, nil
}

// recorded logs and publishes an accepted operation.
func (s *cajaService) recorded(ctx context.Context, snap model.TillSession) {
	if n := len(snap.Operations); n > 0 {
		op := snap.Operations[n-1]
		log.Info().
			Str("till_id", snap.TillID).
			Str("session_id", snap.ID.String()).
			Str("op", string(op.Type)).
			Int("seq", op.Seq).
			Str("amount", op.Amount.StringFixed(2)).
			Str("balance", snap.TheoreticalBalance.StringFixed(2)).
			Msg("caja: operation recorded")
	}
	if err := s.cfg.Publisher.Publish(ctx, events.NewSessionChanged(snap, s.cfg.Clock())); err != nil {
		log.Warn().Err(err).Str("till_id", snap.TillID).Msg("caja: event publish failed")
	}
}

func rejected(tillID string, op model.OperationType, err error) error {
	log.Warn().Err(err).Str("till_id", tillID).Str("op", string(op)).Msg("caja: operation rejected")
	return err
}

// ── Operations ───────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, tillID string, actor ledger.Actor, req dto.AbrirCajaRequest) (*dto.SesionResponse, error) {
	snap, err := s.mutate(ctx, tillID, func(c *ledger.Controller) (model.TillSession, error) {
		return c.Open(actor, req.FondoInicial, req.Nota)
	})
	if err != nil {
		return nil, rejected(tillID, model.OpOpening, err)
	}
	resp := toSesionResponse(snap, true)
	return &resp, nil
}

func (s *cajaService) Retirar(ctx context.Context, tillID string, actor ledger.Actor, req dto.MovimientoRequest) (*dto.SesionResponse, error) {
	snap, err := s.mutate(ctx, tillID, func(c *ledger.Controller) (model.TillSession, error) {
		return c.Withdraw(actor, req.Monto, req.Nota)
	})
	if err != nil {
		return nil, rejected(tillID, model.OpWithdrawal, err)
	}
	resp := toSesionResponse(snap, true)
	return &resp, nil
}

func (s *cajaService) ConsumoPropio(ctx context.Context, tillID string, actor ledger.Actor, req dto.MovimientoRequest) (*dto.SesionResponse, error) {
	snap, err := s.mutate(ctx, tillID, func(c *ledger.Controller) (model.TillSession, error) {
		return c.RecordPersonalConsumption(actor, req.Monto, req.Nota)
	})
	if err != nil {
		return nil, rejected(tillID, model.OpPersonalConsumption, err)
	}
	resp := toSesionResponse(snap, true)
	return &resp, nil
}

// Devolucion books a refund. With an order id and a reachable orders
// service, the order's original payment channel wins over the caller's.
func (s *cajaService) Devolucion(ctx context.Context, tillID string, actor ledger.Actor, req dto.DevolucionRequest) (*dto.SesionResponse, error) {
	channel := model.PaymentChannel(req.Canal)
	if req.PedidoID != nil && *req.PedidoID != "" && s.cfg.Orders != nil {
		info, err := s.cfg.Orders.Lookup(ctx, *req.PedidoID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("order_id", *req.PedidoID).Msg("caja: order lookup failed, using declared channel")
		case info.PaymentChannel == model.ChannelCash || info.PaymentChannel == model.ChannelCard:
			channel = info.PaymentChannel
		}
	}

	snap, err := s.mutate(ctx, tillID, func(c *ledger.Controller) (model.TillSession, error) {
		return c.RecordReturn(actor, ledger.ReturnInput{
			Amount:  req.Monto,
			Note:    req.Nota,
			OrderID: req.PedidoID,
			Channel: channel,
		})
	})
	if err != nil {
		return nil, rejected(tillID, model.OpReturnRefund, err)
	}
	resp := toSesionResponse(snap, true)
	return &resp, nil
}

func (s *cajaService) Arqueo(ctx context.Context, tillID string, actor ledger.Actor, req dto.ArqueoRequest) (*dto.ArqueoResponse, error) {
	in := ledger.CountInput{Amount: req.Monto}
	for _, d := range req.Denominaciones {
		in.Denominations = append(in.Denominations, ledger.Denomination{
			FaceValue: d.Valor,
			Kind:      ledger.DenominationKind(d.Tipo),
			Count:     d.Cantidad,
		})
	}

	var rec ledger.Reconciliation
	snap, err := s.mutate(ctx, tillID, func(c *ledger.Controller) (model.TillSession, error) {
		snap, r, err := c.CountCash(actor, in)
		rec = r
		return snap, err
	})
	if err != nil {
		return nil, rejected(tillID, model.OpMidShiftCount, err)
	}
	return &dto.ArqueoResponse{
		Sesion:         toSesionResponse(snap, true),
		Reconciliacion: toReconciliacion(rec),
	}, nil
}

func (s *cajaService) Cerrar(ctx context.Context, tillID string, actor ledger.Actor, req dto.CerrarCajaRequest) (*dto.CierreResponse, error) {
	in := ledger.CloseInput{CountedCash: req.Efectivo, CountedCard: req.Tarjeta, Note: req.Nota}

	var res ledger.CloseResult
	var warn *ledger.SignificantVarianceWarning
	snap, err := s.mutate(ctx, tillID, func(c *ledger.Controller) (model.TillSession, error) {
		r, err := c.Close(actor, in)
		res = r
		if errors.As(err, &warn) {
			// Nothing changed yet; surface the warning without saving.
			return model.TillSession{}, err
		}
		return r.Session, err
	})
	if warn != nil {
		log.Warn().Str("till_id", tillID).Str("discrepancy", warn.Reconciliation.Discrepancy.StringFixed(2)).
			Msg("caja: significant variance, close awaiting confirmation")
		return &dto.CierreResponse{
			Sesion:               toSesionResponse(res.Session, false),
			Reconciliacion:       toReconciliacion(res.Reconciliation),
			RequiresConfirmation: true,
			Umbral:               warn.Threshold,
		}, warn
	}
	if err != nil {
		return nil, rejected(tillID, model.OpClosing, err)
	}
	s.closed(ctx, snap)
	return &dto.CierreResponse{
		Sesion:         toSesionResponse(snap, false),
		Reconciliacion: toReconciliacion(res.Reconciliation),
	}, nil
}

func (s *cajaService) ConfirmarCierre(ctx context.Context, tillID string, actor ledger.Actor, req dto.ConfirmarCierreRequest) (*dto.CierreResponse, error) {
	var res ledger.CloseResult
	snap, err := s.mutate(ctx, tillID, func(c *ledger.Controller) (model.TillSession, error) {
		r, err := c.ConfirmClose(actor, req.Nota)
		res = r
		return r.Session, err
	})
	if err != nil {
		return nil, rejected(tillID, model.OpClosing, err)
	}
	s.closed(ctx, snap)
	return &dto.CierreResponse{
		Sesion:         toSesionResponse(snap, false),
		Reconciliacion: toReconciliacion(res.Reconciliation),
	}, nil
}

// closed enqueues the closing report job.
func (s *cajaService) closed(ctx context.Context, snap model.TillSession) {
	if s.cfg.Jobs == nil {
		return
	}
	if err := s.cfg.Jobs.EnqueueCierre(ctx, worker.CierreJobPayload{
		SessionID: snap.ID.String(),
		TillID:    snap.TillID,
	}); err != nil {
		log.Error().Err(err).Str("session_id", snap.ID.String()).Msg("caja: failed to enqueue closing report")
	}
}

func (s *cajaService) CancelarCierre(ctx context.Context, tillID string) (bool, error) {
	t, err := s.acquire(ctx, tillID)
	if err != nil {
		return false, err
	}
	defer t.mu.Unlock()
	return t.ctrl.CancelClose(), nil
}

func (s *cajaService) GetActiva(ctx context.Context, tillID string) (*dto.SesionResponse, error) {
	t, err := s.acquire(ctx, tillID)
	if err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	snap, ok := t.ctrl.Current()
	if !ok {
		return nil, ledger.ErrNoOpenSession
	}
	resp := toSesionResponse(snap, true)
	return &resp, nil
}

// ── Reporting ────────────────────────────────────────────────────────────────

func (s *cajaService) Reporte(ctx context.Context, sessionID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	snap, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal, len(model.OperationTypes))
	for _, t := range model.OperationTypes {
		totals[string(t)] = ledger.TotalByType(snap.Operations, t)
	}

	resp := &dto.ReporteCajaResponse{
		Sesion:         toSesionResponse(*snap, true),
		TotalesPorTipo: totals,
	}
	if snap.Status == model.SessionOpen {
		if rec, ok := s.pendingClose(snap.TillID, snap.ID); ok {
			r := toReconciliacion(rec)
			resp.CierrePendiente = &r
		}
	}
	return resp, nil
}

// pendingClose peeks at a cached controller only; it never loads a till.
func (s *cajaService) pendingClose(tillID string, sessionID uuid.UUID) (ledger.Reconciliation, bool) {
	s.mu.Lock()
	t, ok := s.tills[tillID]
	s.mu.Unlock()
	if !ok {
		return ledger.Reconciliation{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctrl == nil {
		return ledger.Reconciliation{}, false
	}
	if cur, open := t.ctrl.Current(); !open || cur.ID != sessionID {
		return ledger.Reconciliation{}, false
	}
	return t.ctrl.PendingClose()
}

func (s *cajaService) OperacionesDesde(ctx context.Context, sessionID uuid.UUID, since time.Time) ([]dto.OperacionResponse, error) {
	snap, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ops := ledger.OperationsSince(snap.Operations, since)
	out := make([]dto.OperacionResponse, len(ops))
	for i, op := range ops {
		out[i] = toOperacionResponse(op)
	}
	return out, nil
}

func (s *cajaService) Historial(ctx context.Context, filter dto.SessionFilter) (*dto.HistorialResponse, error) {
	sessions, total, err := s.repo.ListSessions(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SesionResponse, len(sessions))
	for i, snap := range sessions {
		data[i] = toSesionResponse(snap, false)
	}
	return &dto.HistorialResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *cajaService) ExportXLSX(ctx context.Context, sessionID uuid.UUID) (*bytes.Buffer, string, error) {
	snap, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	buf, err := infra.SessionWorkbook(snap)
	if err != nil {
		return nil, "", err
	}
	name := fmt.Sprintf("caja_%s_%s.xlsx", snap.TillID, snap.OpenedAt.Format("20060102"))
	return buf, name, nil
}

// ── Mapping ──────────────────────────────────────────────────────────────────

func toReconciliacion(r ledger.Reconciliation) dto.ReconciliacionResponse {
	return dto.ReconciliacionResponse{
		Teorico:       r.Theoretical,
		Contado:       r.Counted,
		Descuadre:     r.Discrepancy,
		Porcentaje:    r.Percent,
		Clasificacion: string(r.Classification),
		Significativo: r.Significant,
	}
}

func toOperacionResponse(op model.CashOperation) dto.OperacionResponse {
	r := dto.OperacionResponse{
		ID:            op.ID.String(),
		Seq:           op.Seq,
		Tipo:          string(op.Type),
		Monto:         op.Amount,
		SaldoTras:     op.BalanceAfter,
		OperadorID:    op.ActorID.String(),
		Nota:          op.Note,
		PedidoID:      op.RelatedOrderID,
		Descuadre:     op.Discrepancy,
		Clasificacion: op.Classification,
		Significativo: op.Significant,
		CreatedAt:     op.CreatedAt.Format(time.RFC3339Nano),
	}
	if op.PaymentChannel != nil {
		ch := string(*op.PaymentChannel)
		r.Canal = &ch
	}
	if len(op.Denominations) > 0 {
		r.Denominaciones = []byte(op.Denominations)
	}
	return r
}

func toSesionResponse(s model.TillSession, withOps bool) dto.SesionResponse {
	r := dto.SesionResponse{
		ID:           s.ID.String(),
		TillID:       s.TillID,
		AbiertaPor:   s.OpenedBy.String(),
		FondoInicial: s.OpeningFloat,
		SaldoTeorico: s.TheoreticalBalance,
		Estado:       string(s.Status),
		OpenedAt:     s.OpenedAt.Format(time.RFC3339),
	}
	if s.Status == model.SessionClosed && s.ClosedAt != nil {
		c := &dto.CierreDetalle{
			Significativo: s.ClosingSignificant,
			Observaciones: s.ClosingNote,
			ClosedAt:      s.ClosedAt.Format(time.RFC3339),
		}
		if s.ClosedBy != nil {
			c.CerradaPor = s.ClosedBy.String()
		}
		c.Efectivo = deref(s.CountedCash)
		c.Tarjeta = deref(s.CountedCard)
		c.Contado = deref(s.ClosingCount)
		c.Descuadre = deref(s.ClosingDiscrepancy)
		c.Porcentaje = deref(s.ClosingDiscrepancyPct)
		if s.ClosingClassification != nil {
			c.Clasificacion = *s.ClosingClassification
		}
		r.Cierre = c
	}
	if withOps {
		r.Operaciones = make([]dto.OperacionResponse, len(s.Operations))
		for i, op := range s.Operations {
			r.Operaciones[i] = toOperacionResponse(op)
		}
	}
	return r
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
