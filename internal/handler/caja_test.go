package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/dto"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/events"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/ledger"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/middleware"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/repository"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stub CajaService ─────────────────────────────────────────────────────────

type stubCaja struct {
	err      error
	lastTill string
	actor    ledger.Actor
	filter   dto.SessionFilter
	since    time.Time
	cancel   bool
}

func (s *stubCaja) sesion(till string, actor ledger.Actor) (*dto.SesionResponse, error) {
	s.lastTill, s.actor = till, actor
	if s.err != nil {
		return nil, s.err
	}
	return &dto.SesionResponse{ID: uuid.NewString(), TillID: till, Estado: "open"}, nil
}

func (s *stubCaja) Abrir(_ context.Context, till string, a ledger.Actor, _ dto.AbrirCajaRequest) (*dto.SesionResponse, error) {
	return s.sesion(till, a)
}

func (s *stubCaja) Retirar(_ context.Context, till string, a ledger.Actor, _ dto.MovimientoRequest) (*dto.SesionResponse, error) {
	return s.sesion(till, a)
}

func (s *stubCaja) ConsumoPropio(_ context.Context, till string, a ledger.Actor, _ dto.MovimientoRequest) (*dto.SesionResponse, error) {
	return s.sesion(till, a)
}

func (s *stubCaja) Devolucion(_ context.Context, till string, a ledger.Actor, _ dto.DevolucionRequest) (*dto.SesionResponse, error) {
	return s.sesion(till, a)
}

func (s *stubCaja) Arqueo(_ context.Context, till string, a ledger.Actor, _ dto.ArqueoRequest) (*dto.ArqueoResponse, error) {
	ses, err := s.sesion(till, a)
	if err != nil {
		return nil, err
	}
	return &dto.ArqueoResponse{Sesion: *ses}, nil
}

func (s *stubCaja) Cerrar(_ context.Context, till string, a ledger.Actor, _ dto.CerrarCajaRequest) (*dto.CierreResponse, error) {
	s.lastTill, s.actor = till, a
	var warn *ledger.SignificantVarianceWarning
	if errors.As(s.err, &warn) {
		return &dto.CierreResponse{RequiresConfirmation: true, Umbral: warn.Threshold}, s.err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CierreResponse{Sesion: dto.SesionResponse{TillID: till, Estado: "closed"}}, nil
}

func (s *stubCaja) ConfirmarCierre(_ context.Context, till string, a ledger.Actor, _ dto.ConfirmarCierreRequest) (*dto.CierreResponse, error) {
	s.lastTill, s.actor = till, a
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CierreResponse{Sesion: dto.SesionResponse{TillID: till, Estado: "closed"}}, nil
}

func (s *stubCaja) CancelarCierre(_ context.Context, till string) (bool, error) {
	s.lastTill = till
	return s.cancel, s.err
}

func (s *stubCaja) GetActiva(_ context.Context, till string) (*dto.SesionResponse, error) {
	return s.sesion(till, ledger.Actor{})
}

func (s *stubCaja) Reporte(_ context.Context, id uuid.UUID) (*dto.ReporteCajaResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ReporteCajaResponse{Sesion: dto.SesionResponse{ID: id.String()}}, nil
}

func (s *stubCaja) OperacionesDesde(_ context.Context, _ uuid.UUID, since time.Time) ([]dto.OperacionResponse, error) {
	s.since = since
	return []dto.OperacionResponse{}, s.err
}

func (s *stubCaja) Historial(_ context.Context, f dto.SessionFilter) (*dto.HistorialResponse, error) {
	s.filter = f
	return &dto.HistorialResponse{Page: f.Page, Limit: f.Limit}, s.err
}

func (s *stubCaja) ExportXLSX(_ context.Context, _ uuid.UUID) (*bytes.Buffer, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return bytes.NewBufferString("PK"), "caja_mostrador_20260420.xlsx", nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

var testOperator = uuid.New()

func cajaRouter(svc service.CajaService, rol string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{UserID: testOperator.String(), Rol: rol})
		c.Next()
	})
	h := NewCajaHandler(svc)
	r.GET("/caja/denominaciones", h.Denominaciones)
	r.GET("/caja/sesiones", h.Historial)
	r.GET("/caja/sesiones/:id/reporte", h.Reporte)
	r.GET("/caja/sesiones/:id/operaciones", h.Operaciones)
	r.GET("/caja/sesiones/:id/export.xlsx", h.Export)
	r.POST("/caja/:till/abrir", h.Abrir)
	r.POST("/caja/:till/retiro", h.Retiro)
	r.POST("/caja/:till/arqueo", h.Arqueo)
	r.POST("/caja/:till/cerrar", h.Cerrar)
	r.POST("/caja/:till/cerrar/confirmar", h.ConfirmarCierre)
	r.DELETE("/caja/:till/cerrar", h.CancelarCierre)
	r.GET("/caja/:till/activa", h.GetActiva)
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestAbrir_PassesTillAndActor(t *testing.T) {
	svc := &stubCaja{}
	w := do(cajaRouter(svc, "cajero"), http.MethodPost, "/caja/mostrador/abrir", gin.H{"fondo_inicial": "150.00"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "mostrador", svc.lastTill)
	assert.Equal(t, testOperator, svc.actor.ID)
	assert.Equal(t, "cajero", svc.actor.Role)
}

func TestLedgerErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ledger.ErrAlreadyOpen, http.StatusConflict, "already_open"},
		{ledger.ErrNoOpenSession, http.StatusConflict, "no_open_session"},
		{fmt.Errorf("%w: 5.00 > 2.00", ledger.ErrInsufficientBalance), http.StatusUnprocessableEntity, "insufficient_balance"},
		{ledger.ErrNoteRequired, http.StatusUnprocessableEntity, "note_required"},
		{ledger.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{fmt.Errorf("%w: connection reset", service.ErrPersist), http.StatusServiceUnavailable, "persist_failed"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &stubCaja{err: tc.err}
			w := do(cajaRouter(svc, "supervisor"), http.MethodPost, "/caja/mostrador/retiro", gin.H{"monto": "5", "nota": "banco"})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

func TestRetiro_ValidationBeforeService(t *testing.T) {
	svc := &stubCaja{}
	w := do(cajaRouter(svc, "supervisor"), http.MethodPost, "/caja/mostrador/retiro", gin.H{"monto": "0", "nota": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation", errorCode(t, w))
	assert.Empty(t, svc.lastTill)
}

func TestArqueo_RequiresDenominationsOrAmount(t *testing.T) {
	svc := &stubCaja{}
	w := do(cajaRouter(svc, "cajero"), http.MethodPost, "/caja/mostrador/arqueo", gin.H{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(cajaRouter(svc, "cajero"), http.MethodPost, "/caja/mostrador/arqueo", gin.H{
		"denominaciones": []gin.H{{"valor": "20", "cantidad": 3}},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCerrar_SignificantVarianceIs409WithBody(t *testing.T) {
	svc := &stubCaja{err: &ledger.SignificantVarianceWarning{Threshold: "10.00"}}
	w := do(cajaRouter(svc, "cajero"), http.MethodPost, "/caja/mostrador/cerrar", gin.H{"efectivo": "50", "tarjeta": "0"})

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp dto.CierreResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.RequiresConfirmation)
	assert.Equal(t, "10.00", resp.Umbral)
}

func TestCerrar_Balanced(t *testing.T) {
	svc := &stubCaja{}
	w := do(cajaRouter(svc, "cajero"), http.MethodPost, "/caja/mostrador/cerrar", gin.H{"efectivo": "50"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfirmarCierre_NeedsNote(t *testing.T) {
	svc := &stubCaja{}
	w := do(cajaRouter(svc, "supervisor"), http.MethodPost, "/caja/mostrador/cerrar/confirmar", gin.H{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(cajaRouter(svc, "supervisor"), http.MethodPost, "/caja/mostrador/cerrar/confirmar", gin.H{"nota": "revisado"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelarCierre(t *testing.T) {
	svc := &stubCaja{cancel: true}
	w := do(cajaRouter(svc, "supervisor"), http.MethodDelete, "/caja/mostrador/cerrar", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	svc.cancel = false
	w = do(cajaRouter(svc, "supervisor"), http.MethodDelete, "/caja/mostrador/cerrar", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetActiva_NoSessionIs404(t *testing.T) {
	svc := &stubCaja{err: ledger.ErrNoOpenSession}
	w := do(cajaRouter(svc, "cajero"), http.MethodGet, "/caja/mostrador/activa", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReporte_BadAndUnknownID(t *testing.T) {
	w := do(cajaRouter(&stubCaja{}, "supervisor"), http.MethodGet, "/caja/sesiones/no-es-uuid/reporte", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(cajaRouter(&stubCaja{err: repository.ErrNotFound}, "supervisor"), http.MethodGet, "/caja/sesiones/"+uuid.NewString()+"/reporte", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(cajaRouter(&stubCaja{}, "supervisor"), http.MethodGet, "/caja/sesiones/"+uuid.NewString()+"/reporte", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOperaciones_ParsesSince(t *testing.T) {
	svc := &stubCaja{}
	path := "/caja/sesiones/" + uuid.NewString() + "/operaciones"

	w := do(cajaRouter(svc, "supervisor"), http.MethodGet, path+"?since=ayer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(cajaRouter(svc, "supervisor"), http.MethodGet, path+"?since=2026-04-20T08:30:00Z", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.since.Equal(time.Date(2026, 4, 20, 8, 30, 0, 0, time.UTC)))
}

func TestHistorial_ClampsPaging(t *testing.T) {
	svc := &stubCaja{}
	w := do(cajaRouter(svc, "supervisor"), http.MethodGet, "/caja/sesiones?page=0&limit=500&till=obrador&estado=closed", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.SessionFilter{TillID: "obrador", Status: "closed", Page: 1, Limit: 20}, svc.filter)

	w = do(cajaRouter(svc, "supervisor"), http.MethodGet, "/caja/sesiones?estado=pendiente", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport_SetsAttachment(t *testing.T) {
	w := do(cajaRouter(&stubCaja{}, "supervisor"), http.MethodGet, "/caja/sesiones/"+uuid.NewString()+"/export.xlsx", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "caja_mostrador_20260420.xlsx")
}

func TestDenominaciones(t *testing.T) {
	w := do(cajaRouter(&stubCaja{}, "cajero"), http.MethodGet, "/caja/denominaciones", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out []dto.DenominacionDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 15)
	assert.True(t, out[0].Valor.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "banknote", out[0].Tipo)
	assert.Equal(t, "coin", out[14].Tipo)
}

// ── SSE ──────────────────────────────────────────────────────────────────────

type chanStream struct {
	ch     chan events.SessionChanged
	closed bool
}

func (s *chanStream) Events() <-chan events.SessionChanged { return s.ch }
func (s *chanStream) Close() error                         { s.closed = true; return nil }

// sseRecorder adds the CloseNotifier that gin's Stream requires.
type sseRecorder struct {
	*httptest.ResponseRecorder
	gone chan bool
}

func (r *sseRecorder) CloseNotify() <-chan bool { return r.gone }

func doSSE(r *gin.Engine, path string) *sseRecorder {
	w := &sseRecorder{ResponseRecorder: httptest.NewRecorder(), gone: make(chan bool, 1)}
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestEventsStream_WritesSSE(t *testing.T) {
	stream := &chanStream{ch: make(chan events.SessionChanged, 2)}
	stream.ch <- events.SessionChanged{Type: events.TypeSessionChanged, TillID: "mostrador", Seq: 4}
	close(stream.ch)

	var gotTill string
	h := NewEventsHandler(func(_ context.Context, till string) (EventStream, error) {
		gotTill = till
		return stream, nil
	}, nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/caja/:till/events", h.Stream)

	w := doSSE(r, "/caja/mostrador/events")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mostrador", gotTill)
	assert.Contains(t, w.Body.String(), "event:session.changed")
	assert.Contains(t, w.Body.String(), `"seq":4`)
	assert.True(t, stream.closed)
}

func TestEventsStream_SubscribeFailure(t *testing.T) {
	h := NewEventsHandler(func(context.Context, string) (EventStream, error) {
		return nil, errors.New("redis down")
	}, nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/caja/:till/events", h.Stream)

	w := do(r, http.MethodGet, "/caja/mostrador/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
