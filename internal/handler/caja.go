package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/apierror"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/dto"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/ledger"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/middleware"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir godoc
// @Summary Abre una nueva sesion en la caja indicada
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param till path string true "Identificador de caja"
// @Param body body dto.AbrirCajaRequest true "Fondo inicial"
// @Success 201 {object} dto.SesionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/{till}/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), c.Param("till"), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Retiro godoc
// @Summary Registra un retiro de efectivo (requiere nota y permiso)
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param till path string true "Identificador de caja"
// @Param body body dto.MovimientoRequest true "Importe y motivo"
// @Success 201 {object} dto.SesionResponse
// @Failure 403 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/{till}/retiro [post]
func (h *CajaHandler) Retiro(c *gin.Context) {
	var req dto.MovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Retirar(c.Request.Context(), c.Param("till"), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ConsumoPropio godoc
// @Summary Registra un consumo propio del personal
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param till path string true "Identificador de caja"
// @Param body body dto.MovimientoRequest true "Importe"
// @Success 201 {object} dto.SesionResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/{till}/consumo-propio [post]
func (h *CajaHandler) ConsumoPropio(c *gin.Context) {
	var req dto.MovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ConsumoPropio(c.Request.Context(), c.Param("till"), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Devolucion godoc
// @Summary Registra una devolucion a cliente
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param till path string true "Identificador de caja"
// @Param body body dto.DevolucionRequest true "Importe, motivo y pedido"
// @Success 201 {object} dto.SesionResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/{till}/devolucion [post]
func (h *CajaHandler) Devolucion(c *gin.Context) {
	var req dto.DevolucionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Devolucion(c.Request.Context(), c.Param("till"), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Arqueo godoc
// @Summary Arqueo parcial informativo (no modifica el saldo teorico)
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param till path string true "Identificador de caja"
// @Param body body dto.ArqueoRequest true "Desglose por denominacion o importe"
// @Success 201 {object} dto.ArqueoResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/{till}/arqueo [post]
func (h *CajaHandler) Arqueo(c *gin.Context) {
	var req dto.ArqueoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if len(req.Denominaciones) == 0 && req.Monto == nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.WithCode("invalid_amount", "Indique denominaciones o monto"))
		return
	}
	resp, err := h.svc.Arqueo(c.Request.Context(), c.Param("till"), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary Cierra la sesion. Un descuadre significativo queda pendiente de confirmacion (409)
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param till path string true "Identificador de caja"
// @Param body body dto.CerrarCajaRequest true "Efectivo y tarjeta contados"
// @Success 200 {object} dto.CierreResponse
// @Failure 409 {object} dto.CierreResponse
// @Router /v1/caja/{till}/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), c.Param("till"), middleware.Actor(c), req)
	var warn *ledger.SignificantVarianceWarning
	if errors.As(err, &warn) {
		c.JSON(http.StatusConflict, resp)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmarCierre godoc
// @Summary Confirma un cierre retenido por descuadre significativo
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param till path string true "Identificador de caja"
// @Param body body dto.ConfirmarCierreRequest true "Observacion obligatoria"
// @Success 200 {object} dto.CierreResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/{till}/cerrar/confirmar [post]
func (h *CajaHandler) ConfirmarCierre(c *gin.Context) {
	var req dto.ConfirmarCierreRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ConfirmarCierre(c.Request.Context(), c.Param("till"), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelarCierre discards a close waiting for confirmation.
func (h *CajaHandler) CancelarCierre(c *gin.Context) {
	cancelled, err := h.svc.CancelarCierre(c.Request.Context(), c.Param("till"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, apierror.WithCode("no_pending_close", ledger.ErrNoPendingClose.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}

// GetActiva returns the open session of the till.
func (h *CajaHandler) GetActiva(c *gin.Context) {
	resp, err := h.svc.GetActiva(c.Request.Context(), c.Param("till"))
	if errors.Is(err, ledger.ErrNoOpenSession) {
		c.JSON(http.StatusNotFound, apierror.WithCode("no_open_session", "Sin sesion activa"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Denominaciones returns the blank count form.
func (h *CajaHandler) Denominaciones(c *gin.Context) {
	denoms := ledger.EuroDenominations()
	out := make([]dto.DenominacionDTO, len(denoms))
	for i, d := range denoms {
		out[i] = dto.DenominacionDTO{Valor: d.FaceValue, Tipo: string(d.Kind)}
	}
	c.JSON(http.StatusOK, out)
}

// Reporte godoc
// @Summary Reporte de una sesion: operaciones, totales por tipo y cierre pendiente
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.ReporteCajaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/reporte [get]
func (h *CajaHandler) Reporte(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Reporte(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Operaciones returns the operations of a session created at or after ?since.
func (h *CajaHandler) Operaciones(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("since debe ser RFC3339"))
			return
		}
		since = t
	}
	resp, err := h.svc.OperacionesDesde(c.Request.Context(), id, since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Historial returns a paginated list of sessions, newest first.
func (h *CajaHandler) Historial(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	estado := c.Query("estado")
	if estado != "" && estado != "open" && estado != "closed" {
		c.JSON(http.StatusBadRequest, apierror.New("estado debe ser open o closed"))
		return
	}
	resp, err := h.svc.Historial(c.Request.Context(), dto.SessionFilter{
		TillID: c.Query("till"),
		Status: estado,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Export streams the session as an .xlsx workbook.
func (h *CajaHandler) Export(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	buf, name, err := h.svc.ExportXLSX(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}
