package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	FondoInicial decimal.Decimal `json:"fondo_inicial" validate:"min=0"`
	Nota         string          `json:"nota"          validate:"max=500"`
}

// MovimientoRequest is used by retiro and consumo-propio.
type MovimientoRequest struct {
	Monto decimal.Decimal `json:"monto" validate:"required,gt=0"`
	Nota  string          `json:"nota"  validate:"max=500"`
}

type DevolucionRequest struct {
	Monto    decimal.Decimal `json:"monto"     validate:"required,gt=0"`
	Nota     string          `json:"nota"      validate:"required,max=500"`
	PedidoID *string         `json:"pedido_id" validate:"omitempty,max=64"`
	Canal    string          `json:"canal"     validate:"omitempty,oneof=cash card"`
}

type DenominacionDTO struct {
	Valor    decimal.Decimal `json:"valor"    validate:"required,gt=0"`
	Tipo     string          `json:"tipo"     validate:"omitempty,oneof=banknote coin"`
	Cantidad int             `json:"cantidad"`
}

// ArqueoRequest carries either a denomination breakdown or a direct amount.
type ArqueoRequest struct {
	Denominaciones []DenominacionDTO `json:"denominaciones" validate:"omitempty,dive"`
	Monto          *decimal.Decimal  `json:"monto"`
}

type CerrarCajaRequest struct {
	Efectivo decimal.Decimal `json:"efectivo" validate:"min=0"`
	Tarjeta  decimal.Decimal `json:"tarjeta"  validate:"min=0"`
	Nota     string          `json:"nota"     validate:"max=500"`
}

type ConfirmarCierreRequest struct {
	Nota string `json:"nota" validate:"required,max=500"`
}

// SessionFilter drives the paginated session history.
type SessionFilter struct {
	TillID string
	Status string
	Page   int
	Limit  int
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ReconciliacionResponse struct {
	Teorico       decimal.Decimal `json:"teorico"`
	Contado       decimal.Decimal `json:"contado"`
	Descuadre     decimal.Decimal `json:"descuadre"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // balanced | surplus | shortfall
	Significativo bool            `json:"significativo"`
}

type OperacionResponse struct {
	ID             string           `json:"id"`
	Seq            int              `json:"seq"`
	Tipo           string           `json:"tipo"`
	Monto          decimal.Decimal  `json:"monto"`
	SaldoTras      decimal.Decimal  `json:"saldo_tras"`
	OperadorID     string           `json:"operador_id"`
	Nota           string           `json:"nota,omitempty"`
	PedidoID       *string          `json:"pedido_id,omitempty"`
	Canal          *string          `json:"canal,omitempty"`
	Descuadre      *decimal.Decimal `json:"descuadre,omitempty"`
	Clasificacion  *string          `json:"clasificacion,omitempty"`
	Significativo  bool             `json:"significativo,omitempty"`
	Denominaciones json.RawMessage  `json:"denominaciones,omitempty"`
	CreatedAt      string           `json:"created_at"`
}

type CierreDetalle struct {
	Efectivo      decimal.Decimal `json:"efectivo"`
	Tarjeta       decimal.Decimal `json:"tarjeta"`
	Contado       decimal.Decimal `json:"contado"`
	Descuadre     decimal.Decimal `json:"descuadre"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"`
	Significativo bool            `json:"significativo"`
	Observaciones *string         `json:"observaciones"`
	CerradaPor    string          `json:"cerrada_por"`
	ClosedAt      string          `json:"closed_at"`
}

type SesionResponse struct {
	ID           string              `json:"id"`
	TillID       string              `json:"till_id"`
	AbiertaPor   string              `json:"abierta_por"`
	FondoInicial decimal.Decimal     `json:"fondo_inicial"`
	SaldoTeorico decimal.Decimal     `json:"saldo_teorico"`
	Estado       string              `json:"estado"` // open | closed
	OpenedAt     string              `json:"opened_at"`
	Cierre       *CierreDetalle      `json:"cierre"`
	Operaciones  []OperacionResponse `json:"operaciones,omitempty"`
}

type ArqueoResponse struct {
	Sesion         SesionResponse         `json:"sesion"`
	Reconciliacion ReconciliacionResponse `json:"reconciliacion"`
}

// CierreResponse is returned by cerrar and cerrar/confirmar. When
// RequiresConfirmation is set the session is still open.
type CierreResponse struct {
	Sesion               SesionResponse         `json:"sesion"`
	Reconciliacion       ReconciliacionResponse `json:"reconciliacion"`
	RequiresConfirmation bool                   `json:"requires_confirmation"`
	Umbral               string                 `json:"umbral,omitempty"`
}

// ReporteCajaResponse is the history/reporting view of one session.
type ReporteCajaResponse struct {
	Sesion          SesionResponse             `json:"sesion"`
	TotalesPorTipo  map[string]decimal.Decimal `json:"totales_por_tipo"`
	CierrePendiente *ReconciliacionResponse    `json:"cierre_pendiente"`
}

type HistorialResponse struct {
	Data  []SesionResponse `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}
