package infra

// pdf.go — closing report ("informe de cierre") rendered with go-pdf/fpdf.
// One A4 page per session:
//   - till, session id, opened / closed timestamps
//   - ledger table: seq, time, type, amount, running balance
//   - closing block: theoretical balance, counted cash + card, discrepancy
//
// The output file is saved to storagePath/cierre_{till}_{session}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// OperationLabel is the Spanish label of an operation type used on reports.
func OperationLabel(t model.OperationType) string {
	switch t {
	case model.OpOpening:
		return "Apertura"
	case model.OpWithdrawal:
		return "Retiro"
	case model.OpPersonalConsumption:
		return "Consumo propio"
	case model.OpReturnRefund:
		return "Devolucion"
	case model.OpMidShiftCount:
		return "Arqueo parcial"
	case model.OpClosing:
		return "Cierre"
	default:
		return string(t)
	}
}

// GenerateClosingReportPDF renders the closing report of a session and
// returns the path of the written file.
func GenerateClosingReportPDF(s *model.TillSession, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("cierre_%s_%s.pdf", filepath.Base(s.TillID), s.ID)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 8, "Informe de cierre de caja", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Caja: "+s.TillID, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Sesion: "+s.ID.String(), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Apertura: "+s.OpenedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	if s.ClosedAt != nil {
		pdf.CellFormat(contentW, 5, "Cierre: "+s.ClosedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// ── Ledger table ─────────────────────────────────────────────────────────
	cols := []struct {
		title string
		w     float64
		align string
	}{
		{"#", contentW * 0.06, "C"},
		{"Hora", contentW * 0.12, "C"},
		{"Tipo", contentW * 0.30, "L"},
		{"Importe", contentW * 0.18, "R"},
		{"Saldo", contentW * 0.18, "R"},
		{"Canal", contentW * 0.16, "C"},
	}
	pdf.SetFont("Helvetica", "B", 8)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(c.w, 6, c.title, "B", ln, c.align, false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 8)
	for _, op := range s.Operations {
		channel := ""
		if op.PaymentChannel != nil {
			channel = string(*op.PaymentChannel)
		}
		row := []string{
			fmt.Sprintf("%d", op.Seq),
			op.CreatedAt.Format("15:04:05"),
			OperationLabel(op.Type),
			op.Amount.StringFixed(2),
			op.BalanceAfter.StringFixed(2),
			channel,
		}
		for i, c := range cols {
			ln := 0
			if i == len(cols)-1 {
				ln = 1
			}
			pdf.CellFormat(c.w, 5, row[i], "", ln, c.align, false, 0, "")
		}
	}

	pdf.Ln(2)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(2)

	// ── Closing block ────────────────────────────────────────────────────────
	labelW := contentW * 0.6
	valueW := contentW * 0.4
	line := func(label string, v *decimal.Decimal) {
		val := "-"
		if v != nil {
			val = v.StringFixed(2)
		}
		pdf.CellFormat(labelW, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 5, val, "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 9)
	line("Fondo inicial", &s.OpeningFloat)
	line("Saldo teorico", &s.TheoreticalBalance)
	line("Efectivo contado", s.CountedCash)
	line("Tarjeta declarada", s.CountedCard)
	pdf.SetFont("Helvetica", "B", 10)
	line("Descuadre", s.ClosingDiscrepancy)
	pdf.SetFont("Helvetica", "", 9)
	if s.ClosingDiscrepancyPct != nil {
		pdf.CellFormat(labelW, 5, "Descuadre %", "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 5, s.ClosingDiscrepancyPct.StringFixed(2)+" %", "", 1, "R", false, 0, "")
	}
	if s.ClosingClassification != nil {
		pdf.CellFormat(labelW, 5, "Resultado", "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 5, *s.ClosingClassification, "", 1, "R", false, 0, "")
	}
	if s.ClosingSignificant {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentW, 6, "Descuadre significativo confirmado por supervisor", "", 1, "L", false, 0, "")
	}
	if s.ClosingNote != nil {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, "Observaciones: "+*s.ClosingNote, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
