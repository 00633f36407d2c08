package infra

import (
	"bytes"
	"fmt"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"

	"github.com/xuri/excelize/v2"
)

// SessionWorkbook renders a session as a spreadsheet with two sheets: a
// summary and the full ledger in append order.
func SessionWorkbook(s *model.TillSession) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheetSummary = "Resumen"
	const sheetLedger = "Operaciones"

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetLedger); err != nil {
		return nil, fmt.Errorf("xlsx: new sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	writeRow := func(sheet string, row int, values []any) {
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	// ── Summary ──────────────────────────────────────────────────────────────
	summary := [][]any{
		{"Caja", s.TillID},
		{"Sesion", s.ID.String()},
		{"Estado", string(s.Status)},
		{"Apertura", s.OpenedAt.Format("2006-01-02 15:04:05")},
		{"Fondo inicial", s.OpeningFloat.InexactFloat64()},
		{"Saldo teorico", s.TheoreticalBalance.InexactFloat64()},
	}
	if s.ClosedAt != nil {
		summary = append(summary, []any{"Cierre", s.ClosedAt.Format("2006-01-02 15:04:05")})
	}
	if s.ClosingCount != nil {
		summary = append(summary, []any{"Contado", s.ClosingCount.InexactFloat64()})
	}
	if s.ClosingDiscrepancy != nil {
		summary = append(summary, []any{"Descuadre", s.ClosingDiscrepancy.InexactFloat64()})
	}
	if s.ClosingClassification != nil {
		summary = append(summary, []any{"Resultado", *s.ClosingClassification})
	}
	for i, row := range summary {
		writeRow(sheetSummary, i+1, row)
	}
	f.SetCellStyle(sheetSummary, "A1", fmt.Sprintf("A%d", len(summary)), headerStyle)

	// ── Ledger ───────────────────────────────────────────────────────────────
	headers := []any{"Seq", "Fecha", "Tipo", "Importe", "Saldo", "Canal", "Pedido", "Descuadre", "Nota"}
	writeRow(sheetLedger, 1, headers)
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheetLedger, "A1", last, headerStyle)

	for i, op := range s.Operations {
		var channel, order, disc any = "", "", ""
		if op.PaymentChannel != nil {
			channel = string(*op.PaymentChannel)
		}
		if op.RelatedOrderID != nil {
			order = *op.RelatedOrderID
		}
		if op.Discrepancy != nil {
			disc = op.Discrepancy.InexactFloat64()
		}
		writeRow(sheetLedger, i+2, []any{
			op.Seq,
			op.CreatedAt.Format("2006-01-02 15:04:05"),
			OperationLabel(op.Type),
			op.Amount.InexactFloat64(),
			op.BalanceAfter.InexactFloat64(),
			channel,
			order,
			disc,
			op.Note,
		})
	}
	f.AutoFilter(sheetLedger, "A1:"+last, []excelize.AutoFilterOptions{})
	f.SetPanes(sheetLedger, &excelize.Panes{Freeze: true, Split: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf, nil
}
