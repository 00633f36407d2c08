package worker

// cierre_worker.go
// Processes closing report jobs from QueueCierre:
//  1. Load the closed session with its full ledger
//  2. Render the PDF closing report (fpdf)
//  3. Enqueue an email with the report when a recipient is configured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/infra"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CierreJobPayload is the job envelope sent to QueueCierre.
type CierreJobPayload struct {
	SessionID string `json:"session_id"`
	TillID    string `json:"till_id"`
}

// SessionFinder is the slice of the repository the worker needs.
type SessionFinder interface {
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.TillSession, error)
}

// EmailEnqueuer is satisfied by *Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type CierreWorker struct {
	sessions       SessionFinder
	emails         EmailEnqueuer
	pdfStoragePath string
	reportTo       []string
}

// NewCierreWorker wires the closing report worker. reportTo may be empty to
// only store the PDF.
func NewCierreWorker(sessions SessionFinder, emails EmailEnqueuer, pdfStoragePath string, reportTo []string) *CierreWorker {
	return &CierreWorker{
		sessions:       sessions,
		emails:         emails,
		pdfStoragePath: pdfStoragePath,
		reportTo:       reportTo,
	}
}

func (w *CierreWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload CierreJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("cierre_worker: invalid payload")
		return nil
	}
	id, err := uuid.Parse(payload.SessionID)
	if err != nil {
		log.Error().Str("session_id", payload.SessionID).Msg("cierre_worker: invalid session_id")
		return nil
	}

	s, err := w.sessions.FindSessionByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		log.Error().Str("session_id", payload.SessionID).Msg("cierre_worker: session not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cierre_worker: load session: %w", err)
	}
	if s.Status != model.SessionClosed {
		log.Warn().Str("session_id", payload.SessionID).Msg("cierre_worker: session still open, skipping")
		return nil
	}

	path, err := infra.GenerateClosingReportPDF(s, w.pdfStoragePath)
	if err != nil {
		return fmt.Errorf("cierre_worker: %w", err)
	}
	log.Info().Str("till_id", s.TillID).Str("session_id", s.ID.String()).Str("pdf", path).
		Msg("cierre_worker: closing report generated")

	if len(w.reportTo) == 0 || w.emails == nil {
		return nil
	}
	return w.emails.EnqueueEmail(ctx, EmailJobPayload{
		To:      w.reportTo,
		Subject: fmt.Sprintf("Cierre de caja %s (%s)", s.TillID, s.OpenedAt.Format("02/01/2006")),
		Body:    reportBody(s),
		Attach:  path,
	})
}

func reportBody(s *model.TillSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Caja: %s\n", s.TillID)
	fmt.Fprintf(&b, "Saldo teorico: %s\n", s.TheoreticalBalance.StringFixed(2))
	if s.ClosingCount != nil {
		fmt.Fprintf(&b, "Contado: %s\n", s.ClosingCount.StringFixed(2))
	}
	if s.ClosingDiscrepancy != nil {
		fmt.Fprintf(&b, "Descuadre: %s", s.ClosingDiscrepancy.StringFixed(2))
		if s.ClosingClassification != nil {
			fmt.Fprintf(&b, " (%s)", *s.ClosingClassification)
		}
		b.WriteString("\n")
	}
	if s.ClosingNote != nil {
		fmt.Fprintf(&b, "Observaciones: %s\n", *s.ClosingNote)
	}
	return b.String()
}
