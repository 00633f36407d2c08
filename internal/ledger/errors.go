package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyOpen           = errors.New("a till session is already open")
	ErrNoOpenSession         = errors.New("no open till session")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrNoteRequired          = errors.New("note is required")
	ErrInsufficientBalance   = errors.New("amount exceeds theoretical balance")
	ErrInvalidChannel        = errors.New("invalid payment channel")
	ErrUnauthorized          = errors.New("operator not authorized")
	ErrDuplicateDenomination = errors.New("duplicate denomination")
	ErrInvalidDenomination   = errors.New("invalid denomination")
	ErrNoPendingClose        = errors.New("no close awaiting confirmation")
	ErrSessionClosed         = errors.New("till session is closed")
)

// SignificantVarianceWarning is returned by Close when the discrepancy exceeds
// the significant-variance threshold. The session is left open; the close only
// lands after ConfirmClose.
type SignificantVarianceWarning struct {
	Reconciliation Reconciliation
	Threshold      string
}

func (w *SignificantVarianceWarning) Error() string {
	return fmt.Sprintf("significant variance %s exceeds threshold %s: confirmation required",
		w.Reconciliation.Discrepancy.StringFixed(2), w.Threshold)
}
