package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SessionStatus: "open" | "closed"
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// OperationType is the kind of money movement recorded in the till ledger.
type OperationType string

const (
	OpOpening             OperationType = "opening"
	OpWithdrawal          OperationType = "withdrawal"
	OpPersonalConsumption OperationType = "personal_consumption"
	OpReturnRefund        OperationType = "return_refund"
	OpMidShiftCount       OperationType = "mid_shift_count"
	OpClosing             OperationType = "closing"
)

// OperationTypes lists every operation type in ledger order of appearance.
var OperationTypes = []OperationType{
	OpOpening, OpWithdrawal, OpPersonalConsumption, OpReturnRefund, OpMidShiftCount, OpClosing,
}

// PaymentChannel: "cash" | "card". Only meaningful for return_refund.
type PaymentChannel string

const (
	ChannelCash PaymentChannel = "cash"
	ChannelCard PaymentChannel = "card"
)

// TillSession is one open-to-close cash drawer shift.
// TheoreticalBalance always equals the replay of Operations; it is only moved
// by appending operations through the ledger controller.
type TillSession struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TillID             string          `gorm:"type:varchar(40);not null;index" json:"till_id"`
	OpenedBy           uuid.UUID       `gorm:"type:uuid;not null" json:"opened_by"`
	OpeningFloat       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"opening_float"`
	TheoreticalBalance decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"theoretical_balance"`
	Status             SessionStatus   `gorm:"type:varchar(10);not null;default:'open'" json:"status"`
	OpenedAt           time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt           *time.Time      `json:"closed_at,omitempty"`
	ClosedBy           *uuid.UUID      `gorm:"type:uuid" json:"closed_by,omitempty"`

	// Populated only at close.
	CountedCash           *decimal.Decimal `gorm:"type:decimal(12,2)" json:"counted_cash,omitempty"`
	CountedCard           *decimal.Decimal `gorm:"type:decimal(12,2)" json:"counted_card,omitempty"`
	ClosingCount          *decimal.Decimal `gorm:"type:decimal(12,2)" json:"closing_count,omitempty"`
	ClosingDiscrepancy    *decimal.Decimal `gorm:"type:decimal(12,2)" json:"closing_discrepancy,omitempty"`
	ClosingDiscrepancyPct *decimal.Decimal `gorm:"type:decimal(7,2)" json:"closing_discrepancy_pct,omitempty"`
	// ClosingClassification: "balanced" | "surplus" | "shortfall"
	ClosingClassification *string `gorm:"type:varchar(20)" json:"closing_classification,omitempty"`
	ClosingSignificant    bool    `gorm:"not null;default:false" json:"closing_significant"`
	ClosingNote           *string `json:"closing_note,omitempty"`

	Operations []CashOperation `gorm:"foreignKey:SessionID" json:"operations"`
}

// CashOperation is an immutable entry in the till ledger.
// Amount is always stored positive; the sign of its effect depends on Type.
// Operations are NEVER modified or deleted; corrections are new offsetting entries.
type CashOperation struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_cash_operations_seq,priority:1" json:"session_id"`
	Seq       int             `gorm:"not null;uniqueIndex:ux_cash_operations_seq,priority:2" json:"seq"`
	Type      OperationType   `gorm:"type:varchar(30);not null" json:"type"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	// BalanceAfter is the theoretical balance right after this entry was appended.
	BalanceAfter   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	ActorID        uuid.UUID       `gorm:"type:uuid;not null" json:"actor_id"`
	Note           string          `gorm:"not null;default:''" json:"note"`
	RelatedOrderID *string         `gorm:"type:varchar(64)" json:"related_order_id,omitempty"`
	PaymentChannel *PaymentChannel `gorm:"type:varchar(10)" json:"payment_channel,omitempty"`

	// Count fields: set on mid_shift_count and closing entries.
	Discrepancy    *decimal.Decimal `gorm:"type:decimal(12,2)" json:"discrepancy,omitempty"`
	Classification *string          `gorm:"type:varchar(20)" json:"classification,omitempty"`
	Significant    bool             `gorm:"not null;default:false" json:"significant"`
	Denominations  datatypes.JSON   `json:"denominations,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (TillSession) TableName() string   { return "till_sessions" }
func (CashOperation) TableName() string { return "cash_operations" }
