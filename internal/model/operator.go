package model

import (
	"time"

	"github.com/google/uuid"
)

// Operator is a till user.
// Rol: "cajero" | "supervisor" | "administrador"
type Operator struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Nombre       string    `gorm:"not null"`
	Email        *string
	PasswordHash string `gorm:"not null"`
	Rol          string `gorm:"type:varchar(20);not null"`
	// TillID pins a cashier to a single till; nil = any till
	TillID    *string `gorm:"type:varchar(40)"`
	Activo    bool    `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Operator) TableName() string { return "operators" }
