package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event is one append-only outbox row. Exactly one row is written per
// successful state transition, inside the transition's transaction.
type Event struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	Type       string         `gorm:"type:text;not null;index" json:"type"`
	EntityKind string         `gorm:"type:text;not null" json:"entity_kind"`
	EntityID   uint64         `gorm:"not null;index" json:"entity_id"`
	Payload    datatypes.JSON `gorm:"not null" json:"payload"`
	EmittedAt  time.Time      `gorm:"not null" json:"emitted_at"`
}

func (Event) TableName() string { return "domain_events" }

const (
	EntityKindPayment = "payment"
	EntityKindRefund  = "refund"
)
