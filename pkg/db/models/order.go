package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order persists a confirmed cart snapshot.
type Order struct {
	ID                  string          `gorm:"column:id;primaryKey"`
	Total               decimal.Decimal `gorm:"column:total;type:text;not null"`
	PlacedAt            time.Time       `gorm:"column:placed_at;not null"`
	SubmissionStatus    string          `gorm:"column:submission_status;not null"`
	SubmissionAttempts  int             `gorm:"column:submission_attempts;not null;default:0"`
	LastSubmissionError *string         `gorm:"column:last_submission_error"`
	RemoteID            *string         `gorm:"column:remote_id"`
	SubmittedAt         *time.Time      `gorm:"column:submitted_at"`
	SubmissionClaimedAt *time.Time      `gorm:"column:submission_claimed_at"`
	Items               []OrderLineItem `gorm:"foreignKey:OrderID;references:ID"`
}

func (Order) TableName() string { return "orders" }
