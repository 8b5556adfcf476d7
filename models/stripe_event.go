package models

import "time"

// StripeEvent records a webhook event that has been applied.
type StripeEvent struct {
	ID          string    `gorm:"primaryKey;type:varchar(255)" json:"id"`
	Type        string    `gorm:"not null" json:"type"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}
