package models

import "time"

type HyperTrainItemType string

const (
	HyperTrainProject  HyperTrainItemType = "PROJECT"
	HyperTrainInvestor HyperTrainItemType = "INVESTOR"
)

// HyperTrainItem is a paid placement in the rotating feed.
type HyperTrainItem struct {
	Base
	UserID         string             `gorm:"type:varchar(36);index;not null" json:"user_id"`
	ExternalID     string             `gorm:"type:varchar(36);index;not null" json:"external_id"`
	Type           HyperTrainItemType `gorm:"type:varchar(10);not null" json:"type"`
	Name           string             `gorm:"not null" json:"name"`
	Link           string             `json:"link"`
	ImageKey       string             `json:"image_key"`
	ExpirationDate time.Time          `gorm:"index;not null" json:"expiration_date"`
}

func (h HyperTrainItem) Active(now time.Time) bool {
	return h.ExpirationDate.After(now)
}
