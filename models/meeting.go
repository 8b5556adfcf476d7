package models

import (
	"time"

	"gorm.io/gorm"
)

type Meeting struct {
	Base
	NegotiationID string       `gorm:"type:varchar(36);index;not null" json:"negotiation_id"`
	Negotiation   *Negotiation `json:"negotiation,omitempty"`
	RoomName      string       `gorm:"uniqueIndex;not null" json:"room_name"`
	URL           string       `gorm:"not null" json:"url"`
	StartDate     time.Time    `gorm:"not null" json:"start_date"`
	EndDate       time.Time    `gorm:"index;not null" json:"end_date"`
	CreatedByID   string       `gorm:"type:varchar(36);not null" json:"created_by_id"`
}

// DeleteMeetingsOf removes the meetings of the given negotiations and returns
// the names of the rooms they held, for the caller to release once tx commits.
func DeleteMeetingsOf(tx *gorm.DB, negotiationIDs []string) ([]string, error) {
	if len(negotiationIDs) == 0 {
		return nil, nil
	}
	var rooms []string
	if err := tx.Model(&Meeting{}).Where("negotiation_id IN ?", negotiationIDs).Pluck("room_name", &rooms).Error; err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	if err := tx.Where("negotiation_id IN ?", negotiationIDs).Delete(&Meeting{}).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// CloseNegotiations soft-deletes the negotiations matched by query together
// with their meetings and returns the rooms to release.
func CloseNegotiations(tx *gorm.DB, query string, args ...interface{}) ([]string, error) {
	var ids []string
	if err := tx.Model(&Negotiation{}).Where(query, args...).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rooms, err := DeleteMeetingsOf(tx, ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", ids).Delete(&Negotiation{}).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}
