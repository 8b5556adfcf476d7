package models

import "gorm.io/gorm"

type Investor struct {
	Base
	UserID             string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	User               *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	About              string         `json:"about"`
	Country            string         `json:"country"`
	InvestmentMinValue int64          `gorm:"not null" json:"investment_min_value"`
	InvestmentMaxValue int64          `gorm:"not null" json:"investment_max_value"`
	Areas              []Area         `gorm:"many2many:investor_areas;" json:"areas"`
	PhotoKey           string         `json:"photo_key"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// AreaIDs returns the ids of the loaded areas.
func (i Investor) AreaIDs() []uint {
	ids := make([]uint, 0, len(i.Areas))
	for _, a := range i.Areas {
		ids = append(ids, a.ID)
	}
	return ids
}
