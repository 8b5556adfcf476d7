package models

type Referral struct {
	Base
	ReferrerID string `gorm:"type:varchar(36);index;not null" json:"referrer_id"`
	ReferredID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"referred_id"`
	Referred   *User  `gorm:"foreignKey:ReferredID" json:"referred,omitempty"`
	Code       string `gorm:"not null" json:"code"`
}
