package models

import (
	"strings"

	"gorm.io/gorm"
)

type UserType string

const (
	UserTypeEntrepreneur UserType = "ENTREPRENEUR"
	UserTypeInvestor     UserType = "INVESTOR"
	UserTypePartner      UserType = "PARTNER"
	UserTypeIncubator    UserType = "INCUBATOR"
	UserTypeAdmin        UserType = "ADMIN"
)

// Valid reports whether t can be picked during onboarding. Admins are
// promoted out of band.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeEntrepreneur, UserTypeInvestor, UserTypePartner, UserTypeIncubator:
		return true
	}
	return false
}

type User struct {
	Base
	ClerkID          string         `gorm:"uniqueIndex;not null" json:"-"`
	Email            string         `gorm:"uniqueIndex;not null" json:"email"`
	FirstName        string         `json:"first_name"`
	LastName         string         `json:"last_name"`
	UserType         UserType       `gorm:"type:varchar(20);not null" json:"user_type"`
	ReferralCode     string         `gorm:"uniqueIndex;not null" json:"referral_code"`
	EmailVerified    bool           `gorm:"not null;default:false" json:"email_verified"`
	AvailablePokes   int            `gorm:"not null;default:0" json:"available_pokes"`
	AvailableBoosts  int            `gorm:"not null;default:0" json:"available_boosts"`
	StripeCustomerID string         `json:"-"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
