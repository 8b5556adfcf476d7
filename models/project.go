package models

import (
	"time"

	"gorm.io/gorm"
)

type ProjectStage string

const (
	ProjectStagePreSeed ProjectStage = "PRE_SEED"
	ProjectStageSeed    ProjectStage = "SEED"
	ProjectStageSeriesA ProjectStage = "SERIES_A"
	ProjectStageSeriesB ProjectStage = "SERIES_B"
	ProjectStageSeriesC ProjectStage = "SERIES_C"
	ProjectStageIPO     ProjectStage = "IPO"
)

func (s ProjectStage) Valid() bool {
	switch s {
	case ProjectStagePreSeed, ProjectStageSeed, ProjectStageSeriesA,
		ProjectStageSeriesB, ProjectStageSeriesC, ProjectStageIPO:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

type Project struct {
	Base
	EntrepreneurID  string         `gorm:"type:varchar(36);index;not null" json:"entrepreneur_id"`
	Entrepreneur    *User          `gorm:"foreignKey:EntrepreneurID" json:"entrepreneur,omitempty"`
	Name            string         `gorm:"not null" json:"name"`
	QuickSolution   string         `json:"quick_solution"`
	About           string         `json:"about"`
	AreaID          uint           `gorm:"index;not null" json:"area_id"`
	Area            *Area          `json:"area,omitempty"`
	Stage           ProjectStage   `gorm:"type:varchar(20);not null" json:"stage"`
	StartInvestment int64          `gorm:"not null" json:"start_investment"`
	InvestmentGoal  int64          `gorm:"not null" json:"investment_goal"`
	Equity          float64        `json:"equity"`
	Visibility      Visibility     `gorm:"type:varchar(10);not null;default:'PUBLIC'" json:"visibility"`
	LogoKey         string         `json:"logo_key"`
	BoostedUntil    *time.Time     `json:"boosted_until"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Project) IsBoosted(now time.Time) bool {
	return p.BoostedUntil != nil && p.BoostedUntil.After(now)
}

// Boost stacks d on top of any boost still running.
func (p *Project) Boost(now time.Time, d time.Duration) {
	start := now
	if p.IsBoosted(now) {
		start = *p.BoostedUntil
	}
	until := start.Add(d)
	p.BoostedUntil = &until
}
