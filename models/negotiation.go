package models

import (
	"errors"

	"gorm.io/gorm"
)

type NegotiationStage string

const (
	StagePitch       NegotiationStage = "PITCH"
	StageNegotiation NegotiationStage = "NEGOTIATION"
	StageDetails     NegotiationStage = "DETAILS"
	StageClosed      NegotiationStage = "CLOSED"
)

var stageOrder = []NegotiationStage{StagePitch, StageNegotiation, StageDetails, StageClosed}

// Next returns the stage following s. CLOSED has no successor.
func (s NegotiationStage) Next() (NegotiationStage, bool) {
	for i, stage := range stageOrder {
		if stage == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return s, false
}

// Party identifies a side of a negotiation.
type Party string

const (
	PartyInvestor     Party = "INVESTOR"
	PartyEntrepreneur Party = "ENTREPRENEUR"
)

var (
	ErrNegotiationClosed = errors.New("negotiation is closed")
	ErrUnknownParty      = errors.New("unknown negotiation party")
)

type Negotiation struct {
	Base
	ProjectID            string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_negotiations_live,where:deleted_at IS NULL" json:"project_id"`
	Project              *Project         `json:"project,omitempty"`
	InvestorID           string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_negotiations_live,where:deleted_at IS NULL" json:"investor_id"`
	Investor             *Investor        `json:"investor,omitempty"`
	Stage                NegotiationStage `gorm:"type:varchar(20);not null" json:"stage"`
	InvestorApproved     bool             `gorm:"not null;default:false" json:"investor_approved"`
	EntrepreneurApproved bool             `gorm:"not null;default:false" json:"entrepreneur_approved"`
	InitiatedBy          Party            `gorm:"type:varchar(20);not null" json:"initiated_by"`
	DeletedAt            gorm.DeletedAt   `gorm:"index" json:"-"`
}

// Approve records p's approval of the current stage. Once both sides have
// approved, the negotiation moves to the next stage with both flags cleared.
func (n *Negotiation) Approve(p Party) (advanced bool, err error) {
	if n.Stage == StageClosed {
		return false, ErrNegotiationClosed
	}

	switch p {
	case PartyInvestor:
		n.InvestorApproved = true
	case PartyEntrepreneur:
		n.EntrepreneurApproved = true
	default:
		return false, ErrUnknownParty
	}

	if !n.InvestorApproved || !n.EntrepreneurApproved {
		return false, nil
	}

	next, ok := n.Stage.Next()
	if !ok {
		return false, ErrNegotiationClosed
	}
	n.Stage = next
	n.InvestorApproved = false
	n.EntrepreneurApproved = false
	return true, nil
}

// Counterpart returns the other side.
func (p Party) Counterpart() Party {
	if p == PartyInvestor {
		return PartyEntrepreneur
	}
	return PartyInvestor
}
