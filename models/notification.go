package models

import "gorm.io/datatypes"

type NotificationType string

const (
	NotificationNewReferral       NotificationType = "NEW_REFERRAL"
	NotificationInvestorInterest  NotificationType = "INVESTOR_INTERESTED"
	NotificationPoke              NotificationType = "POKE"
	NotificationStageChanged      NotificationType = "NEGOTIATION_STAGE_CHANGED"
	NotificationNegotiationCancel NotificationType = "NEGOTIATION_CANCELLED"
	NotificationMeetingScheduled  NotificationType = "MEETING_SCHEDULED"
	NotificationPurchaseCompleted NotificationType = "PURCHASE_COMPLETED"
)

type Notification struct {
	Base
	UserID string            `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Type   NotificationType  `gorm:"type:varchar(40);not null" json:"type"`
	Read   bool              `gorm:"not null;default:false" json:"read"`
	Data   datatypes.JSONMap `json:"data"`
}
