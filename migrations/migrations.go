package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/models"
)

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Area{},
		&models.Investor{},
		&models.Project{},
		&models.Negotiation{},
		&models.Meeting{},
		&models.Referral{},
		&models.Notification{},
		&models.HyperTrainItem{},
		&models.StripeEvent{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
