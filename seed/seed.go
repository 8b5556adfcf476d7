package seed

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
)

var DefaultAreas = []string{
	"Agribusiness",
	"Artificial Intelligence",
	"Biotechnology",
	"Clean Energy",
	"Consumer Goods",
	"Real Estate",
	"E-commerce",
	"Education",
	"Fintech",
	"Healthcare",
	"Logistics",
	"Media & Entertainment",
	"SaaS",
	"Tourism",
}

// SeedAreas inserts the default sectors, leaving existing rows untouched.
func SeedAreas(db *gorm.DB) error {
	areas := make([]models.Area, 0, len(DefaultAreas))
	for _, name := range DefaultAreas {
		areas = append(areas, models.Area{Name: name})
	}

	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&areas)
	if res.Error != nil {
		return res.Error
	}

	logger.L().Info("areas seeded", "inserted", res.RowsAffected)
	return nil
}
