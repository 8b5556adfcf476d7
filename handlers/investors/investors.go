package investors

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

var ErrUnknownArea = errors.New("one or more areas do not exist")

type InvestorRequest struct {
	About              string `json:"about"`
	Country            string `json:"country" binding:"required"`
	InvestmentMinValue int64  `json:"investment_min_value" binding:"gte=0"`
	InvestmentMaxValue int64  `json:"investment_max_value" binding:"gtefield=InvestmentMinValue"`
	AreaIDs            []uint `json:"area_ids" binding:"required,min=1,dive,gt=0"`
	PhotoKey           string `json:"photo_key"`
}

// FindByUser loads the investor profile of userID with its areas.
func FindByUser(db *gorm.DB, userID string) (*models.Investor, error) {
	var investor models.Investor
	if err := db.Preload("Areas").Where("user_id = ?", userID).First(&investor).Error; err != nil {
		return nil, err
	}
	return &investor, nil
}

func userSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "first_name", "last_name", "user_type")
}

// UpsertMyInvestor creates or replaces the caller's investor profile.
func UpsertMyInvestor(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var req InvestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var investor models.Investor
	err := utils.DB.Transaction(func(tx *gorm.DB) error {
		var areas []models.Area
		if err := tx.Where("id IN ?", req.AreaIDs).Find(&areas).Error; err != nil {
			return err
		}
		if len(areas) != len(uniq(req.AreaIDs)) {
			return ErrUnknownArea
		}

		err := tx.Where("user_id = ?", user.ID).First(&investor).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		investor.UserID = user.ID
		investor.About = req.About
		investor.Country = req.Country
		investor.InvestmentMinValue = req.InvestmentMinValue
		investor.InvestmentMaxValue = req.InvestmentMaxValue
		investor.PhotoKey = req.PhotoKey

		if err := tx.Omit(clause.Associations).Save(&investor).Error; err != nil {
			return err
		}
		return tx.Model(&investor).Association("Areas").Replace(areas)
	})
	if errors.Is(err, ErrUnknownArea) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.L().Error("failed to save investor profile", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save investor profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"investor": investor})
}

func uniq(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func GetMyInvestor(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	investor, err := FindByUser(utils.DB, user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Investor profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch investor profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"investor": investor})
}

func ListInvestors(c *gin.Context) {
	query := utils.DB.Model(&models.Investor{})
	if v := c.Query("area"); v != "" {
		areaID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area"})
			return
		}
		query = query.Where("id IN (?)", utils.DB.Table("investor_areas").Select("investor_id").Where("area_id = ?", areaID))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count investors"})
		return
	}

	page := utils.ParsePage(c)
	var investors []models.Investor
	err := query.Preload("Areas").Preload("User", userSummary).
		Order("created_at DESC").Offset(page.Offset()).Limit(page.PerPage).
		Find(&investors).Error
	if err != nil {
		logger.L().Error("failed to list investors", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch investors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"investors": investors,
		"page":      page.Page,
		"per_page":  page.PerPage,
		"total":     total,
	})
}

func ListAreas(c *gin.Context) {
	var areas []models.Area
	if err := utils.DB.Order("name").Find(&areas).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch areas"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"areas": areas})
}
