package matches

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/investors"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/projects"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

const matchLimit = 50

// ProjectsFor returns public projects in one of the investor's areas whose
// funding range overlaps the investor's ticket range.
func ProjectsFor(db *gorm.DB, investor *models.Investor, now time.Time) ([]models.Project, error) {
	var out []models.Project
	areaIDs := investor.AreaIDs()
	if len(areaIDs) == 0 {
		return out, nil
	}
	err := db.Preload("Area").
		Where("visibility = ?", models.VisibilityPublic).
		Where("area_id IN ?", areaIDs).
		Where("start_investment <= ? AND investment_goal >= ?", investor.InvestmentMaxValue, investor.InvestmentMinValue).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "CASE WHEN boosted_until > ? THEN 0 ELSE 1 END, created_at DESC",
			Vars: []interface{}{now},
		}}).
		Limit(matchLimit).
		Find(&out).Error
	return out, err
}

// InvestorsFor is the mirror of ProjectsFor.
func InvestorsFor(db *gorm.DB, project *models.Project) ([]models.Investor, error) {
	var out []models.Investor
	err := db.Preload("Areas").Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "first_name", "last_name", "user_type")
	}).
		Where("id IN (?)", db.Table("investor_areas").Select("investor_id").Where("area_id = ?", project.AreaID)).
		Where("investment_min_value <= ? AND investment_max_value >= ?", project.InvestmentGoal, project.StartInvestment).
		Where("user_id <> ?", project.EntrepreneurID).
		Order("created_at DESC").
		Limit(matchLimit).
		Find(&out).Error
	return out, err
}

func MatchProjects(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	investor, err := investors.FindByUser(utils.DB, user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Create an investor profile first"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch investor profile"})
		return
	}

	matched, err := ProjectsFor(utils.DB, investor, time.Now().UTC())
	if err != nil {
		logger.L().Error("failed to match projects", "investor_id", investor.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to match projects"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": matched})
}

func MatchInvestors(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	projectID := c.Query("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
		return
	}

	project, err := projects.FindOwned(utils.DB, user.ID, projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project"})
		return
	}

	matched, err := InvestorsFor(utils.DB, project)
	if err != nil {
		logger.L().Error("failed to match investors", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to match investors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"investors": matched})
}
