package projects

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

const BoostDuration = 24 * time.Hour

var (
	ErrInvalidArea       = errors.New("unknown area")
	ErrInvalidStage      = errors.New("invalid project stage")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrInvalidRange      = errors.New("investment goal must not be below the start investment")
)

type ProjectRequest struct {
	Name            *string              `json:"name"`
	QuickSolution   *string              `json:"quick_solution"`
	About           *string              `json:"about"`
	AreaID          *uint                `json:"area_id"`
	Stage           *models.ProjectStage `json:"stage"`
	StartInvestment *int64               `json:"start_investment" binding:"omitempty,gte=0"`
	InvestmentGoal  *int64               `json:"investment_goal" binding:"omitempty,gte=0"`
	Equity          *float64             `json:"equity" binding:"omitempty,gte=0,lte=100"`
	Visibility      *models.Visibility   `json:"visibility"`
	LogoKey         *string              `json:"logo_key"`
}

// apply copies the set fields onto p and validates the result.
func (r ProjectRequest) apply(db *gorm.DB, p *models.Project) error {
	if r.Name != nil {
		p.Name = strings.TrimSpace(*r.Name)
	}
	if r.QuickSolution != nil {
		p.QuickSolution = *r.QuickSolution
	}
	if r.About != nil {
		p.About = *r.About
	}
	if r.AreaID != nil {
		p.AreaID = *r.AreaID
		p.Area = nil
	}
	if r.Stage != nil {
		p.Stage = *r.Stage
	}
	if r.StartInvestment != nil {
		p.StartInvestment = *r.StartInvestment
	}
	if r.InvestmentGoal != nil {
		p.InvestmentGoal = *r.InvestmentGoal
	}
	if r.Equity != nil {
		p.Equity = *r.Equity
	}
	if r.Visibility != nil {
		p.Visibility = *r.Visibility
	}
	if r.LogoKey != nil {
		p.LogoKey = *r.LogoKey
	}

	if p.Name == "" {
		return errors.New("name is required")
	}
	if !p.Stage.Valid() {
		return ErrInvalidStage
	}
	if !p.Visibility.Valid() {
		return ErrInvalidVisibility
	}
	if p.InvestmentGoal < p.StartInvestment {
		return ErrInvalidRange
	}

	var count int64
	if err := db.Model(&models.Area{}).Where("id = ?", p.AreaID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrInvalidArea
	}
	return nil
}

// FindOwned loads a live project belonging to ownerID.
func FindOwned(db *gorm.DB, ownerID, projectID string) (*models.Project, error) {
	var project models.Project
	if err := db.Where("id = ? AND entrepreneur_id = ?", projectID, ownerID).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func loadOwned(c *gin.Context, user models.User) (*models.Project, bool) {
	project, err := FindOwned(utils.DB, user.ID, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project"})
		return nil, false
	}
	return project, true
}

func CreateProject(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project := models.Project{
		EntrepreneurID: user.ID,
		Visibility:     models.VisibilityPublic,
	}
	if req.AreaID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "area_id is required"})
		return
	}
	if err := req.apply(utils.DB, &project); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.DB.Create(&project).Error; err != nil {
		logger.L().Error("failed to create project", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project": project})
}

func GetMyProjects(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var projects []models.Project
	if err := utils.DB.Preload("Area").Where("entrepreneur_id = ?", user.ID).Order("created_at DESC").Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch projects"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func entrepreneurSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "first_name", "last_name", "user_type")
}

// GetProject returns a public project, or a private one to its owner.
func GetProject(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var project models.Project
	err := utils.DB.Preload("Area").Preload("Entrepreneur", entrepreneurSummary).
		Where("id = ?", c.Param("id")).First(&project).Error
	if err == nil && project.Visibility == models.VisibilityPrivate &&
		project.EntrepreneurID != user.ID && user.UserType != models.UserTypeAdmin {
		err = gorm.ErrRecordNotFound
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

func UpdateProject(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, ok := loadOwned(c, user)
	if !ok {
		return
	}
	if err := req.apply(utils.DB, project); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.DB.Save(project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// DeleteProject soft-deletes the project together with its negotiations and
// their meetings.
func DeleteProject(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	project, ok := loadOwned(c, user)
	if !ok {
		return
	}

	var rooms []string
	err := utils.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if rooms, err = models.CloseNegotiations(tx, "project_id = ?", project.ID); err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		logger.L().Error("failed to delete project", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}
	utils.ReleaseRooms(c.Request.Context(), rooms)

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

// ListProjects pages through public projects. Boosted projects come first.
func ListProjects(c *gin.Context) {
	query := utils.DB.Model(&models.Project{}).Where("visibility = ?", models.VisibilityPublic)

	if v := c.Query("area"); v != "" {
		areaID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area"})
			return
		}
		query = query.Where("area_id = ?", areaID)
	}
	if v := c.Query("stage"); v != "" {
		stage := models.ProjectStage(strings.ToUpper(v))
		if !stage.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stage"})
			return
		}
		query = query.Where("stage = ?", stage)
	}
	if v := c.Query("minInvestment"); v != "" {
		min, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid minInvestment"})
			return
		}
		query = query.Where("investment_goal >= ?", min)
	}
	if v := c.Query("maxInvestment"); v != "" {
		max, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid maxInvestment"})
			return
		}
		query = query.Where("start_investment <= ?", max)
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count projects"})
		return
	}

	page := utils.ParsePage(c)
	var projects []models.Project
	err := query.Preload("Area").
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "CASE WHEN boosted_until > ? THEN 0 ELSE 1 END, created_at DESC",
			Vars: []interface{}{time.Now().UTC()},
		}}).
		Offset(page.Offset()).Limit(page.PerPage).
		Find(&projects).Error
	if err != nil {
		logger.L().Error("failed to list projects", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch projects"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"page":     page.Page,
		"per_page": page.PerPage,
		"total":    total,
	})
}

const boostAttempts = 3

var (
	ErrNoBoosts   = errors.New("no boosts available")
	errBoostRaced = errors.New("project boost changed concurrently")
)

// extendBoost stacks BoostDuration on the project's current boost. The row is
// read under lock and written only if boosted_until still holds what was read.
func extendBoost(tx *gorm.DB, projectID string, now time.Time) (*models.Project, error) {
	for i := 0; i < boostAttempts; i++ {
		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", projectID).First(&project).Error; err != nil {
			return nil, err
		}
		prev := project.BoostedUntil
		project.Boost(now, BoostDuration)

		guard := tx.Model(&models.Project{}).Where("id = ?", projectID)
		if prev == nil {
			guard = guard.Where("boosted_until IS NULL")
		} else {
			guard = guard.Where("boosted_until = ?", *prev)
		}
		res := guard.Update("boosted_until", project.BoostedUntil)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return &project, nil
		}
	}
	return nil, errBoostRaced
}

// BoostProject spends one of the owner's boosts on the project.
func BoostProject(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	project, ok := loadOwned(c, user)
	if !ok {
		return
	}

	err := utils.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND available_boosts > 0", user.ID).
			UpdateColumn("available_boosts", gorm.Expr("available_boosts - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoBoosts
		}

		boosted, err := extendBoost(tx, project.ID, time.Now().UTC())
		if err != nil {
			return err
		}
		project = boosted
		return nil
	})
	if errors.Is(err, ErrNoBoosts) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "No boosts left, buy more to boost this project"})
		return
	}
	if errors.Is(err, errBoostRaced) {
		c.JSON(http.StatusConflict, gin.H{"error": "Project was boosted concurrently, try again"})
		return
	}
	if err != nil {
		logger.L().Error("failed to boost project", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to boost project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}
