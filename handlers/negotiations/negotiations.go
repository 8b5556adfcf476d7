package negotiations

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/investors"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/notifications"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/projects"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

var (
	ErrNotParty      = errors.New("user is not a party to this negotiation")
	ErrDuplicate     = errors.New("a negotiation for this project and investor already exists")
	ErrNoPokes       = errors.New("no pokes available")
	ErrStaleApproval = errors.New("negotiation changed concurrently")
)

type CreateNegotiationRequest struct {
	ProjectID  string `json:"project_id" binding:"required"`
	InvestorID string `json:"investor_id"`
}

// ForUser scopes a negotiation query to the ones userID takes part in.
func ForUser(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&models.Negotiation{}).Where(
		"investor_id IN (?) OR project_id IN (?)",
		db.Model(&models.Investor{}).Select("id").Where("user_id = ?", userID),
		db.Model(&models.Project{}).Select("id").Where("entrepreneur_id = ?", userID),
	)
}

// PartyOf reports which side userID is on. Project and Investor must be loaded.
func PartyOf(n *models.Negotiation, userID string) (models.Party, error) {
	switch {
	case n.Investor != nil && n.Investor.UserID == userID:
		return models.PartyInvestor, nil
	case n.Project != nil && n.Project.EntrepreneurID == userID:
		return models.PartyEntrepreneur, nil
	}
	return "", ErrNotParty
}

// CounterpartUserID returns the user on the other side from p.
func CounterpartUserID(n *models.Negotiation, p models.Party) string {
	if p == models.PartyInvestor {
		return n.Project.EntrepreneurID
	}
	return n.Investor.UserID
}

// Load fetches a live negotiation userID takes part in, with both sides loaded.
func Load(db *gorm.DB, userID, id string) (*models.Negotiation, models.Party, error) {
	var n models.Negotiation
	if err := db.Preload("Project").Preload("Investor").Where("id = ?", id).First(&n).Error; err != nil {
		return nil, "", err
	}
	if n.Project == nil || n.Investor == nil {
		return nil, "", gorm.ErrRecordNotFound
	}
	party, err := PartyOf(&n, userID)
	if err != nil {
		return nil, "", err
	}
	return &n, party, nil
}

func loadForCaller(c *gin.Context, user models.User) (*models.Negotiation, models.Party, bool) {
	n, party, err := Load(utils.DB, user.ID, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotParty) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Negotiation not found"})
		return nil, "", false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch negotiation"})
		return nil, "", false
	}
	return n, party, true
}

func ensureNoLiveNegotiation(tx *gorm.DB, projectID, investorID string) error {
	var count int64
	if err := tx.Model(&models.Negotiation{}).Where("project_id = ? AND investor_id = ?", projectID, investorID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	return nil
}

// insertNegotiation creates n. Losing a race for the pair against a
// concurrent create trips the live-pair index and is reported as ErrDuplicate.
func insertNegotiation(tx *gorm.DB, n *models.Negotiation) error {
	err := tx.Create(n).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// CreateNegotiation opens a negotiation. Investors express interest in a
// public project; entrepreneurs spend a poke to reach an investor.
func CreateNegotiation(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var req CreateNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var negotiation *models.Negotiation
	var err error
	switch user.UserType {
	case models.UserTypeInvestor:
		negotiation, err = expressInterest(user, req)
	case models.UserTypeEntrepreneur:
		negotiation, err = poke(user, req)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Only investors and entrepreneurs can negotiate"})
		return
	}

	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"negotiation": negotiation})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Project or investor not found"})
	case errors.Is(err, ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNoPokes):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "No pokes left, buy more to reach investors"})
	case errors.Is(err, errBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.L().Error("failed to create negotiation", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create negotiation"})
	}
}

var errBadRequest = errors.New("investor_id is required when poking")

func expressInterest(user models.User, req CreateNegotiationRequest) (*models.Negotiation, error) {
	investor, err := investors.FindByUser(utils.DB, user.ID)
	if err != nil {
		return nil, err
	}

	var project models.Project
	if err := utils.DB.Where("id = ? AND visibility = ?", req.ProjectID, models.VisibilityPublic).First(&project).Error; err != nil {
		return nil, err
	}

	n := models.Negotiation{
		ProjectID:   project.ID,
		InvestorID:  investor.ID,
		Stage:       models.StagePitch,
		InitiatedBy: models.PartyInvestor,
	}
	err = utils.DB.Transaction(func(tx *gorm.DB) error {
		if err := ensureNoLiveNegotiation(tx, n.ProjectID, n.InvestorID); err != nil {
			return err
		}
		if err := insertNegotiation(tx, &n); err != nil {
			return err
		}
		return notifications.Notify(tx, project.EntrepreneurID, models.NotificationInvestorInterest, map[string]interface{}{
			"negotiation_id": n.ID,
			"project_id":     project.ID,
			"project_name":   project.Name,
			"investor_name":  user.FullName(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func poke(user models.User, req CreateNegotiationRequest) (*models.Negotiation, error) {
	if req.InvestorID == "" {
		return nil, errBadRequest
	}

	project, err := projects.FindOwned(utils.DB, user.ID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	var investor models.Investor
	if err := utils.DB.Where("id = ?", req.InvestorID).First(&investor).Error; err != nil {
		return nil, err
	}

	n := models.Negotiation{
		ProjectID:   project.ID,
		InvestorID:  investor.ID,
		Stage:       models.StagePitch,
		InitiatedBy: models.PartyEntrepreneur,
	}
	err = utils.DB.Transaction(func(tx *gorm.DB) error {
		if err := ensureNoLiveNegotiation(tx, n.ProjectID, n.InvestorID); err != nil {
			return err
		}
		res := tx.Model(&models.User{}).
			Where("id = ? AND available_pokes > 0", user.ID).
			UpdateColumn("available_pokes", gorm.Expr("available_pokes - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoPokes
		}
		if err := insertNegotiation(tx, &n); err != nil {
			return err
		}
		return notifications.Notify(tx, investor.UserID, models.NotificationPoke, map[string]interface{}{
			"negotiation_id":    n.ID,
			"project_id":        project.ID,
			"project_name":      project.Name,
			"entrepreneur_name": user.FullName(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func ListNegotiations(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	query := ForUser(utils.DB, user.ID)
	if stage := c.Query("stage"); stage != "" {
		query = query.Where("stage = ?", stage)
	}

	var negotiations []models.Negotiation
	err := query.Preload("Project").Preload("Project.Area").
		Preload("Investor").Preload("Investor.User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "first_name", "last_name", "user_type")
	}).
		Order("updated_at DESC").
		Find(&negotiations).Error
	if err != nil {
		logger.L().Error("failed to list negotiations", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch negotiations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"negotiations": negotiations})
}

// ApproveNegotiation records the caller's approval of the current stage.
// The row is updated only if nobody changed it since it was read.
func ApproveNegotiation(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	n, party, ok := loadForCaller(c, user)
	if !ok {
		return
	}

	before := *n
	advanced, err := n.Approve(party)
	if errors.Is(err, models.ErrNegotiationClosed) {
		c.JSON(http.StatusConflict, gin.H{"error": "Negotiation is already closed"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = utils.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Negotiation{}).
			Where("id = ? AND stage = ? AND investor_approved = ? AND entrepreneur_approved = ?",
				before.ID, before.Stage, before.InvestorApproved, before.EntrepreneurApproved).
			Updates(map[string]interface{}{
				"stage":                 n.Stage,
				"investor_approved":     n.InvestorApproved,
				"entrepreneur_approved": n.EntrepreneurApproved,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleApproval
		}
		if !advanced {
			return nil
		}

		data := map[string]interface{}{
			"negotiation_id": n.ID,
			"project_id":     n.ProjectID,
			"project_name":   n.Project.Name,
			"stage":          string(n.Stage),
		}
		if err := notifications.Notify(tx, n.Investor.UserID, models.NotificationStageChanged, data); err != nil {
			return err
		}
		return notifications.Notify(tx, n.Project.EntrepreneurID, models.NotificationStageChanged, data)
	})
	if errors.Is(err, ErrStaleApproval) {
		c.JSON(http.StatusConflict, gin.H{"error": "Negotiation changed, reload and try again"})
		return
	}
	if err != nil {
		logger.L().Error("failed to approve negotiation", "negotiation_id", n.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve negotiation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"negotiation": n, "advanced": advanced})
}

func CancelNegotiation(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	n, party, ok := loadForCaller(c, user)
	if !ok {
		return
	}
	if n.Stage == models.StageClosed {
		c.JSON(http.StatusConflict, gin.H{"error": "Closed negotiations cannot be cancelled"})
		return
	}

	var rooms []string
	err := utils.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if rooms, err = models.CloseNegotiations(tx, "id = ?", n.ID); err != nil {
			return err
		}
		return notifications.Notify(tx, CounterpartUserID(n, party), models.NotificationNegotiationCancel, map[string]interface{}{
			"negotiation_id": n.ID,
			"project_id":     n.ProjectID,
			"project_name":   n.Project.Name,
			"cancelled_by":   user.FullName(),
		})
	})
	if err != nil {
		logger.L().Error("failed to cancel negotiation", "negotiation_id", n.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel negotiation"})
		return
	}
	utils.ReleaseRooms(c.Request.Context(), rooms)

	c.JSON(http.StatusOK, gin.H{"message": "Negotiation cancelled"})
}
