package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/referrals"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

type OnboardRequest struct {
	UserType     models.UserType `json:"user_type" binding:"required"`
	FirstName    string          `json:"first_name" binding:"required"`
	LastName     string          `json:"last_name" binding:"required"`
	ReferralCode string          `json:"referral_code"`
}

type UpdateMeRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Onboard creates the local account for the signed-in Clerk identity.
func Onboard(c *gin.Context) {
	clerkID, ok := auth.ClerkID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
		return
	}

	var req OnboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.UserType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user type"})
		return
	}

	var existing int64
	if err := utils.DB.Model(&models.User{}).Where("clerk_id = ?", clerkID).Count(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check account"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Account already onboarded"})
		return
	}

	identity, err := utils.Clerk.GetUser(c.Request.Context(), clerkID)
	if err != nil {
		logger.L().Error("failed to fetch clerk user", "clerk_id", clerkID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch identity"})
		return
	}
	if identity.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identity has no email address"})
		return
	}

	user := models.User{
		ClerkID:      clerkID,
		Email:        strings.ToLower(identity.Email),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		UserType:     req.UserType,
		ReferralCode: newReferralCode(),
	}

	err = utils.DB.Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return errEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if req.ReferralCode == "" {
			return nil
		}
		err := referrals.Record(tx, req.ReferralCode, &user)
		if errors.Is(err, referrals.ErrUnknownCode) {
			logger.L().Info("ignoring unknown referral code", "code", req.ReferralCode, "user_id", user.ID)
			return nil
		}
		return err
	})
	if errors.Is(err, errEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
		return
	}
	if err != nil {
		logger.L().Error("failed to onboard user", "clerk_id", clerkID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

var errEmailTaken = errors.New("email already in use")

func GetMe(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func UpdateMe(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "First name cannot be empty"})
			return
		}
		updates["first_name"] = name
		user.FirstName = name
	}
	if req.LastName != nil {
		name := strings.TrimSpace(*req.LastName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Last name cannot be empty"})
			return
		}
		updates["last_name"] = name
		user.LastName = name
	}

	if len(updates) > 0 {
		if err := utils.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// deleteLocalUser soft-deletes the user with everything they own and frees
// their email and Clerk id for reuse. It returns the meeting rooms to release
// once tx commits.
func deleteLocalUser(tx *gorm.DB, userID string) ([]string, error) {
	investorIDs := tx.Model(&models.Investor{}).Select("id").Where("user_id = ?", userID)
	projectIDs := tx.Model(&models.Project{}).Select("id").Where("entrepreneur_id = ?", userID)
	rooms, err := models.CloseNegotiations(tx, "investor_id IN (?) OR project_id IN (?)", investorIDs, projectIDs)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.HyperTrainItem{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.Investor{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("entrepreneur_id = ?", userID).Delete(&models.Project{}).Error; err != nil {
		return nil, err
	}

	tombstone := map[string]interface{}{
		"email":    "deleted+" + userID + "@deleted.invalid",
		"clerk_id": "deleted_" + userID,
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(tombstone).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("id = ?", userID).Delete(&models.User{}).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}
