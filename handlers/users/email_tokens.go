package users

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func actionLink(appURL, path, token string) string {
	return strings.TrimRight(appURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// userForToken resolves a mailed token back to the live user it was issued
// for. A changed email invalidates every outstanding token.
func userForToken(token string, purpose utils.TokenPurpose) (*models.User, error) {
	claims, err := utils.ParseEmailToken(token, purpose)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := utils.DB.Where("id = ?", claims.Subject).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrTokenInvalid
		}
		return nil, err
	}
	if !strings.EqualFold(user.Email, claims.Email) {
		return nil, utils.ErrTokenInvalid
	}
	return &user, nil
}

func tokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token has expired"})
	case errors.Is(err, utils.ErrTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
	default:
		logger.L().Error("failed to resolve email token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify token"})
	}
}

func SendVerificationEmail(appURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.MustUser(c)
		if !ok {
			return
		}
		if user.EmailVerified {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already verified"})
			return
		}

		token, err := utils.GenerateEmailToken(user.ID, user.Email, utils.PurposeVerifyEmail, utils.VerifyEmailTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		email := utils.VerificationEmail(user.Email, user.FullName(), actionLink(appURL, "/verify-email", token))
		if err := utils.Mail.Send(c.Request.Context(), email); err != nil {
			logger.L().Error("failed to send verification email", "user_id", user.ID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send email"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Verification email sent"})
	}
}

func VerifyEmail(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := userForToken(req.Token, utils.PurposeVerifyEmail)
	if err != nil {
		tokenError(c, err)
		return
	}

	if err := utils.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("email_verified", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

func RequestDeletion(appURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.MustUser(c)
		if !ok {
			return
		}

		token, err := utils.GenerateEmailToken(user.ID, user.Email, utils.PurposeDeleteAccount, utils.DeleteAccountTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		email := utils.AccountDeletionEmail(user.Email, user.FullName(), actionLink(appURL, "/delete-account", token))
		if err := utils.Mail.Send(c.Request.Context(), email); err != nil {
			logger.L().Error("failed to send deletion email", "user_id", user.ID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send email"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Confirmation email sent"})
	}
}

// ConfirmDeletion removes the Clerk identity first so a failed vendor call
// leaves the local account intact for a retry.
func ConfirmDeletion(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := userForToken(req.Token, utils.PurposeDeleteAccount)
	if err != nil {
		tokenError(c, err)
		return
	}

	if err := utils.Clerk.DeleteUser(c.Request.Context(), user.ClerkID); err != nil {
		logger.L().Error("failed to delete clerk user", "user_id", user.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to delete identity"})
		return
	}

	var rooms []string
	if err := utils.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		rooms, err = deleteLocalUser(tx, user.ID)
		return err
	}); err != nil {
		logger.L().Error("failed to delete user", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete account"})
		return
	}
	utils.ReleaseRooms(c.Request.Context(), rooms)

	logger.L().Info("account deleted", "user_id", user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
