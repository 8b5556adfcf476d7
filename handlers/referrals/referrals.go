package referrals

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/notifications"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

var (
	ErrUnknownCode     = errors.New("referral code not found")
	ErrSelfReferral    = errors.New("users cannot refer themselves")
	ErrAlreadyReferred = errors.New("user was already referred")
)

// Record links referred to the owner of code and notifies the referrer.
func Record(tx *gorm.DB, code string, referred *models.User) error {
	code = strings.TrimSpace(code)

	var referrer models.User
	if err := tx.Where("referral_code = ?", code).First(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownCode
		}
		return err
	}
	if referrer.ID == referred.ID {
		return ErrSelfReferral
	}

	var count int64
	if err := tx.Model(&models.Referral{}).Where("referred_id = ?", referred.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyReferred
	}

	referral := models.Referral{
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
		Code:       code,
	}
	if err := tx.Create(&referral).Error; err != nil {
		return err
	}

	return notifications.Notify(tx, referrer.ID, models.NotificationNewReferral, map[string]interface{}{
		"referral_id": referral.ID,
		"name":        referred.FullName(),
	})
}

// ShareLink is the sign-up URL carrying code.
func ShareLink(appURL, code string) string {
	return strings.TrimRight(appURL, "/") + "/sign-up?referral=" + url.QueryEscape(code)
}

func GetUserReferrals(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var referrals []models.Referral
	err := utils.DB.Preload("Referred", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped().Select("id", "first_name", "last_name", "user_type", "created_at")
	}).Where("referrer_id = ?", user.ID).Order("created_at DESC").Find(&referrals).Error
	if err != nil {
		logger.L().Error("failed to fetch referrals", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"referrals": referrals})
}

func GetReferralCode(appURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.MustUser(c)
		if !ok {
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"code": user.ReferralCode,
			"link": ShareLink(appURL, user.ReferralCode),
		})
	}
}
