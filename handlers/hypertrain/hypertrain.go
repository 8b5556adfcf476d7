package hypertrain

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

var ErrUnknownTarget = errors.New("item is neither an owned project nor the user's investor profile")

// Target is what a hypertrain placement points at.
type Target struct {
	Type       models.HyperTrainItemType
	ExternalID string
	Name       string
	Link       string
	ImageKey   string
}

// ResolveTarget maps itemID to a project owned by userID or to userID's own
// investor profile.
func ResolveTarget(db *gorm.DB, userID, itemID string) (*Target, error) {
	var project models.Project
	err := db.Where("id = ? AND entrepreneur_id = ?", itemID, userID).First(&project).Error
	if err == nil {
		return &Target{
			Type:       models.HyperTrainProject,
			ExternalID: project.ID,
			Name:       project.Name,
			Link:       "/projects/" + project.ID,
			ImageKey:   project.LogoKey,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var investor models.Investor
	err = db.Preload("User").Where("id = ? AND user_id = ?", itemID, userID).First(&investor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownTarget
	}
	if err != nil {
		return nil, err
	}
	name := ""
	if investor.User != nil {
		name = investor.User.FullName()
	}
	return &Target{
		Type:       models.HyperTrainInvestor,
		ExternalID: investor.ID,
		Name:       name,
		Link:       "/investors/" + investor.ID,
		ImageKey:   investor.PhotoKey,
	}, nil
}

// Grant puts target on the train for days. A placement still running for the
// same target is extended instead of duplicated.
func Grant(tx *gorm.DB, userID string, target *Target, days int, now time.Time) (*models.HyperTrainItem, error) {
	span := time.Duration(days) * 24 * time.Hour

	var item models.HyperTrainItem
	err := tx.Where("external_id = ? AND expiration_date > ?", target.ExternalID, now).
		Order("expiration_date DESC").First(&item).Error
	if err == nil {
		item.ExpirationDate = item.ExpirationDate.Add(span)
		if err := tx.Model(&item).Update("expiration_date", item.ExpirationDate).Error; err != nil {
			return nil, err
		}
		return &item, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	item = models.HyperTrainItem{
		UserID:         userID,
		ExternalID:     target.ExternalID,
		Type:           target.Type,
		Name:           target.Name,
		Link:           target.Link,
		ImageKey:       target.ImageKey,
		ExpirationDate: now.Add(span),
	}
	if err := tx.Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Rotate shifts items so that the head advances by one every period. items
// must already be in creation order. Periods under a second count as one
// second; a non-positive period leaves the order alone.
func Rotate(items []models.HyperTrainItem, now time.Time, period time.Duration) []models.HyperTrainItem {
	n := len(items)
	if n == 0 || period <= 0 {
		return items
	}
	seconds := int64(period / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	offset := int((now.Unix() / seconds) % int64(n))
	out := make([]models.HyperTrainItem, 0, n)
	out = append(out, items[offset:]...)
	return append(out, items[:offset]...)
}

// Purge deletes placements that expired before now.
func Purge(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("expiration_date <= ?", now).Delete(&models.HyperTrainItem{})
	return res.RowsAffected, res.Error
}

type itemView struct {
	models.HyperTrainItem
	ImageURL string `json:"image_url,omitempty"`
}

func GetHyperTrain(period time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UTC()

		var items []models.HyperTrainItem
		if err := utils.DB.Where("expiration_date > ?", now).Order("created_at ASC").Order("id ASC").Find(&items).Error; err != nil {
			logger.L().Error("failed to fetch hypertrain", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch hypertrain"})
			return
		}

		views := make([]itemView, 0, len(items))
		for _, item := range Rotate(items, now, period) {
			v := itemView{HyperTrainItem: item}
			if item.ImageKey != "" && utils.Storage != nil {
				v.ImageURL = utils.Storage.PublicURL(item.ImageKey)
			}
			views = append(views, v)
		}

		c.JSON(http.StatusOK, gin.H{"items": views})
	}
}
