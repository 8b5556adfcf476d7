package uploads

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

const PresignTTL = 15 * time.Minute

// allowed lists the accepted content types per upload kind with the file
// extension used in the object key.
var allowed = map[string]map[string]string{
	"logo": {
		"image/png":  "png",
		"image/jpeg": "jpg",
		"image/webp": "webp",
	},
	"avatar": {
		"image/png":  "png",
		"image/jpeg": "jpg",
		"image/webp": "webp",
	},
	"pitch-video": {
		"video/mp4":  "mp4",
		"video/webm": "webm",
	},
	"document": {
		"application/pdf": "pdf",
	},
}

type PresignRequest struct {
	Kind        string `json:"kind" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// ObjectKey builds kind/userID/uuid.ext, or reports false when the kind or
// content type is not accepted.
func ObjectKey(kind, contentType, userID string) (string, bool) {
	types, ok := allowed[kind]
	if !ok {
		return "", false
	}
	ext, ok := types[contentType]
	if !ok {
		return "", false
	}
	return kind + "/" + userID + "/" + uuid.NewString() + "." + ext, true
}

func Presign(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, ok := ObjectKey(req.Kind, req.ContentType, user.ID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported upload kind or content type"})
		return
	}

	url, err := utils.Storage.PresignPut(c.Request.Context(), key, req.ContentType, PresignTTL)
	if err != nil {
		logger.L().Error("failed to presign upload", "user_id", user.ID, "key", key, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to prepare upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload_url": url,
		"key":        key,
		"public_url": utils.Storage.PublicURL(key),
		"expires_at": time.Now().UTC().Add(PresignTTL),
	})
}
