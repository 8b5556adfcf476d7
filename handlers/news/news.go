package news

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

func ListNews(c *gin.Context) {
	posts, err := utils.News.ListPosts(c.Request.Context())
	if err != nil {
		logger.L().Error("failed to fetch news", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch news"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func GetNewsPost(c *gin.Context) {
	posts, err := utils.News.ListPosts(c.Request.Context())
	if err != nil {
		logger.L().Error("failed to fetch news", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch news"})
		return
	}

	slug := c.Param("slug")
	for _, post := range posts {
		if post.Slug == slug {
			c.JSON(http.StatusOK, gin.H{"post": post})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
}
