package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Im-Vestor/im-vestor-full-sub002/config"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/hypertrain"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/investors"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/matches"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/meetings"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/negotiations"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/news"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/notifications"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/payments"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/projects"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/referrals"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/uploads"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/users"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

func healthz(c *gin.Context) {
	sqlDB, err := utils.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func newRouter(cfg *config.Config, verifier utils.SessionVerifier) (*gin.Engine, error) {
	r := gin.Default()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	r.Use(utils.ObserveRequests())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	hookLimiter := utils.NewClientLimiter("webhooks", cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
	tokenLimiter := utils.NewClientLimiter("email_tokens", cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)

	webhooks := r.Group("/webhooks", auth.RateLimit(hookLimiter))
	webhooks.POST("/stripe", payments.StripeWebhook(cfg.Stripe.WebhookSecret))
	webhooks.POST("/clerk", users.ClerkWebhook(cfg.Clerk.WebhookSecret))

	api := r.Group("/api")
	api.GET("/areas", investors.ListAreas)
	api.GET("/news", news.ListNews)
	api.GET("/news/:slug", news.GetNewsPost)
	api.GET("/hypertrain", hypertrain.GetHyperTrain(cfg.Hypertrain.RotationPeriod))

	tokens := api.Group("", auth.RateLimit(tokenLimiter))
	tokens.POST("/email/verify", users.VerifyEmail)
	tokens.POST("/account/delete", users.ConfirmDeletion)

	session := api.Group("", auth.RequireSession(verifier))
	session.POST("/users/onboard", users.Onboard)

	protected := session.Group("", auth.RequireUser())
	{
		protected.GET("/users/me", users.GetMe)
		protected.PATCH("/users/me", users.UpdateMe)
		protected.POST("/users/me/verification-email", auth.RateLimit(tokenLimiter), users.SendVerificationEmail(cfg.AppURL))
		protected.POST("/users/me/deletion-request", auth.RateLimit(tokenLimiter), users.RequestDeletion(cfg.AppURL))

		protected.GET("/projects", projects.ListProjects)
		protected.GET("/projects/:id", projects.GetProject)
		protected.GET("/investors", investors.ListInvestors)

		protected.POST("/negotiations", negotiations.CreateNegotiation)
		protected.GET("/negotiations", negotiations.ListNegotiations)
		protected.POST("/negotiations/:id/approve", negotiations.ApproveNegotiation)
		protected.POST("/negotiations/:id/cancel", negotiations.CancelNegotiation)
		protected.POST("/negotiations/:id/meetings", meetings.CreateMeeting)
		protected.GET("/meetings", meetings.ListMeetings)
		protected.DELETE("/meetings/:id", meetings.DeleteMeeting)
		protected.POST("/meetings/:id/token", meetings.MeetingToken)

		protected.POST("/checkout", payments.CreateCheckout(payments.NewCatalog(cfg.Stripe), cfg.AppURL))
		protected.POST("/uploads/presign", uploads.Presign)

		referrals.RegisterReferralRoutes(protected, cfg.AppURL)
		notifications.RegisterNotificationsRoutes(protected)
	}

	entrepreneur := protected.Group("", auth.RequireRole(models.UserTypeEntrepreneur))
	{
		entrepreneur.POST("/projects", projects.CreateProject)
		entrepreneur.GET("/projects/mine", projects.GetMyProjects)
		entrepreneur.PATCH("/projects/:id", projects.UpdateProject)
		entrepreneur.DELETE("/projects/:id", projects.DeleteProject)
		entrepreneur.POST("/projects/:id/boost", projects.BoostProject)
		entrepreneur.GET("/matches/investors", matches.MatchInvestors)
	}

	investor := protected.Group("", auth.RequireRole(models.UserTypeInvestor))
	{
		investor.PUT("/investors/me", investors.UpsertMyInvestor)
		investor.GET("/investors/me", investors.GetMyInvestor)
		investor.GET("/matches/projects", matches.MatchProjects)
	}

	return r, nil
}
