package referrals

import "github.com/gin-gonic/gin"

func RegisterReferralRoutes(r *gin.RouterGroup, appURL string) {
	r.GET("/referrals", GetUserReferrals)
	r.GET("/referrals/code", GetReferralCode(appURL))
}
