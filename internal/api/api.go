package api

import (
	affiliateHandler "affiliate-server/internal/affiliate/handler"
	authHandler "affiliate-server/internal/auth/handler"
	creativeHandler "affiliate-server/internal/creative/handler"
	earningsHandler "affiliate-server/internal/earnings/handler"
	offerHandler "affiliate-server/internal/offer/handler"
	payoutHandler "affiliate-server/internal/payouts/handler"
	programHandler "affiliate-server/internal/program/handler"
	webhookHandler "affiliate-server/internal/webhooks/handler"
	"net/http"

	"github.com/gin-gonic/gin"
)

type API struct {
	router           *gin.RouterGroup
	authHandler      authHandler.Handler
	programHandler   programHandler.Handler
	offerHandler     offerHandler.Handler
	creativeHandler  creativeHandler.Handler
	affiliateHandler affiliateHandler.Handler
	earningsHandler  earningsHandler.Handler
	payoutHandler    payoutHandler.Handler
	webhookHandler   webhookHandler.Handler
}

func New(
	router *gin.RouterGroup,
	authHandler authHandler.Handler,
	programHandler programHandler.Handler,
	offerHandler offerHandler.Handler,
	creativeHandler creativeHandler.Handler,
	affiliateHandler affiliateHandler.Handler,
	earningsHandler earningsHandler.Handler,
	payoutHandler payoutHandler.Handler,
	webhookHandler webhookHandler.Handler,
) API {
	return API{
		router:           router,
		authHandler:      authHandler,
		programHandler:   programHandler,
		offerHandler:     offerHandler,
		creativeHandler:  creativeHandler,
		affiliateHandler: affiliateHandler,
		earningsHandler:  earningsHandler,
		payoutHandler:    payoutHandler,
		webhookHandler:   webhookHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	apiGroup := a.router.Group("/api")

	// Signed platform callbacks carry their own authentication
	apiGroup.POST("/webhooks/platform", a.webhookHandler.HandlePlatformWebhook)

	protectedGroup := apiGroup.Group("", a.authHandler.HandleUserTokenMiddleware)
	{
		protectedGroup.GET("/programs", a.programHandler.HandleGetProgram)
		protectedGroup.POST("/programs", a.programHandler.HandleUpsertProgram)

		protectedGroup.GET("/offers", a.offerHandler.HandleListOffers)
		protectedGroup.POST("/offers", a.offerHandler.HandleCreateOffer)
		protectedGroup.GET("/offers/:offerID", a.offerHandler.HandleGetOffer)
		protectedGroup.PUT("/offers/:offerID", a.offerHandler.HandleUpdateOffer)
		protectedGroup.DELETE("/offers/:offerID", a.offerHandler.HandleDeleteOffer)

		protectedGroup.GET("/creatives", a.creativeHandler.HandleListCreatives)
		protectedGroup.POST("/creatives/upload", a.creativeHandler.HandleUploadCreative)
		protectedGroup.DELETE("/creatives/:creativeID", a.creativeHandler.HandleDeleteCreative)

		protectedGroup.GET("/affiliates", a.affiliateHandler.HandleListAffiliates)
		protectedGroup.POST("/affiliates/apply", a.affiliateHandler.HandleApply)
		protectedGroup.GET("/affiliates/me/earnings", a.affiliateHandler.HandleGetMyEarnings)
		protectedGroup.GET("/affiliates/:affiliateID", a.affiliateHandler.HandleGetAffiliate)
		protectedGroup.PUT("/affiliates/:affiliateID", a.affiliateHandler.HandleUpdateTerms)
		protectedGroup.PUT("/affiliates/:affiliateID/approve", a.affiliateHandler.HandleApprove)
		protectedGroup.PUT("/affiliates/:affiliateID/reject", a.affiliateHandler.HandleReject)

		protectedGroup.GET("/earnings", a.earningsHandler.HandleGetEarnings)

		protectedGroup.GET("/payouts", a.payoutHandler.HandleListPayouts)
		protectedGroup.POST("/payouts/process", a.payoutHandler.HandleProcessPayouts)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
