package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/http/handler"
	"github.com/rentfold/tenancy/src/http/middleware"
)

// NewRouter wires gin routes and middleware.
func NewRouter(
	log *zap.Logger,
	applications *handler.ApplicationHandler,
	onboarding *handler.OnboardingHandler,
	payments *handler.PaymentHandler,
	offboarding *handler.OffboardingHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(middleware.Identity())

	api := r.Group("/api")
	{
		apps := api.Group("/applications", middleware.RequireIdentity)
		{
			apps.POST("", applications.Submit)
			apps.POST("/:id/decision", applications.Decide)
			apps.POST("/:id/withdraw", applications.Withdraw)
		}

		// Onboarding get/save are authenticated by token possession alone;
		// only completion needs the verified identity.
		ob := api.Group("/onboarding")
		{
			ob.GET("/:token", onboarding.Get)
			ob.PUT("/:token/steps/:step", onboarding.SaveStep)
			ob.POST("/:token/complete", onboarding.Complete)
		}

		pay := api.Group("", middleware.RequireIdentity)
		{
			pay.POST("/payments/:id/checkout", payments.InitiateCheckout)
			pay.GET("/leases/:id/payments", payments.ListLeasePayments)
			pay.POST("/landlord/account", payments.EnsureAccount)
		}

		off := api.Group("", middleware.RequireIdentity)
		{
			off.POST("/leases/:id/offboarding", offboarding.GiveNotice)
			off.POST("/offboarding/:id/cancel", offboarding.Cancel)
			off.POST("/offboarding/:id/inspection", offboarding.ScheduleInspection)
			off.POST("/offboarding/:id/complete", offboarding.Complete)
		}

		admin := api.Group("/admin", middleware.RequireIdentity, middleware.RequireAdmin)
		{
			admin.POST("/leases/:id/fast-track", offboarding.FastTrack)
		}
	}

	r.POST("/webhooks/payments", payments.Webhook)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
