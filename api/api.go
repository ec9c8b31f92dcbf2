package api

import (
	"github.com/gin-gonic/gin"

	"github.com/viralship/viralship"
	"github.com/viralship/viralship/api/middleware"
	"github.com/viralship/viralship/config"
)

type Api struct {
	coordinator *viralship.Viralship
	router      *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/transactions", a.CreateTransaction)
	router.GET("/transactions/:id", a.GetTransaction)
	router.GET("/transactions/:id/orders", a.GetTransactionOrders)
	router.GET("/transactions/:id/logs", a.GetProcessingLogs)

	router.POST("/payments/webhook", a.PaymentWebhook)

	router.GET("/orders/:id", a.GetOrder)
	router.POST("/orders/:id/check", a.CheckOrder)

	router.POST("/admin/transactions/:id/process", a.ForceProcess)
	router.POST("/admin/transactions/:id/reprocess", a.Reprocess)
	router.POST("/admin/transactions/:id/unlock", a.ForceUnlock)
	router.GET("/admin/locks", a.LockStatus)

	return a.router
}

func NewAPI(coordinator *viralship.Viralship) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{coordinator: coordinator, router: r}
}
