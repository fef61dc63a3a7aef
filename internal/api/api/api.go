package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"eventdesk/cmd/middleware"
	"eventdesk/internal/service"
)

type Routers struct {
	Service   service.Service
	JWTSecret string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	app.GET("/health", func(c *ginext.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	rl := middleware.NewRateLimiter(5, 10)

	apiGroup := app.Group("/v1")
	apiGroup.Use(middleware.Auth(r.JWTSecret))

	apiGroup.GET("/events", r.Service.GetAllEvents)
	apiGroup.GET("/events/:id", r.Service.GetEvent)

	apiGroup.POST("/events/:id/register", middleware.RateLimit(rl), r.Service.Register)
	apiGroup.POST("/events/:id/checkin", r.Service.CheckIn)
	apiGroup.POST("/events/:id/checkout", r.Service.CheckOut)
	apiGroup.GET("/events/:id/attendance", r.Service.AttendanceStatus)

	apiGroup.POST("/events/:id/payments", middleware.RateLimit(rl), r.Service.ConfirmPayment)
	apiGroup.GET("/events/:id/payments/status", r.Service.PaymentStatus)

	admin := apiGroup.Group("")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/events", r.Service.CreateEvent)
	admin.PUT("/events/:id", r.Service.UpdateEvent)
	admin.DELETE("/events/:id", r.Service.DeleteEvent)
	admin.GET("/events/:id/reports/financial", r.Service.FinancialReport)
	admin.GET("/events/:id/reports/attendance", r.Service.AttendanceReport)
	admin.GET("/stats", r.Service.OverallStats)

	return app
}
