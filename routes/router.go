package routes

import (
	"github.com/BerniceZTT/posalpro_end/controllers"
	"github.com/BerniceZTT/posalpro_end/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers 路由使用的接口集合
type Handlers struct {
	Health    *controllers.HealthController
	Dashboard *controllers.DashboardController
	Entities  *controllers.EntityController
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, h Handlers) {
	// 健康检查路由，不需要登录
	router.GET("/api/health", middleware.OptionalAuth(), h.Health.GetHealth)

	RegisterDashboardRoutes(router, h.Dashboard)
	RegisterEntityRoutes(router, h.Entities)
}
