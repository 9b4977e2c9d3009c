package routes

import (
	"github.com/BerniceZTT/posalpro_end/controllers"
	"github.com/BerniceZTT/posalpro_end/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterDashboardRoutes 注册看板相关路由
func RegisterDashboardRoutes(router *gin.Engine, dc *controllers.DashboardController) {
	dashboardRoutes := router.Group("/api/dashboard")
	dashboardRoutes.Use(middleware.AuthMiddleware())

	dashboardRoutes.GET("/enhanced", dc.GetEnhancedDashboard)
	dashboardRoutes.POST("/derive", dc.DeriveDashboard)
}
