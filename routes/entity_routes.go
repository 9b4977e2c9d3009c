package routes

import (
	"github.com/BerniceZTT/posalpro_end/config"
	"github.com/BerniceZTT/posalpro_end/controllers"
	"github.com/BerniceZTT/posalpro_end/middleware"
	"github.com/BerniceZTT/posalpro_end/models"

	"github.com/gin-gonic/gin"
)

// entityPaths 路径到实体类型的映射，minRole 为空表示登录即可访问
var entityPaths = []struct {
	path    string
	entity  string
	minRole models.UserRole
}{
	{"/api/proposals", config.EntityProposal, ""},
	{"/api/customers", config.EntityCustomer, ""},
	{"/api/products", config.EntityProduct, ""},
	{"/api/users", config.EntityUser, models.UserRoleMANAGER},
}

// RegisterEntityRoutes 注册支持选择性加载的实体读取路由
func RegisterEntityRoutes(router *gin.Engine, ec *controllers.EntityController) {
	for _, ep := range entityPaths {
		group := router.Group(ep.path)
		group.Use(middleware.AuthMiddleware())
		if ep.minRole != "" {
			group.Use(middleware.RequireRole(ep.minRole))
		}

		group.GET("", ec.List(ep.entity))
		group.GET("/:id", ec.Get(ep.entity))
	}
}
