package controllers

import (
	"context"

	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/service"
	"github.com/BerniceZTT/posalpro_end/utils"

	"github.com/gin-gonic/gin"
)

// DashboardBuilder 查询并派生看板
type DashboardBuilder interface {
	Build(ctx context.Context, scope models.DashboardScope) (models.DerivedDashboard, error)
}

// DashboardController 看板接口
type DashboardController struct {
	builder DashboardBuilder
	deriver *service.MetricsDeriver
}

// NewDashboardController 创建看板接口
func NewDashboardController(builder DashboardBuilder, deriver *service.MetricsDeriver) *DashboardController {
	if deriver == nil {
		deriver = service.NewMetricsDeriver()
	}
	return &DashboardController{builder: builder, deriver: deriver}
}

// GetEnhancedDashboard 获取当前用户范围内的看板
func (dc *DashboardController) GetEnhancedDashboard(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.HandleError(c, utils.CreateUnauthorizedError())
		return
	}

	scope := dashboardScope(user)
	dashboard, err := dc.builder.Build(c.Request.Context(), scope)
	if err != nil {
		_ = c.Error(err)
		return
	}

	utils.Logger.Debug().
		Str("userId", user.ID).
		Bool("global", scope.IsGlobal()).
		Msg("看板派生完成")

	meta := utils.ResponseMeta(c)
	meta["scope"] = scopeName(scope)
	utils.SuccessResponseWithMeta(c, dashboard, meta)
}

// DeriveDashboard 派生调用方提交的原始聚合数据
func (dc *DashboardController) DeriveDashboard(c *gin.Context) {
	var raw models.RawDashboardAggregate
	if err := c.ShouldBindJSON(&raw); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的聚合数据: "+err.Error()))
		return
	}

	utils.SuccessResponseWithMeta(c, dc.deriver.Derive(raw), utils.ResponseMeta(c))
}

// dashboardScope 销售与只读用户只能看到自己负责的提案
func dashboardScope(user *utils.LoginUser) models.DashboardScope {
	if models.MeetsRole(models.UserRole(user.Role), models.UserRoleMANAGER) {
		return models.DashboardScope{}
	}
	return models.DashboardScope{OwnerID: user.ID}
}

func scopeName(scope models.DashboardScope) string {
	if scope.IsGlobal() {
		return "global"
	}
	return "own"
}
