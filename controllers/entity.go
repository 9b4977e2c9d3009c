package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/repository"
	"github.com/BerniceZTT/posalpro_end/service"
	"github.com/BerniceZTT/posalpro_end/utils"

	"github.com/gin-gonic/gin"
)

// 分页参数
const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 10000
)

// EntityReader 按字段投影读取实体
type EntityReader interface {
	Find(ctx context.Context, entityType string, q repository.EntityQuery) ([]map[string]interface{}, error)
	FindByID(ctx context.Context, entityType, id string, q repository.EntityQuery) (map[string]interface{}, error)
}

// EntityController 支持 ?fields= 选择性加载的实体读取接口
type EntityController struct {
	projector *service.SelectiveHydrationProjector
	store     EntityReader
}

// NewEntityController 创建实体读取接口
func NewEntityController(projector *service.SelectiveHydrationProjector, store EntityReader) *EntityController {
	return &EntityController{projector: projector, store: store}
}

// List 实体列表
func (ec *EntityController) List(entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, metrics, ok := ec.prepare(c, entityType)
		if !ok {
			return
		}

		page, limit := parsePaging(c)
		q.Limit = limit
		q.Skip = (page - 1) * limit

		docs, err := ec.store.Find(c.Request.Context(), entityType, q)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if docs == nil {
			docs = []map[string]interface{}{}
		}

		meta := utils.ResponseMeta(c)
		meta["optimizationMetrics"] = metrics
		meta["fields"] = q.Fields
		meta["pagination"] = gin.H{"page": page, "limit": limit, "count": len(docs)}
		utils.SuccessResponseWithMeta(c, docs, meta)
	}
}

// Get 按ID获取实体
func (ec *EntityController) Get(entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, metrics, ok := ec.prepare(c, entityType)
		if !ok {
			return
		}

		doc, err := ec.store.FindByID(c.Request.Context(), entityType, c.Param("id"), q)
		switch {
		case errors.Is(err, repository.ErrInvalidID):
			utils.HandleError(c, utils.CreateBadRequestError("无效的ID格式"))
			return
		case errors.Is(err, repository.ErrNotFound):
			utils.HandleError(c, utils.CreateNotFoundError(entityType))
			return
		case err != nil:
			_ = c.Error(err)
			return
		}

		meta := utils.ResponseMeta(c)
		meta["optimizationMetrics"] = metrics
		meta["fields"] = q.Fields
		utils.SuccessResponseWithMeta(c, doc, meta)
	}
}

// prepare 解析 fields 参数并生成查询，失败时已写入响应
func (ec *EntityController) prepare(c *gin.Context, entityType string) (repository.EntityQuery, models.OptimizationMetrics, bool) {
	auth := utils.GetAuthContext(c)
	if auth == nil && ec.projector.RequiresAuth(entityType) {
		utils.HandleError(c, utils.CreateUnauthorizedError())
		return repository.EntityQuery{}, models.OptimizationMetrics{}, false
	}

	result, err := ec.projector.Project(entityType, FieldsParam(c), auth)
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError(err.Error()))
		return repository.EntityQuery{}, models.OptimizationMetrics{}, false
	}

	fields := result.Fields
	if result.Select == nil {
		fields, _ = ec.projector.DefaultSelect(entityType, auth)
	}
	selfAccess, ownerField := ec.projector.SelfAccessFields(entityType, fields)

	q := repository.EntityQuery{
		Fields:           fields,
		SelfAccessFields: selfAccess,
		OwnerField:       ownerField,
	}
	if auth != nil {
		q.ViewerID = auth.UserID
	}
	return q, result.OptimizationMetrics, true
}

// FieldsParam 读取 fields 查询参数，多次出现时按逗号合并
func FieldsParam(c *gin.Context) string {
	return strings.Join(c.QueryArray("fields"), ",")
}

func parsePaging(c *gin.Context) (page, limit int64) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	limit, err = strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)), 10, 64)
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
