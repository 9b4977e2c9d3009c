package service

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/BerniceZTT/posalpro_end/config"
	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/utils"
)

// ErrUnknownEntity 严格模式下请求了未配置的实体类型
var ErrUnknownEntity = errors.New("未知的实体类型")

// SelectiveHydrationProjector 根据 fields 参数和实体白名单生成字段投影。
// 白名单是可选字段的唯一来源，用户输入无法扩大可选范围。
type SelectiveHydrationProjector struct {
	table *config.EntityFieldTable

	// strict 为true时未知实体返回 ErrUnknownEntity；
	// 默认放行（不做投影），选择性加载只是优化，不应阻塞请求。
	strict bool

	now func() time.Time
}

// ProjectorOption 投影器选项
type ProjectorOption func(*SelectiveHydrationProjector)

// WithStrictEntities 未知实体直接拒绝
func WithStrictEntities(strict bool) ProjectorOption {
	return func(p *SelectiveHydrationProjector) {
		p.strict = strict
	}
}

// NewSelectiveHydrationProjector 创建投影器
func NewSelectiveHydrationProjector(table *config.EntityFieldTable, opts ...ProjectorOption) *SelectiveHydrationProjector {
	p := &SelectiveHydrationProjector{table: table, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project 计算字段投影。
// fieldsParam 为逗号分隔的字段名；不在白名单中的字段、以及调用者角色不足以查看的受限字段会被静默丢弃。
func (p *SelectiveHydrationProjector) Project(entityType, fieldsParam string, auth *models.AuthContext) (result models.ProjectionResult, err error) {
	start := p.now()
	defer func() {
		result.OptimizationMetrics.ProcessingTimeMs = float64(p.now().Sub(start).Microseconds()) / 1000
	}()

	entity, ok := p.table.Lookup(entityType)
	if !ok {
		if p.strict {
			return result, ErrUnknownEntity
		}
		utils.Logger.Debug().Str("entity", entityType).Msg("未配置的实体类型，跳过字段投影")
		return result, nil
	}

	total := len(entity.AllowedFields())
	result.OptimizationMetrics.TotalAvailableFields = total
	result.OptimizationMetrics.SecurityValidated = true

	requested := parseFields(fieldsParam)
	if len(requested) == 0 {
		result.OptimizationMetrics.RequestedFields = total
		return result, nil
	}

	result.Select = make(map[string]bool)
	for _, f := range entity.AllowedFields() {
		if _, want := requested[f]; !want {
			continue
		}
		if !canSee(entity, f, auth) {
			continue
		}
		result.Select[f] = true
		result.Fields = append(result.Fields, f)
		if entity.IsSelfAccessOnly(f) {
			result.SelfAccessFields = append(result.SelfAccessFields, f)
		}
	}

	result.OptimizationMetrics.RequestedFields = len(result.Fields)
	result.OptimizationMetrics.DataReductionPercentage = reductionPercentage(len(result.Fields), total)
	return result, nil
}

// DefaultSelect 未指定 fields 时调用方使用的默认字段集：白名单去掉调用者无权查看的受限字段。
// 未知实体返回nil。
func (p *SelectiveHydrationProjector) DefaultSelect(entityType string, auth *models.AuthContext) ([]string, map[string]bool) {
	entity, ok := p.table.Lookup(entityType)
	if !ok {
		return nil, nil
	}
	var fields []string
	sel := make(map[string]bool)
	for _, f := range entity.AllowedFields() {
		if !canSee(entity, f, auth) {
			continue
		}
		fields = append(fields, f)
		sel[f] = true
	}
	return fields, sel
}

// SelfAccessFields 返回字段集合中仅所有者可见的字段及所有者字段名
func (p *SelectiveHydrationProjector) SelfAccessFields(entityType string, fields []string) ([]string, string) {
	entity, ok := p.table.Lookup(entityType)
	if !ok {
		return nil, ""
	}
	var out []string
	for _, f := range fields {
		if entity.IsSelfAccessOnly(f) {
			out = append(out, f)
		}
	}
	return out, entity.OwnerField()
}

// RequiresAuth 实体是否需要登录
func (p *SelectiveHydrationProjector) RequiresAuth(entityType string) bool {
	entity, ok := p.table.Lookup(entityType)
	return ok && entity.RequiresAuth()
}

// canSee 受限字段需要角色达到 MinRole；未配置 MinRole 时不限制
func canSee(entity *config.EntityField, field string, auth *models.AuthContext) bool {
	if !entity.IsRestricted(field) || entity.MinRole() == "" {
		return true
	}
	if auth == nil {
		return false
	}
	return models.MeetsRole(auth.Role, entity.MinRole())
}

// parseFields 按逗号拆分、去空白、去空项、去重
func parseFields(fieldsParam string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Split(fieldsParam, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out[tok] = struct{}{}
		}
	}
	return out
}

// reductionPercentage (1 - requested/total) * 100，限制在 [0,100] 并保留一位小数
func reductionPercentage(requested, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := (1 - float64(requested)/float64(total)) * 100
	pct = math.Max(0, math.Min(100, pct))
	return math.Round(pct*10) / 10
}
