package models

// FieldSecurity 实体字段的安全配置
type FieldSecurity struct {
	RequiresAuth     bool     `json:"requiresAuth" yaml:"requiresAuth"`
	MinRole          UserRole `json:"minRole,omitempty" yaml:"minRole"`
	RestrictedFields []string `json:"restrictedFields,omitempty" yaml:"restrictedFields"`
	SelfAccessOnly   []string `json:"selfAccessOnly,omitempty" yaml:"selfAccessOnly"`
	OwnerField       string   `json:"ownerField,omitempty" yaml:"ownerField"`
}

// EntityFieldConfig 某个实体的字段白名单与安全配置
type EntityFieldConfig struct {
	AllowedFields []string      `json:"allowedFields" yaml:"allowedFields"`
	Security      FieldSecurity `json:"security" yaml:"security"`
}

// OptimizationMetrics 选择性加载的优化指标
type OptimizationMetrics struct {
	TotalAvailableFields    int     `json:"totalAvailableFields"`
	RequestedFields         int     `json:"requestedFields"`
	DataReductionPercentage float64 `json:"dataReductionPercentage"`
	ProcessingTimeMs        float64 `json:"processingTime"`
	SecurityValidated       bool    `json:"securityValidated"`
}

// ProjectionResult 字段投影结果。
// Select 为nil表示调用方使用默认的全字段查询。
type ProjectionResult struct {
	Select              map[string]bool     `json:"select"`
	Fields              []string            `json:"fields,omitempty"`           // 按白名单顺序排列的已选字段
	SelfAccessFields    []string            `json:"selfAccessFields,omitempty"` // 需由调用方按所有者校验的字段
	OptimizationMetrics OptimizationMetrics `json:"optimizationMetrics"`
}
