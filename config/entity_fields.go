package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/BerniceZTT/posalpro_end/models"
)

// 内置实体类型
const (
	EntityHealth   = "health"
	EntityProposal = "proposal"
	EntityCustomer = "customer"
	EntityProduct  = "product"
	EntityUser     = "user"
)

// DefaultOwnerField 默认的所有者字段
const DefaultOwnerField = "ownerId"

// DefaultEntityFields 内置的实体字段白名单
func DefaultEntityFields() map[string]models.EntityFieldConfig {
	return map[string]models.EntityFieldConfig{
		EntityHealth: {
			AllowedFields: []string{"status", "timestamp", "uptime", "memory", "cpu", "database", "services", "version", "environment"},
		},
		EntityProposal: {
			AllowedFields: []string{"id", "title", "customerId", "customerName", "status", "value", "currency", "priority", "margin", "internalNotes", "ownerId", "ownerName", "dueDate", "closedAt", "createdAt", "updatedAt"},
			Security: models.FieldSecurity{
				RequiresAuth:     true,
				MinRole:          models.UserRoleMANAGER,
				RestrictedFields: []string{"margin", "internalNotes"},
			},
		},
		EntityCustomer: {
			AllowedFields: []string{"id", "name", "industry", "tier", "email", "phone", "address", "revenue", "ownerId", "createdAt", "updatedAt"},
			Security: models.FieldSecurity{
				RequiresAuth:     true,
				MinRole:          models.UserRoleMANAGER,
				RestrictedFields: []string{"revenue"},
			},
		},
		EntityProduct: {
			AllowedFields: []string{"id", "name", "sku", "category", "price", "cost", "currency", "isActive", "createdAt", "updatedAt"},
			Security: models.FieldSecurity{
				RequiresAuth:     true,
				MinRole:          models.UserRoleMANAGER,
				RestrictedFields: []string{"cost"},
			},
		},
		EntityUser: {
			AllowedFields: []string{"id", "username", "email", "phone", "role", "status", "department", "createdAt", "lastLoginAt"},
			Security: models.FieldSecurity{
				RequiresAuth:     true,
				MinRole:          models.UserRoleADMIN,
				RestrictedFields: []string{"status"},
				SelfAccessOnly:   []string{"email", "phone", "lastLoginAt"},
				OwnerField:       "id",
			},
		},
	}
}

// EntityField 白名单中的单个实体配置，构造后只读
type EntityField struct {
	allowed    []string
	allowedSet map[string]struct{}
	restricted map[string]struct{}
	selfOnly   map[string]struct{}

	requiresAuth bool
	minRole      models.UserRole
	ownerField   string
}

// AllowedFields 按配置顺序返回白名单字段的副本
func (e *EntityField) AllowedFields() []string {
	out := make([]string, len(e.allowed))
	copy(out, e.allowed)
	return out
}

// IsAllowed 字段是否在白名单中（区分大小写）
func (e *EntityField) IsAllowed(field string) bool {
	_, ok := e.allowedSet[field]
	return ok
}

// IsRestricted 字段是否需要 MinRole
func (e *EntityField) IsRestricted(field string) bool {
	_, ok := e.restricted[field]
	return ok
}

// IsSelfAccessOnly 字段是否仅所有者可见
func (e *EntityField) IsSelfAccessOnly(field string) bool {
	_, ok := e.selfOnly[field]
	return ok
}

func (e *EntityField) RequiresAuth() bool       { return e.requiresAuth }
func (e *EntityField) MinRole() models.UserRole { return e.minRole }
func (e *EntityField) OwnerField() string       { return e.ownerField }

// EntityFieldTable 进程级只读的实体字段配置表
type EntityFieldTable struct {
	entities map[string]*EntityField
}

// NewEntityFieldTable 由配置构造只读表。
// 安全相关字段必须出现在白名单中，否则返回错误。
func NewEntityFieldTable(cfg map[string]models.EntityFieldConfig) (*EntityFieldTable, error) {
	t := &EntityFieldTable{entities: make(map[string]*EntityField, len(cfg))}
	for name, ec := range cfg {
		if name == "" {
			return nil, fmt.Errorf("实体名称不能为空")
		}
		e := &EntityField{
			allowedSet:   make(map[string]struct{}, len(ec.AllowedFields)),
			restricted:   make(map[string]struct{}),
			selfOnly:     make(map[string]struct{}),
			requiresAuth: ec.Security.RequiresAuth,
			minRole:      ec.Security.MinRole,
			ownerField:   ec.Security.OwnerField,
		}
		if e.ownerField == "" {
			e.ownerField = DefaultOwnerField
		}
		for _, f := range ec.AllowedFields {
			if f == "" {
				return nil, fmt.Errorf("实体 %s 存在空字段名", name)
			}
			if _, dup := e.allowedSet[f]; dup {
				continue
			}
			e.allowedSet[f] = struct{}{}
			e.allowed = append(e.allowed, f)
		}
		for _, f := range ec.Security.RestrictedFields {
			if !e.IsAllowed(f) {
				return nil, fmt.Errorf("实体 %s 的受限字段 %s 不在白名单中", name, f)
			}
			e.restricted[f] = struct{}{}
		}
		for _, f := range ec.Security.SelfAccessOnly {
			if !e.IsAllowed(f) {
				return nil, fmt.Errorf("实体 %s 的本人可见字段 %s 不在白名单中", name, f)
			}
			e.selfOnly[f] = struct{}{}
		}
		t.entities[name] = e
	}
	return t, nil
}

// MustDefaultEntityFieldTable 使用内置配置构造表
func MustDefaultEntityFieldTable() *EntityFieldTable {
	t, err := NewEntityFieldTable(DefaultEntityFields())
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup 查找实体配置
func (t *EntityFieldTable) Lookup(entityType string) (*EntityField, bool) {
	if t == nil {
		return nil, false
	}
	e, ok := t.entities[entityType]
	return e, ok
}

// EntityTypes 返回已配置的实体类型（已排序）
func (t *EntityFieldTable) EntityTypes() []string {
	names := make([]string, 0, len(t.entities))
	for name := range t.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entityFieldsFile yaml 覆盖文件格式
type entityFieldsFile struct {
	Entities map[string]models.EntityFieldConfig `yaml:"entities"`
}

// LoadEntityFieldTable 加载实体字段配置。
// path 为空时使用内置配置；文件中的实体会整体覆盖同名内置实体。
func LoadEntityFieldTable(path string) (*EntityFieldTable, error) {
	cfg := DefaultEntityFields()
	if path == "" {
		return NewEntityFieldTable(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取实体字段配置失败: %w", err)
	}

	var file entityFieldsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("解析实体字段配置失败: %w", err)
	}
	for name, ec := range file.Entities {
		cfg[name] = ec
	}
	return NewEntityFieldTable(cfg)
}
