package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRole 用户角色枚举
type UserRole string

const (
	UserRoleSUPER_ADMIN UserRole = "SUPER_ADMIN" // 超级管理员
	UserRoleADMIN       UserRole = "ADMIN"       // 系统管理员
	UserRoleMANAGER     UserRole = "MANAGER"     // 销售经理
	UserRoleSALES       UserRole = "SALES"       // 销售
	UserRoleVIEWER      UserRole = "VIEWER"      // 只读用户
)

// roleRanks 角色等级，数值越大权限越高
var roleRanks = map[UserRole]int{
	UserRoleVIEWER:      1,
	UserRoleSALES:       2,
	UserRoleMANAGER:     3,
	UserRoleADMIN:       4,
	UserRoleSUPER_ADMIN: 5,
}

// RoleRank 返回角色等级，未知角色为0
func RoleRank(role UserRole) int {
	return roleRanks[role]
}

// MeetsRole 判断 role 是否达到 minRole 要求。
// minRole 为空表示无要求；minRole 不在角色表中时任何人都不满足。
func MeetsRole(role UserRole, minRole UserRole) bool {
	if minRole == "" {
		return true
	}
	need, ok := roleRanks[minRole]
	if !ok {
		return false
	}
	return RoleRank(role) >= need
}

// UserStatus 用户状态枚举
type UserStatus string

const (
	UserStatusACTIVE   UserStatus = "active"
	UserStatusINACTIVE UserStatus = "inactive"
)

// User 用户类型
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Username    string             `bson:"username" json:"username"`
	Password    string             `bson:"password" json:"-"` // 不返回密码
	Email       string             `bson:"email" json:"email"`
	Phone       string             `bson:"phone" json:"phone"`
	Role        UserRole           `bson:"role" json:"role"`
	Status      UserStatus         `bson:"status" json:"status"`
	Department  string             `bson:"department,omitempty" json:"department,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	LastLoginAt time.Time          `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
}

// AuthContext 请求的认证上下文，由认证中间件提供
type AuthContext struct {
	UserID string   `json:"userId"`
	Role   UserRole `json:"role"`
}
