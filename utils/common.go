package utils

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/posalpro_end/models"
)

// gin 上下文中的键
const (
	ContextUserKey         = "user"         // 认证中间件保存的当前用户
	ContextRequestIDKey    = "requestId"    // 请求ID
	ContextRequestStartKey = "requestStart" // 请求开始时间
)

// LoginUser 当前登录用户
type LoginUser struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Username string `json:"username"`
}

// AuthContext 转换为字段投影使用的认证上下文
func (u *LoginUser) AuthContext() *models.AuthContext {
	if u == nil {
		return nil
	}
	return &models.AuthContext{UserID: u.ID, Role: models.UserRole(u.Role)}
}

// UserFromClaims 从JWT claims中提取用户信息
func UserFromClaims(claims map[string]interface{}) (*LoginUser, error) {
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("无效的用户ID")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, fmt.Errorf("无效的用户角色")
	}
	username, _ := claims["username"].(string)
	return &LoginUser{ID: id, Role: role, Username: username}, nil
}

// GetUser 获取当前用户信息
func GetUser(c *gin.Context) (*LoginUser, error) {
	currentUser, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, fmt.Errorf("GetUser 未授权访问")
	}

	switch v := currentUser.(type) {
	case *LoginUser:
		return v, nil
	case jwt.MapClaims:
		return UserFromClaims(v)
	case map[string]interface{}:
		return UserFromClaims(v)
	}
	return nil, fmt.Errorf("无法识别的用户信息类型: %T", currentUser)
}

// GetAuthContext 获取请求的认证上下文，未登录返回nil
func GetAuthContext(c *gin.Context) *models.AuthContext {
	user, err := GetUser(c)
	if err != nil {
		return nil
	}
	return user.AuthContext()
}

// ResponseMeta 响应 meta 中的公共字段：请求ID与处理耗时（毫秒）
func ResponseMeta(c *gin.Context) gin.H {
	meta := gin.H{"requestId": c.GetString(ContextRequestIDKey)}
	if start, ok := c.Get(ContextRequestStartKey); ok {
		if t, ok := start.(time.Time); ok {
			meta["responseTimeMs"] = float64(time.Since(t).Microseconds()) / 1000
		}
	}
	return meta
}
