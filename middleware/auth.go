package middleware

import (
	"net/http"
	"strings"

	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证中间件，要求有效的 Bearer token
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Logger.Info().Str("path", c.Request.URL.Path).Msg("缺少Authorization头")
			abortUnauthorized(c, "未授权访问", "MISSING_TOKEN")
			return
		}
		if !authenticate(c, authHeader) {
			return
		}
		c.Next()
	}
}

// OptionalAuth 可选认证：没有 Authorization 头时按匿名访问，有则必须有效
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if !authenticate(c, authHeader) {
				return
			}
		}
		c.Next()
	}
}

// RequireRole 要求当前用户角色不低于 minRole，需放在 AuthMiddleware 之后
func RequireRole(minRole models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := utils.GetUser(c)
		if err != nil {
			abortUnauthorized(c, "用户未认证", "UNAUTHENTICATED")
			return
		}

		if !models.MeetsRole(models.UserRole(user.Role), minRole) {
			utils.Logger.Info().
				Str("username", user.Username).
				Str("role", user.Role).
				Str("required", string(minRole)).
				Msg("权限不足")

			utils.HandleError(c, utils.CreateForbiddenError())
			return
		}
		c.Next()
	}
}

// authenticate 解析 Bearer token 并把用户写入上下文，失败时中断请求
func authenticate(c *gin.Context, authHeader string) bool {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		utils.Logger.Info().Msg("Authorization头格式错误")
		abortUnauthorized(c, "未授权访问", "MISSING_TOKEN")
		return false
	}

	claims, err := utils.ParseToken(strings.TrimSpace(token))
	if err != nil {
		utils.Logger.Warn().Err(err).Str("authorization", getShortAuthHeader(authHeader)).Msg("Token验证失败")
		abortUnauthorized(c, "无效的token", "INVALID_TOKEN")
		return false
	}

	user, err := utils.UserFromClaims(claims)
	if err != nil {
		utils.Logger.Warn().Err(err).Msg("Token负载缺少必要字段")
		abortUnauthorized(c, "Token缺少必要字段", "INVALID_TOKEN")
		return false
	}

	c.Set(utils.ContextUserKey, user)
	utils.Logger.Debug().Str("username", user.Username).Str("role", user.Role).Msg("验证成功")
	return true
}

func abortUnauthorized(c *gin.Context, message, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// getShortAuthHeader 获取截断的授权头，保护敏感信息
func getShortAuthHeader(header string) string {
	if len(header) > 15 {
		return header[:15] + "..."
	}
	return header
}
