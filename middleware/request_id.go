package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BerniceZTT/posalpro_end/utils"
)

// RequestIDHeader 请求ID响应头
const RequestIDHeader = "X-Request-ID"

// RequestID 为每个请求分配ID并记录开始时间，客户端传入合法的 UUID 时沿用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(utils.ContextRequestStartKey, time.Now())

		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(utils.ContextRequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
