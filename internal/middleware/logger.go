package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gridflow/pkg/logger"
)

const RequestId = "requestId"

// RequestID 设置和透传 requestId
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := uuid.NewString()
		c.Header("X-Request-Id", requestId)
		c.Set(RequestId, requestId)
		c.Next()
	}
}

// Logger 请求日志
func Logger(c *gin.Context) {
	t := time.Now()
	reqPath := c.Request.URL.Path
	reqId := c.GetString(RequestId)
	method := c.Request.Method
	ip := c.ClientIP()

	c.Next()

	latency := time.Since(t)
	logger.Info("[Request]",
		logger.Pair(RequestId, reqId),
		logger.Pair("host", ip),
		logger.Pair("path", reqPath),
		logger.Pair("method", method),
		logger.Pair("status", c.Writer.Status()),
		logger.Pair("cost", latency))
}
