package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware 请求日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}
		status := c.Writer.Status()
		entry := GetRequestLogger(c).WithFields(logrus.Fields{
			"status":  status,
			"method":  c.Request.Method,
			"path":    path,
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		if userID := GetUserID(c); userID != "" {
			entry = entry.WithFields(logrus.Fields{
				"user_id":   userID,
				"tenant_id": GetTenantID(c),
				"role":      GetUserRole(c),
			})
		}

		switch {
		case status >= 500:
			entry.Error("[API] 请求失败")
		case status >= 400:
			entry.Warn("[API] 请求被拒绝")
		default:
			entry.Info("[API] 请求完成")
		}
	}
}
