package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"audit-server/internal/pkg/response"
)

// Recovery 捕获 panic，记录日志并返回 500。verbose 时附带堆栈
func Recovery(verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				entry := GetRequestLogger(c).WithFields(logrus.Fields{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
				})
				if verbose {
					entry.Errorf("PANIC: %v\n%s", r, debug.Stack())
				} else {
					entry.Errorf("PANIC: %v", r)
				}
				response.Abort(c, http.StatusInternalServerError, "服务器内部错误")
			}
		}()
		c.Next()
	}
}
