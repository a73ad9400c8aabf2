package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/aegis/degrade"
)

// Middleware 返回 gin 中间件。
//
// 指定能力类别在当前档位被禁用时，以 503 拒绝请求并附带当前档位
// 与建议说明，供前端做降级展示。
//
// 使用示例:
//
//	r := gin.New()
//	r.GET("/v1/feed/live", g.Middleware(degrade.FeatureRealTimeUpdates), liveFeedHandler)
func (g *guardImpl) Middleware(category degrade.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		if category != "" && !g.degrade.IsFeatureEnabled(category) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":           ErrFeatureDisabled.Error(),
				"category":        string(category),
				"profile":         g.degrade.ProfileName(),
				"recommendations": g.degrade.Recommendations(),
			})
			return
		}
		c.Next()
	}
}

// StatusHandler 返回以 JSON 输出系统状态快照的 gin 处理器。
//
// 使用示例:
//
//	r.GET("/debug/resilience", g.StatusHandler())
func (g *guardImpl) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, g.Status())
	}
}
