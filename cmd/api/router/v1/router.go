package v1

import (
	"log/slog"
	"net/http"
	"time"

	httpHandler "go-chatroom/internal/pkg/chat/presentation/http"

	"github.com/gin-gonic/gin"
)

// NewEngine builds the gin engine with the health route and every version 1 route.
func NewEngine(log *slog.Logger, deps httpHandler.Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	RegisterRoutes(r, deps)
	return r
}

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, deps httpHandler.Dependencies) {
	v1 := r.Group("/api/v1")
	httpHandler.RegisterRoutes(v1, deps)
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
