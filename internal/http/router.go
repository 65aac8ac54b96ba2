package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scoutlink/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas de mensajeria.
func NewRouter(logger *zap.Logger, jwtSvc *service.JWTService, msgH *MessagingHandler) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	authed := r.Group("/", JWTAuthMiddleware(jwtSvc))
	authed.POST("/messages", msgH.SendMessage)
	authed.GET("/conversations", msgH.ListConversations)
	authed.GET("/conversations/:key/messages", msgH.GetMessages)
	authed.POST("/conversations/:key/read", msgH.MarkRead)
	authed.GET("/conversations/:key/events", msgH.StreamEvents)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
