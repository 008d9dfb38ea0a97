package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"otp-auth/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas base.
// Solo se acepta X-Forwarded-For de trustedProxies; sin proxies la IP es la del socket.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	imageH *ImageHandler,
	ipLimiter service.RateLimiter,
	trustedProxies []string,
) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Auth Backend API is running...")
	})
	r.GET("/uploads/*key", imageH.Serve)

	auth := r.Group("/auth", RateLimitMiddleware(ipLimiter))
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/verify-otp", authH.VerifyOTP)

	protected := auth.Group("", AuthMiddleware(logger, authH.authServ))
	protected.GET("/profile", authH.Profile)
	protected.DELETE("/delete-account", authH.DeleteAccount)

	return r, nil
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
