package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"otp-auth/internal/domain"
	"otp-auth/internal/service"
)

const authUserKey = "auth_user"

// SessionResolver resuelve un bearer token al usuario de la sesion.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (domain.UserView, error)
}

// AuthMiddleware exige un bearer token valido y guarda el usuario en el contexto.
func AuthMiddleware(logger *zap.Logger, sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Authentication not configured"})
			return
		}

		user, err := sessions.ResolveSession(c.Request.Context(), bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			status, message := http.StatusUnauthorized, "Not authorized, token failed"
			switch {
			case errors.Is(err, service.ErrTokenMissing):
				message = "Not authorized, no token"
			case errors.Is(err, service.ErrTokenExpired):
				message = "Not authorized, token expired"
			case errors.Is(err, service.ErrSessionUserGone):
				message = "Not authorized, user not found"
			case errors.Is(err, service.ErrDependency):
				status, message = http.StatusInternalServerError, "Server error while checking session"
			}
			logger.Warn("request not authorized",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(status, gin.H{"message": message})
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// GetAuthUser obtiene el usuario autenticado desde el contexto.
func GetAuthUser(c *gin.Context) (domain.UserView, bool) {
	val, ok := c.Get(authUserKey)
	if !ok {
		return domain.UserView{}, false
	}
	user, ok := val.(domain.UserView)
	return user, ok
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// RateLimitMiddleware aplica el limite por IP de cliente.
func RateLimitMiddleware(limiter service.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if d := limiter.Allow(c.Request.Context(), c.ClientIP()); !d.Allowed {
			setRetryAfter(c, d.RetryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many requests from this IP, please try again later",
			})
			return
		}
		c.Next()
	}
}

// setRetryAfter escribe Retry-After en segundos, redondeando hacia arriba.
func setRetryAfter(c *gin.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	secs := int64((d + time.Second - 1) / time.Second)
	c.Header("Retry-After", strconv.FormatInt(secs, 10))
}
