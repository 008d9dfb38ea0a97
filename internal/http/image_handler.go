package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"otp-auth/internal/upload"
)

// ImageHandler sirve las imagenes de perfil guardadas en upload.Store.
type ImageHandler struct {
	logger *zap.Logger
	images upload.Store
}

func NewImageHandler(logger *zap.Logger, images upload.Store) *ImageHandler {
	return &ImageHandler{logger: logger, images: images}
}

// Serve maneja GET /uploads/*key.
func (h *ImageHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if h.images == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Image not found"})
		return
	}

	rc, err := h.images.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, upload.ErrNotFound) || errors.Is(err, upload.ErrInvalidKey) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Image not found"})
			return
		}
		h.logger.Error("open image failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load image"})
		return
	}
	defer rc.Close()

	c.Header("Content-Type", upload.ContentTypeForKey(key))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Warn("stream image interrupted", zap.String("key", key), zap.Error(err))
	}
}
