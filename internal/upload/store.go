// Package upload guarda las imagenes de perfil subidas en el registro.
//
// Las imagenes se identifican por una clave relativa (por ejemplo
// "profile_images/1700000000000-<uuid>.png") que es la que se persiste en el
// usuario, de modo que la raiz fisica o el bucket pueden cambiar sin migrar datos.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix es el directorio logico de las imagenes de perfil.
const Prefix = "profile_images"

var (
	ErrNotFound   = errors.New("image not found")
	ErrInvalidKey = errors.New("invalid image key")
)

// Store persiste imagenes por clave.
type Store interface {
	Save(ctx context.Context, key, contentType string, content io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete no falla si la imagen ya no existe.
	Delete(ctx context.Context, key string) error
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// AllowedContentType indica si el tipo esta en la lista de imagenes aceptadas.
func AllowedContentType(contentType string) bool {
	_, ok := extensions[contentType]
	return ok
}

// NewKey genera una clave unica; el nombre original del cliente no forma parte de ella.
func NewKey(contentType string, now time.Time) string {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%d-%s%s", Prefix, now.UnixMilli(), uuid.NewString(), ext)
}

// ContentTypeForKey deduce el content type a partir de la extension de la clave.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return ErrInvalidKey
		}
	}
	return nil
}
