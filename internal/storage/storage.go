// Package storage keeps user uploaded files such as avatars.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Guimenn/Zelos-Senai-sub003/pkg/config"
	"go.uber.org/zap"
)

// ErrInvalidKey is returned for keys that would escape the storage root
var ErrInvalidKey = errors.New("invalid storage key")

// Storage stores objects under a key and serves them from a public URL
type Storage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the storage backend selected in cfg
func New(cfg config.StorageConfig, log *zap.Logger) (Storage, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	case "supabase":
		return NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.Bucket, log), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." || strings.HasPrefix(key, "..") {
		return "", ErrInvalidKey
	}
	return key, nil
}
