package filestorage

import (
	"context"
	"fmt"

	"github.com/user/courier/internal/config"
)

func NewStorage(ctx context.Context, cfg config.FileStorageConfig) (Storage, error) {
	switch cfg.Type {
	case "s3":
		endpoint := cfg.S3.Endpoint
		if endpoint != "" && !hasScheme(endpoint) {
			if cfg.S3.UseSSL {
				endpoint = "https://" + endpoint
			} else {
				endpoint = "http://" + endpoint
			}
		}
		return NewS3Storage(ctx, endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
	case "local", "":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "uploads"
		}
		return NewLocalStorage(dir)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func hasScheme(endpoint string) bool {
	for i := 0; i < len(endpoint); i++ {
		if endpoint[i] == ':' {
			return i+2 < len(endpoint) && endpoint[i+1] == '/' && endpoint[i+2] == '/'
		}
		if endpoint[i] == '/' {
			return false
		}
	}
	return false
}
