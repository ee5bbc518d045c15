package storage

import (
	"fmt"

	"github.com/wrprafra/newsletter-project/internal/config"
)

// NewObjectStorage builds storage from configuration. Provider "none"
// returns nil; callers then keep third-party image URLs as-is.
// Parameters:
//   - cfg: storage configuration.
// Returns:
//   - ObjectStorage: storage client, or nil when rehosting is disabled.
//   - error: non-nil for unknown providers or construction failure.
func NewObjectStorage(cfg *config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "s3":
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
