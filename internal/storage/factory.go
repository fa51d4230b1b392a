package storage

import (
	"context"
	"fmt"

	appconfig "github.com/VNZray/capstone-project-sub008/internal/config"
)

type FactoryResult struct {
	Driver  string
	Storage Storage
}

func New(ctx context.Context, cfg appconfig.StorageConfig) (FactoryResult, error) {
	switch cfg.Driver {
	case "", "local":
		return FactoryResult{Driver: "local", Storage: NewLocal(cfg.LocalDir, cfg.LocalURL)}, nil

	case "s3":
		if cfg.S3Region == "" || cfg.S3Bucket == "" {
			return FactoryResult{}, fmt.Errorf("storage: S3_REGION and S3_BUCKET are required for the s3 driver")
		}
		s, err := NewS3(ctx, S3Config{
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			PublicBaseURL: cfg.S3PublicBase,
		})
		if err != nil {
			return FactoryResult{}, err
		}
		return FactoryResult{Driver: "s3", Storage: s}, nil

	default:
		return FactoryResult{}, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
