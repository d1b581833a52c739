package changes

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"linkcore/internal/config"
	"linkcore/internal/infra/objectstore"
	fsstore "linkcore/internal/infra/objectstore/fs"
	memstore "linkcore/internal/infra/objectstore/memory"
	s3store "linkcore/internal/infra/objectstore/s3"
)

// OpenStore returns the object store selected by cfg, or nil when archiving
// is disabled.
func OpenStore(ctx context.Context, cfg config.ChangesConfig) (objectstore.Store, error) {
	switch cfg.Driver {
	case config.ChangesNone:
		return nil, nil
	case config.ChangesMemory, "":
		return memstore.New(), nil
	case config.ChangesFS:
		return fsstore.New(cfg.FSRoot)
	case config.ChangesS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown changes driver %s", cfg.Driver)
	}
}

// OpenArchive wires an Archive over the store selected by cfg. It returns a
// nil archive when archiving is disabled.
func OpenArchive(ctx context.Context, cfg config.ChangesConfig, logger *zap.Logger) (*Archive, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open change store: %w", err)
	}
	if store == nil {
		return nil, nil
	}
	return NewArchive(store, cfg.Prefix, logger), nil
}
