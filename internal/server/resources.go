package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"imageshelf/internal/config"
	"imageshelf/internal/database"
	"imageshelf/internal/domain/identity"
	"imageshelf/internal/repository"
	"imageshelf/internal/storage"
)

// Resources holds the stores opened from configuration. Close releases
// them.
type Resources struct {
	Deps
	closers []func() error
}

// Open connects the metadata store and the byte storage selected by cfg.
// The event hub is left to the caller.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Resources, error) {
	if log == nil {
		log = zap.NewNop()
	}
	res := &Resources{}

	switch cfg.Database.Driver {
	case config.DatabaseBadger:
		store, err := repository.NewBadgerStore(cfg.Database.BadgerDir)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, store.Close)
		res.Images = store.Images()
		res.Identities = identity.NewService(store.Identities(), log.Named("identity"))
		log.Info("metadata store opened", zap.String("driver", "badger"), zap.String("dir", cfg.Database.BadgerDir))
	default:
		db, err := database.Connect(cfg.Database.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, sqlDB.Close)
		if err := database.Migrate(db); err != nil {
			_ = res.Close()
			return nil, err
		}
		res.Images = repository.NewImageRepository(db)
		res.Identities = identity.NewService(repository.NewIdentityRepository(db), log.Named("identity"))
		log.Info("metadata store opened", zap.String("driver", "sql"), zap.Bool("postgres", database.IsPostgres(cfg.Database.DSN)))
	}

	switch cfg.Storage.Driver {
	case config.StorageMinio:
		files, err := storage.NewMinioStorage(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.UseSSL)
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		created, err := files.EnsureBucket(ctx)
		if err != nil {
			log.Warn("failed to ensure bucket exists", zap.String("bucket", cfg.S3.Bucket), zap.Error(err))
		} else if created {
			log.Info("bucket created", zap.String("bucket", cfg.S3.Bucket))
		}
		res.Files = files
		log.Info("storage opened", zap.String("driver", "minio"), zap.String("bucket", cfg.S3.Bucket))
	default:
		files, err := storage.NewLocalStorage(cfg.Upload.Dir)
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		res.Files = files
		log.Info("storage opened", zap.String("driver", "local"), zap.String("dir", cfg.Upload.Dir))
	}

	return res, nil
}

func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
