package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/adampresley/albummirror/pkg/models"
	"github.com/alitto/pond/v2"
)

type PublishServicer interface {
	PublishAll() (models.PublishResult, error)
}

type PublishServiceConfig struct {
	AssetService    AssetServicer
	Bucket          string
	ObjectStore     ObjectStorer
	ParallelUploads int
	Prefix          string
	ShutdownCtx     context.Context
}

/*
PublishService copies converted derivatives to an object storage
bucket, keyed as <prefix>/<album id>/<file name>.
*/
type PublishService struct {
	assetService    AssetServicer
	bucket          string
	objectStore     ObjectStorer
	parallelUploads int
	prefix          string
	shutdownCtx     context.Context
}

func NewPublishService(config PublishServiceConfig) PublishService {
	if config.ParallelUploads <= 0 {
		config.ParallelUploads = 1
	}

	if config.ShutdownCtx == nil {
		config.ShutdownCtx = context.Background()
	}

	return PublishService{
		assetService:    config.AssetService,
		bucket:          config.Bucket,
		objectStore:     config.ObjectStore,
		parallelUploads: config.ParallelUploads,
		prefix:          config.Prefix,
		shutdownCtx:     config.ShutdownCtx,
	}
}

func (p PublishService) PublishAll() (models.PublishResult, error) {
	var (
		err       error
		converted []*models.Asset
		existing  map[string]time.Time
		uploaded  atomic.Int64
		skipped   atomic.Int64
		failed    atomic.Int64
	)

	if err = p.objectStore.EnsureBucket(p.bucket); err != nil {
		return models.PublishResult{}, err
	}

	if converted, err = p.assetService.GetConverted(); err != nil {
		return models.PublishResult{}, err
	}

	if existing, err = p.objectStore.List(p.bucket, p.prefix); err != nil {
		return models.PublishResult{}, err
	}

	slog.Info("publishing derivatives...", "numImages", len(converted), "bucket", p.bucket)

	pool := pond.NewPool(p.parallelUploads, pond.WithContext(p.shutdownCtx))

	for _, asset := range converted {
		for _, localPath := range []string{models.StringValue(asset.AvifPath), models.StringValue(asset.ThumbnailPath)} {
			pool.Submit(func() {
				key := p.Key(asset.AlbumID, localPath)
				didUpload, err := p.publishFile(localPath, key, existing)

				if err != nil {
					slog.Error("error publishing derivative", "assetID", asset.ID, "key", key, "error", err)
					failed.Add(1)
					return
				}

				if didUpload {
					uploaded.Add(1)
				} else {
					skipped.Add(1)
				}
			})
		}
	}

	_ = pool.Stop().Wait()

	result := models.PublishResult{
		Uploaded: int(uploaded.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}

	slog.Info("publish complete", "uploaded", result.Uploaded, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (p PublishService) Key(albumID, localPath string) string {
	return path.Join(p.prefix, albumID, filepath.Base(localPath))
}

/*
publishFile uploads a derivative unless the bucket already holds a copy
at least as new as the local file.
*/
func (p PublishService) publishFile(localPath, key string, existing map[string]time.Time) (bool, error) {
	var (
		err  error
		info os.FileInfo
		file *os.File
	)

	if info, err = os.Stat(localPath); err != nil {
		return false, fmt.Errorf("error reading derivative '%s': %w", localPath, err)
	}

	remoteModified, exists := existing[key]

	if exists && !remoteModified.Before(info.ModTime()) {
		return false, nil
	}

	if file, err = os.Open(localPath); err != nil {
		return false, fmt.Errorf("error opening derivative '%s': %w", localPath, err)
	}

	defer file.Close()

	if err = p.objectStore.Put(p.bucket, key, file); err != nil {
		return false, err
	}

	slog.Info("published derivative", "key", key)
	return true, nil
}
