package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adampresley/adamgokit/awsconfig"
	"github.com/adampresley/adamgokit/retrier"
	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/albummirror/cmd/albummirror/internal/configuration"
	"github.com/adampresley/albummirror/pkg/database"
	"github.com/adampresley/albummirror/pkg/immich"
	"github.com/adampresley/albummirror/pkg/imaging"
	"github.com/adampresley/albummirror/pkg/services"
	"github.com/gofrs/flock"
	"github.com/rfberaldo/sqlz"
)

/*
app holds everything a command needs, wired from configuration.
publishService is nil when no bucket is configured.
*/
type app struct {
	config configuration.Config

	db           *sqlz.DB
	immichClient *immich.Client

	albumService      services.AlbumService
	assetService      services.AssetService
	conversionService services.ConversionService
	publishService    services.PublishServicer
	syncService       services.SyncService
}

func newApp(shutdownCtx context.Context, config configuration.Config) (*app, error) {
	var (
		err  error
		auth immich.AuthProvider
	)

	for _, dir := range []string{config.StoragePath, config.OriginalPath(), config.AvifPath()} {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating storage directory '%s': %w", dir, err)
		}
	}

	result := &app{
		config: config,
	}

	if result.db, err = database.Connect(database.DSN(config.DBPath())); err != nil {
		return nil, err
	}

	if auth, err = config.AuthProvider(); err != nil {
		result.close()
		return nil, err
	}

	result.immichClient = immich.NewClient(immich.ClientConfig{
		BaseURL: config.ImmichURL,
		Auth:    auth,
	})

	result.albumService = services.NewAlbumService(services.AlbumServiceConfig{
		DB: result.db,
	})

	result.assetService = services.NewAssetService(services.AssetServiceConfig{
		DB: result.db,
	})

	result.syncService = services.NewSyncService(services.SyncServiceConfig{
		AlbumService:      result.albumService,
		AssetService:      result.assetService,
		DeleteRemoved:     config.SyncDeleteRemoved,
		OriginalRoot:      config.OriginalPath(),
		ParallelDownloads: config.SyncParallelDownloads,
		Remote:            result.immichClient,
		ShutdownCtx:       shutdownCtx,
	})

	result.conversionService = services.NewConversionService(services.ConversionServiceConfig{
		AssetService: result.assetService,
		AvifRoot:     config.AvifPath(),
		Encoder: imaging.NewAvifEncoder(imaging.AvifEncoderConfig{
			Speed: config.ImageEncodeSpeed,
		}),
		MaxFileSize:         int64(config.ImageMaxFileSize),
		MaxWidth:            config.ImageMaxWidth,
		MinQuality:          float32(config.ImageMinQuality),
		ParallelConversions: config.SyncParallelConversions,
		Quality:             float32(config.ImageQuality),
		ShutdownCtx:         shutdownCtx,
		ThumbnailWidth:      config.ImageThumbnailWidth,
	})

	if config.PublishEnabled() {
		if result.publishService, err = setupPublisher(shutdownCtx, config, result.assetService); err != nil {
			result.close()
			return nil, err
		}
	}

	return result, nil
}

func (a *app) close() {
	if err := a.db.Pool().Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

func setupPublisher(shutdownCtx context.Context, config configuration.Config, assetService services.AssetServicer) (services.PublishServicer, error) {
	var (
		err error
	)

	awsConfig := &awsconfig.Config{
		Endpoint:        config.AwsEndpointUrl,
		Region:          config.AwsRegion,
		AccessKeyID:     config.AwsAccessKeyId,
		SecretAccessKey: config.AwsSecretAccessKey,
	}

	retrier.Retry(func() error {
		if err = awsConfig.Load(); err != nil {
			slog.Error("failed to load AWS config. trying again", "error", err)
			return err
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	s3Client, err := s3.NewClient(awsConfig)

	if err != nil {
		return nil, fmt.Errorf("error creating S3 client: %w", err)
	}

	publishService := services.NewPublishService(services.PublishServiceConfig{
		AssetService: assetService,
		Bucket:       config.AwsBucket,
		ObjectStore: services.NewS3ObjectStore(services.S3ObjectStoreConfig{
			Region:   config.AwsRegion,
			S3Client: s3Client,
		}),
		ParallelUploads: config.ParallelUploads,
		Prefix:          config.AwsPrefix,
		ShutdownCtx:     shutdownCtx,
	})

	return publishService, nil
}

/*
acquireLock takes the run lock for commands that change the mirror. It
fails right away when another process holds it.
*/
func acquireLock(lockPath string) (*flock.Flock, error) {
	var (
		err    error
		locked bool
	)

	if err = os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("error creating lock directory: %w", err)
	}

	lock := flock.New(lockPath)

	if locked, err = lock.TryLock(); err != nil {
		return nil, fmt.Errorf("error acquiring lock '%s': %w", lockPath, err)
	}

	if !locked {
		return nil, fmt.Errorf("another %s process is already running (lock '%s')", appName, lockPath)
	}

	return lock, nil
}

func releaseLock(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		slog.Warn("failed to release lock", "path", lock.Path(), "error", err)
	}
}
