package services

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/adampresley/albummirror/pkg/imaging"
	"github.com/adampresley/albummirror/pkg/models"
	"github.com/alitto/pond/v2"
	"github.com/dustin/go-humanize"
)

type ConversionServicer interface {
	ConvertAll() (models.ConversionResult, error)
	Reindex() (models.ConversionResult, error)
}

type ConversionServiceConfig struct {
	AssetService        AssetServicer
	AvifRoot            string
	Encoder             imaging.Encoder
	MaxFileSize         int64
	MaxWidth            int
	MinQuality          float32
	ParallelConversions int
	Quality             float32
	ShutdownCtx         context.Context
	ThumbnailWidth      int

	// CPUWorkers bounds concurrent decode/resize/encode work. Defaults to
	// the number of CPUs.
	CPUWorkers int
}

type ConversionService struct {
	assetService        AssetServicer
	avifRoot            string
	cpuWorkers          int
	encoder             imaging.Encoder
	maxFileSize         int64
	maxWidth            int
	minQuality          float32
	parallelConversions int
	quality             float32
	shutdownCtx         context.Context
	thumbnailWidth      int
}

type conversionOutcome int

const (
	outcomeConverted conversionOutcome = iota
	outcomeSkipped
)

type derivatives struct {
	primary   imaging.Encoded
	thumbnail imaging.Encoded
}

func NewConversionService(config ConversionServiceConfig) ConversionService {
	if config.ParallelConversions <= 0 {
		config.ParallelConversions = 1
	}

	if config.CPUWorkers <= 0 {
		config.CPUWorkers = runtime.NumCPU()
	}

	if config.ShutdownCtx == nil {
		config.ShutdownCtx = context.Background()
	}

	return ConversionService{
		assetService:        config.AssetService,
		avifRoot:            config.AvifRoot,
		cpuWorkers:          config.CPUWorkers,
		encoder:             config.Encoder,
		maxFileSize:         config.MaxFileSize,
		maxWidth:            config.MaxWidth,
		minQuality:          config.MinQuality,
		parallelConversions: config.ParallelConversions,
		quality:             config.Quality,
		shutdownCtx:         config.ShutdownCtx,
		thumbnailWidth:      config.ThumbnailWidth,
	}
}

/*
ConvertAll converts every asset that has an original but no complete
set of derivatives. Failures are counted per asset and leave the asset
pending for the next run.
*/
func (c ConversionService) ConvertAll() (models.ConversionResult, error) {
	var (
		err         error
		unconverted []*models.Asset
		converted   atomic.Int64
		skipped     atomic.Int64
		failed      atomic.Int64
	)

	if unconverted, err = c.assetService.GetUnconverted(); err != nil {
		return models.ConversionResult{}, err
	}

	slog.Info("found images to convert", "numImages", len(unconverted))

	pool := pond.NewPool(c.parallelConversions, pond.WithContext(c.shutdownCtx))
	cpuPool := pond.NewPool(c.cpuWorkers, pond.WithContext(c.shutdownCtx))

	for _, asset := range unconverted {
		pool.Submit(func() {
			outcome, err := c.convertAsset(cpuPool, asset)

			if err != nil {
				slog.Error("conversion failed", "assetID", asset.ID, "filename", asset.Filename, "error", err)
				failed.Add(1)
				return
			}

			if outcome == outcomeConverted {
				converted.Add(1)
			} else {
				skipped.Add(1)
			}
		})
	}

	_ = pool.Stop().Wait()
	_ = cpuPool.Stop().Wait()

	result := models.ConversionResult{
		Converted: int(converted.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}

	slog.Info("conversion complete", "converted", result.Converted, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (c ConversionService) convertAsset(cpuPool pond.Pool, asset *models.Asset) (conversionOutcome, error) {
	var (
		err     error
		results derivatives
	)

	l := slog.With("assetID", asset.ID, "albumID", asset.AlbumID)

	if asset.OriginalPath == nil || *asset.OriginalPath == "" {
		l.Warn("asset has no original path")
		return outcomeSkipped, nil
	}

	originalPath := *asset.OriginalPath

	if !fileExists(originalPath) {
		l.Warn("original file not found", "path", originalPath)
		return outcomeSkipped, nil
	}

	avifPath := AvifPath(c.avifRoot, asset.AlbumID, asset.ID)
	thumbnailPath := ThumbnailPath(c.avifRoot, asset.AlbumID, asset.ID)

	if fileExists(avifPath) && fileExists(thumbnailPath) {
		l.Debug("AVIF files already exist", "avifPath", avifPath, "thumbnailPath", thumbnailPath)

		if err = c.assetService.MarkConverted(asset.ID, avifPath, thumbnailPath); err != nil {
			return outcomeSkipped, err
		}

		return outcomeSkipped, nil
	}

	l.Info("converting", "filename", asset.Filename, "avifPath", avifPath)

	task := cpuPool.SubmitErr(func() error {
		var work error
		results, work = c.encodeDerivatives(originalPath)
		return work
	})

	if err = task.Wait(); err != nil {
		return outcomeSkipped, err
	}

	if err = writeFileAtomic(avifPath, results.primary.Data); err != nil {
		return outcomeSkipped, err
	}

	if err = writeFileAtomic(thumbnailPath, results.thumbnail.Data); err != nil {
		return outcomeSkipped, err
	}

	if err = c.assetService.MarkConverted(asset.ID, avifPath, thumbnailPath); err != nil {
		return outcomeSkipped, err
	}

	l.Info("converted",
		"primarySize", humanize.Bytes(uint64(len(results.primary.Data))),
		"primaryQuality", results.primary.Quality,
		"thumbnailSize", humanize.Bytes(uint64(len(results.thumbnail.Data))),
		"thumbnailQuality", results.thumbnail.Quality,
	)

	return outcomeConverted, nil
}

/*
encodeDerivatives decodes the original once and encodes both the
primary image and the thumbnail from it. This is the CPU heavy part of
a conversion.
*/
func (c ConversionService) encodeDerivatives(originalPath string) (derivatives, error) {
	var (
		err    error
		img    image.Image
		result derivatives
	)

	if img, _, err = imaging.DecodeFile(originalPath); err != nil {
		return result, err
	}

	budget := imaging.Budget{
		Quality:     c.quality,
		MinQuality:  c.minQuality,
		MaxFileSize: c.maxFileSize,
	}

	if result.primary, err = imaging.EncodeWithinBudget(c.encoder, imaging.FitWidth(img, c.maxWidth), budget); err != nil {
		return result, fmt.Errorf("error encoding primary image: %w", err)
	}

	if result.thumbnail, err = imaging.EncodeWithinBudget(c.encoder, imaging.FitWidth(img, c.thumbnailWidth), budget); err != nil {
		return result, fmt.Errorf("error encoding thumbnail: %w", err)
	}

	return result, nil
}

/*
Reindex throws away every derivative and conversion record, then
converts everything again from the originals.
*/
func (c ConversionService) Reindex() (models.ConversionResult, error) {
	var (
		err     error
		cleared int64
	)

	slog.Info("starting reindex...", "avifRoot", c.avifRoot)

	if err = os.RemoveAll(c.avifRoot); err != nil {
		slog.Warn("failed to delete AVIF directory", "path", c.avifRoot, "error", err)
	}

	if err = os.MkdirAll(c.avifRoot, 0o755); err != nil {
		return models.ConversionResult{}, fmt.Errorf("error recreating AVIF directory '%s': %w", c.avifRoot, err)
	}

	if cleared, err = c.assetService.ClearAllConversions(); err != nil {
		return models.ConversionResult{}, err
	}

	slog.Info("cleared conversion data", "numImages", cleared)
	return c.ConvertAll()
}

func AvifPath(avifRoot, albumID, assetID string) string {
	return filepath.Join(avifRoot, albumID, assetID+".avif")
}

func ThumbnailPath(avifRoot, albumID, assetID string) string {
	return filepath.Join(avifRoot, albumID, assetID+"_thumb.avif")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

/*
writeFileAtomic writes data next to path and renames it into place so
a half written derivative is never mistaken for a finished one.
*/
func writeFileAtomic(path string, data []byte) error {
	var (
		err error
	)

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directory for '%s': %w", path, err)
	}

	tmpPath := path + ".tmp"

	if err = os.WriteFile(tmpPath, data, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("error writing '%s': %w", tmpPath, err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("error moving '%s' into place: %w", path, err)
	}

	return nil
}
