package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/adampresley/albummirror/pkg/immich"
	"github.com/adampresley/albummirror/pkg/models"
	"github.com/alitto/pond/v2"
)

/*
RemoteSource is the part of the Immich client the sync engine needs.
*/
type RemoteSource interface {
	ListAlbums(ctx context.Context) ([]immich.Album, error)
	GetAlbum(ctx context.Context, albumID string) (immich.Album, error)
	DownloadAsset(ctx context.Context, assetID, destPath string) (int64, error)
}

type SyncServicer interface {
	SyncAll() (models.SyncResult, error)
	SyncAlbum(albumID string) (models.SyncResult, error)
}

type SyncServiceConfig struct {
	AlbumService      AlbumServicer
	AssetService      AssetServicer
	DeleteRemoved     bool
	OriginalRoot      string
	ParallelDownloads int
	Remote            RemoteSource
	ShutdownCtx       context.Context
}

type SyncService struct {
	albumService      AlbumServicer
	assetService      AssetServicer
	deleteRemoved     bool
	originalRoot      string
	parallelDownloads int
	remote            RemoteSource
	shutdownCtx       context.Context
}

type syncItem struct {
	asset immich.Asset
	stale bool
}

func NewSyncService(config SyncServiceConfig) SyncService {
	if config.ParallelDownloads <= 0 {
		config.ParallelDownloads = 1
	}

	if config.ShutdownCtx == nil {
		config.ShutdownCtx = context.Background()
	}

	return SyncService{
		albumService:      config.AlbumService,
		assetService:      config.AssetService,
		deleteRemoved:     config.DeleteRemoved,
		originalRoot:      config.OriginalRoot,
		parallelDownloads: config.ParallelDownloads,
		remote:            config.Remote,
		shutdownCtx:       config.ShutdownCtx,
	}
}

/*
SyncAll syncs every album visible to the configured identity. A failing
album counts as one failure and does not stop the run. Only a failure
to list albums is returned as an error.
*/
func (s SyncService) SyncAll() (models.SyncResult, error) {
	var (
		err         error
		albums      []immich.Album
		result      models.SyncResult
		albumResult models.SyncResult
	)

	slog.Info("starting sync...")

	if albums, err = s.remote.ListAlbums(s.shutdownCtx); err != nil {
		return result, fmt.Errorf("error listing albums: %w", err)
	}

	slog.Info("found accessible albums", "numAlbums", len(albums))

	for _, album := range albums {
		slog.Info("syncing album", "albumID", album.ID, "name", album.AlbumName)

		if albumResult, err = s.SyncAlbum(album.ID); err != nil {
			slog.Error("error syncing album", "albumID", album.ID, "name", album.AlbumName, "error", err)
			result.Failed++
			continue
		}

		result.Add(albumResult)
	}

	slog.Info("sync complete",
		"downloaded", result.Downloaded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"removed", result.Removed,
	)

	return result, nil
}

func (s SyncService) SyncAlbum(albumID string) (models.SyncResult, error) {
	var (
		err       error
		album     immich.Album
		knownIDs  []string
		checksums map[string]string
		result    models.SyncResult
	)

	if album, err = s.remote.GetAlbum(s.shutdownCtx, albumID); err != nil {
		return result, err
	}

	if err = s.albumService.Upsert(album.ID, album.AlbumName, album.AssetCount); err != nil {
		return result, err
	}

	if knownIDs, err = s.assetService.GetAllKnownIDs(); err != nil {
		return result, err
	}

	if checksums, err = s.assetService.GetChecksums(); err != nil {
		return result, err
	}

	known := make(map[string]struct{}, len(knownIDs))

	for _, id := range knownIDs {
		known[id] = struct{}{}
	}

	remoteIDs := map[string]struct{}{}
	toSync := []syncItem{}

	for _, asset := range album.Assets {
		if !asset.IsImage() {
			continue
		}

		remoteIDs[asset.ID] = struct{}{}

		if _, ok := known[asset.ID]; !ok {
			toSync = append(toSync, syncItem{asset: asset})
			continue
		}

		if needsUpdate(asset, checksums) {
			toSync = append(toSync, syncItem{asset: asset, stale: true})
		}
	}

	slog.Info("album images to sync", "albumID", albumID, "name", album.AlbumName, "toSync", len(toSync), "assetCount", album.AssetCount)

	result = s.downloadAll(albumID, toSync)

	if s.deleteRemoved {
		if result.Removed, err = s.removeMissing(albumID, remoteIDs); err != nil {
			return result, err
		}
	}

	return result, nil
}

/*
needsUpdate reports whether a known asset changed remotely. An asset is
stale when both the stored and the remote checksums are known and they
differ.
*/
func needsUpdate(asset immich.Asset, checksums map[string]string) bool {
	stored, ok := checksums[asset.ID]

	if !ok || stored == "" || asset.Checksum == "" {
		return false
	}

	return stored != asset.Checksum
}

func (s SyncService) downloadAll(albumID string, items []syncItem) models.SyncResult {
	var (
		downloaded atomic.Int64
		skipped    atomic.Int64
		failed     atomic.Int64
	)

	pool := pond.NewPool(s.parallelDownloads)

	for _, item := range items {
		pool.Submit(func() {
			wasDownloaded, err := s.downloadAsset(albumID, item)

			if err != nil {
				slog.Error("download failed", "albumID", albumID, "assetID", item.asset.ID, "filename", item.asset.OriginalFileName, "error", err)
				failed.Add(1)
				return
			}

			if wasDownloaded {
				downloaded.Add(1)
			} else {
				skipped.Add(1)
			}
		})
	}

	_ = pool.Stop().Wait()

	return models.SyncResult{
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
}

/*
downloadAsset fetches one original. The bytes land in a uniquely named
".part" file that is renamed into place, so a file at the destination
path is always complete. An existing destination for a new asset is
adopted without a network call. Derivatives of a stale asset are only
removed once the new original is recorded.
*/
func (s SyncService) downloadAsset(albumID string, item syncItem) (bool, error) {
	var (
		err      error
		info     os.FileInfo
		size     int64
		partFile *os.File
		previous *models.Asset
	)

	asset := item.asset
	destPath := OriginalPath(s.originalRoot, albumID, asset.OriginalFileName)

	if !item.stale {
		if info, err = os.Stat(destPath); err == nil {
			slog.Debug("skipping existing file", "path", destPath)

			return false, s.assetService.Upsert(models.Downloaded{
				ID:           asset.ID,
				AlbumID:      albumID,
				Filename:     asset.OriginalFileName,
				Checksum:     asset.Checksum,
				OriginalPath: destPath,
				FileSize:     info.Size(),
			})
		}
	} else {
		slog.Info("asset changed remotely, downloading again", "assetID", asset.ID, "filename", asset.OriginalFileName)

		if previous, err = s.assetService.GetByID(asset.ID); err != nil {
			previous = nil
		}
	}

	slog.Info("downloading", "assetID", asset.ID, "filename", asset.OriginalFileName)

	if err = os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return false, fmt.Errorf("error creating directory for '%s': %w", destPath, err)
	}

	if partFile, err = os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".*.part"); err != nil {
		return false, fmt.Errorf("error creating temporary file for '%s': %w", destPath, err)
	}

	partPath := partFile.Name()
	_ = partFile.Close()

	if size, err = s.remote.DownloadAsset(s.shutdownCtx, asset.ID, partPath); err != nil {
		_ = os.Remove(partPath)
		return false, err
	}

	if err = os.Rename(partPath, destPath); err != nil {
		_ = os.Remove(partPath)
		return false, fmt.Errorf("error moving download into place at '%s': %w", destPath, err)
	}

	err = s.assetService.Upsert(models.Downloaded{
		ID:           asset.ID,
		AlbumID:      albumID,
		Filename:     asset.OriginalFileName,
		Checksum:     asset.Checksum,
		OriginalPath: destPath,
		FileSize:     size,
	})

	if err != nil {
		return false, err
	}

	// The upsert cleared the derivative columns, so the old files can go.
	if previous != nil {
		removeFiles(previous.AvifPath, previous.ThumbnailPath)
	}

	return true, nil
}

/*
removeMissing deletes every stored asset of the album that the remote
no longer lists. File removal is best effort; the record is what
matters.
*/
func (s SyncService) removeMissing(albumID string, remoteIDs map[string]struct{}) (int, error) {
	var (
		err     error
		stored  []*models.Asset
		removed int
	)

	if stored, err = s.assetService.GetByAlbum(albumID, GetByAlbumOptions{}); err != nil {
		return 0, err
	}

	for _, asset := range stored {
		if _, ok := remoteIDs[asset.ID]; ok {
			continue
		}

		slog.Debug("removing deleted image", "albumID", albumID, "assetID", asset.ID)
		removeFiles(asset.OriginalPath, asset.AvifPath, asset.ThumbnailPath)

		if err = s.assetService.DeleteByID(asset.ID); err != nil {
			return removed, err
		}

		removed++
	}

	return removed, nil
}

func removeFiles(paths ...*string) {
	for _, p := range paths {
		if p == nil || *p == "" {
			continue
		}

		if err := os.Remove(*p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Debug("could not remove file", "path", *p, "error", err)
		}
	}
}

// OriginalPath is where an album's original is stored on disk.
func OriginalPath(originalRoot, albumID, filename string) string {
	return filepath.Join(originalRoot, albumID, filepath.Base(filename))
}
