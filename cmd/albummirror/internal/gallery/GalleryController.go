package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/albummirror/cmd/albummirror/internal/viewmodels"
	"github.com/adampresley/albummirror/pkg/models"
	"github.com/adampresley/albummirror/pkg/services"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500

	cacheForever = "public, max-age=31536000, immutable"
)

type GalleryHandlers interface {
	Root(w http.ResponseWriter, r *http.Request)
	ListAlbums(w http.ResponseWriter, r *http.Request)
	GetAlbum(w http.ResponseWriter, r *http.Request)
	ServeImage(w http.ResponseWriter, r *http.Request)
	ServeThumbnail(w http.ResponseWriter, r *http.Request)
	GetImageMetadata(w http.ResponseWriter, r *http.Request)
}

type GalleryControllerConfig struct {
	AlbumService services.AlbumServicer
	AssetService services.AssetServicer
}

type GalleryController struct {
	albumService services.AlbumServicer
	assetService services.AssetServicer
}

func NewGalleryController(config GalleryControllerConfig) GalleryController {
	return GalleryController{
		albumService: config.AlbumService,
		assetService: config.AssetService,
	}
}

/*
Routes lists every gallery route. middlewares are applied to each of
them.
*/
func (c GalleryController) Routes(middlewares ...mux.MiddlewareFunc) []mux.Route {
	return []mux.Route{
		{Path: "GET /{$}", HandlerFunc: c.Root, Middlewares: middlewares},
		{Path: "GET /albums", HandlerFunc: c.ListAlbums, Middlewares: middlewares},
		{Path: "GET /albums/{id}", HandlerFunc: c.GetAlbum, Middlewares: middlewares},
		{Path: "GET /images/{id}", HandlerFunc: c.ServeImage, Middlewares: middlewares},
		{Path: "GET /images/{id}/thumbnail", HandlerFunc: c.ServeThumbnail, Middlewares: middlewares},
		{Path: "GET /images/{id}/metadata", HandlerFunc: c.GetImageMetadata, Middlewares: middlewares},
	}
}

/*
GET /
*/
func (c GalleryController) Root(w http.ResponseWriter, r *http.Request) {
	httphelpers.TextOK(w, "albummirror API")
}

/*
GET /albums
*/
func (c GalleryController) ListAlbums(w http.ResponseWriter, r *http.Request) {
	var (
		err    error
		albums []*models.Album
	)

	if albums, err = c.albumService.GetAll(); err != nil {
		slog.Error("error getting album list", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	result := viewmodels.AlbumList{
		Albums: make([]viewmodels.AlbumSummary, 0, len(albums)),
	}

	for _, album := range albums {
		result.Albums = append(result.Albums, viewmodels.AlbumSummary{
			ID:         album.ID,
			Name:       album.Name,
			ImageCount: album.AssetCount,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

/*
GET /albums/{id}?page=1&pageSize=100
*/
func (c GalleryController) GetAlbum(w http.ResponseWriter, r *http.Request) {
	var (
		err    error
		album  *models.Album
		total  int64
		assets []*models.Asset
	)

	albumID := httphelpers.GetFromRequest[string](r, "id")
	page, pageSize := pagination(r)

	if album, err = c.albumService.GetByID(albumID); err != nil {
		if errors.Is(err, models.ErrAlbumNotFound) {
			writeError(w, http.StatusNotFound, "Album not found")
			return
		}

		slog.Error("error getting album", "error", err, "albumID", albumID)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	if total, err = c.assetService.CountByAlbum(albumID, true); err != nil {
		slog.Error("error counting album images", "error", err, "albumID", albumID)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	assets, err = c.assetService.GetByAlbum(albumID, services.GetByAlbumOptions{
		ConvertedOnly: true,
		Limit:         pageSize,
		Offset:        (page - 1) * pageSize,
	})

	if err != nil {
		slog.Error("error getting album images", "error", err, "albumID", albumID)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	result := viewmodels.AlbumImages{
		AlbumID:   album.ID,
		AlbumName: album.Name,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Images:    make([]viewmodels.AlbumImage, 0, len(assets)),
	}

	for _, asset := range assets {
		result.Images = append(result.Images, viewmodels.AlbumImage{
			ID:           asset.ID,
			Filename:     asset.Filename,
			URL:          fmt.Sprintf("/images/%s", asset.ID),
			ThumbnailURL: fmt.Sprintf("/images/%s/thumbnail", asset.ID),
		})
	}

	writeJSON(w, http.StatusOK, result)
}

/*
GET /images/{id}
*/
func (c GalleryController) ServeImage(w http.ResponseWriter, r *http.Request) {
	c.serveDerivative(w, r, func(asset *models.Asset) *string {
		return asset.AvifPath
	})
}

/*
GET /images/{id}/thumbnail
*/
func (c GalleryController) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	c.serveDerivative(w, r, func(asset *models.Asset) *string {
		return asset.ThumbnailPath
	})
}

/*
GET /images/{id}/metadata
*/
func (c GalleryController) GetImageMetadata(w http.ResponseWriter, r *http.Request) {
	var (
		err   error
		asset *models.Asset
	)

	assetID := httphelpers.GetFromRequest[string](r, "id")

	if asset, err = c.assetService.GetByID(assetID); err != nil {
		c.handleAssetError(w, err, assetID)
		return
	}

	writeJSON(w, http.StatusOK, viewmodels.ImageMetadata{
		ID:          asset.ID,
		Filename:    asset.Filename,
		AlbumID:     asset.AlbumID,
		FileSize:    asset.FileSize,
		SyncedAt:    asset.SyncedAt,
		ConvertedAt: asset.ConvertedAt,
	})
}

func (c GalleryController) serveDerivative(w http.ResponseWriter, r *http.Request, pick func(asset *models.Asset) *string) {
	var (
		err   error
		asset *models.Asset
		file  *os.File
		info  os.FileInfo
	)

	assetID := httphelpers.GetFromRequest[string](r, "id")

	if asset, err = c.assetService.GetByID(assetID); err != nil {
		c.handleAssetError(w, err, assetID)
		return
	}

	path := models.StringValue(pick(asset))

	if path == "" {
		writeError(w, http.StatusNotFound, "AVIF not yet converted")
		return
	}

	if file, err = os.Open(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "AVIF file not found on disk")
			return
		}

		slog.Error("error opening AVIF file", "error", err, "path", path)
		writeError(w, http.StatusInternalServerError, "Failed to read image")
		return
	}

	defer file.Close()

	if info, err = file.Stat(); err != nil {
		slog.Error("error reading AVIF file info", "error", err, "path", path)
		writeError(w, http.StatusInternalServerError, "Failed to read image")
		return
	}

	w.Header().Set("Content-Type", "image/avif")
	w.Header().Set("Cache-Control", cacheForever)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.WriteHeader(http.StatusOK)

	if _, err = io.Copy(w, file); err != nil {
		slog.Error("error streaming AVIF file", "error", err, "path", path)
	}
}

func (c GalleryController) handleAssetError(w http.ResponseWriter, err error, assetID string) {
	if errors.Is(err, models.ErrAssetNotFound) {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}

	slog.Error("error getting image", "error", err, "assetID", assetID)
	writeError(w, http.StatusInternalServerError, "Database error")
}

func pagination(r *http.Request) (int, int) {
	page := httphelpers.GetFromRequest[int](r, "page")
	pageSize := httphelpers.GetFromRequest[int](r, "pageSize")

	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	return page, min(pageSize, MaxPageSize)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(value); err != nil {
		slog.Error("error writing JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, viewmodels.ErrorResponse{Error: message})
}
