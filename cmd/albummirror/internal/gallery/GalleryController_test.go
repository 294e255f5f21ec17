package gallery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/adampresley/albummirror/cmd/albummirror/internal/viewmodels"
	"github.com/adampresley/albummirror/pkg/database"
	"github.com/adampresley/albummirror/pkg/models"
	"github.com/adampresley/albummirror/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type galleryFixture struct {
	handler  http.Handler
	albums   services.AlbumService
	assets   services.AssetService
	avifRoot string
}

func newGalleryFixture(t *testing.T) galleryFixture {
	t.Helper()

	base := t.TempDir()
	db, err := database.Connect(database.DSN(filepath.Join(base, "db.sqlite")))
	require.NoError(t, err)

	f := galleryFixture{
		albums:   services.NewAlbumService(services.AlbumServiceConfig{DB: db}),
		assets:   services.NewAssetService(services.AssetServiceConfig{DB: db}),
		avifRoot: filepath.Join(base, "avif"),
	}

	controller := NewGalleryController(GalleryControllerConfig{
		AlbumService: f.albums,
		AssetService: f.assets,
	})

	m := http.NewServeMux()
	for _, route := range controller.Routes() {
		m.HandleFunc(route.Path, route.HandlerFunc)
	}

	f.handler = m
	return f
}

func (f galleryFixture) addAsset(t *testing.T, albumID, id, filename string, converted bool) {
	t.Helper()

	require.NoError(t, f.assets.Upsert(models.Downloaded{
		ID:           id,
		AlbumID:      albumID,
		Filename:     filename,
		Checksum:     "sum-" + id,
		OriginalPath: filepath.Join("/originals", albumID, filename),
		FileSize:     1234,
	}))

	if !converted {
		return
	}

	avifPath := services.AvifPath(f.avifRoot, albumID, id)
	thumbPath := services.ThumbnailPath(f.avifRoot, albumID, id)

	require.NoError(t, os.MkdirAll(filepath.Dir(avifPath), 0o755))
	require.NoError(t, os.WriteFile(avifPath, []byte("primary-"+id), 0o644))
	require.NoError(t, os.WriteFile(thumbPath, []byte("thumb-"+id), 0o644))

	require.NoError(t, f.assets.MarkConverted(id, avifPath, thumbPath))
}

func (f galleryFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var result T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestRoot(t *testing.T) {
	f := newGalleryFixture(t)

	w := f.get(t, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "albummirror")
}

func TestListAlbums(t *testing.T) {
	f := newGalleryFixture(t)
	require.NoError(t, f.albums.Upsert("A2", "Zoo", 3))
	require.NoError(t, f.albums.Upsert("A1", "Beach", 2))

	w := f.get(t, "/albums")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	result := decode[viewmodels.AlbumList](t, w)
	require.Len(t, result.Albums, 2)
	assert.Equal(t, viewmodels.AlbumSummary{ID: "A1", Name: "Beach", ImageCount: 2}, result.Albums[0])
	assert.Equal(t, "Zoo", result.Albums[1].Name)
}

func TestListAlbums_Empty(t *testing.T) {
	f := newGalleryFixture(t)

	w := f.get(t, "/albums")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"albums":[]}`, w.Body.String())
}

func TestGetAlbum_ListsConvertedImagesOnly(t *testing.T) {
	f := newGalleryFixture(t)
	require.NoError(t, f.albums.Upsert("A1", "Beach", 2))
	f.addAsset(t, "A1", "I1", "one.jpg", true)
	f.addAsset(t, "A1", "I2", "two.jpg", false)

	w := f.get(t, "/albums/A1")
	require.Equal(t, http.StatusOK, w.Code)

	result := decode[viewmodels.AlbumImages](t, w)
	assert.Equal(t, "A1", result.AlbumID)
	assert.Equal(t, "Beach", result.AlbumName)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Images, 1)
	assert.Equal(t, viewmodels.AlbumImage{
		ID:           "I1",
		Filename:     "one.jpg",
		URL:          "/images/I1",
		ThumbnailURL: "/images/I1/thumbnail",
	}, result.Images[0])
}

func TestGetAlbum_Pagination(t *testing.T) {
	f := newGalleryFixture(t)
	require.NoError(t, f.albums.Upsert("A1", "Beach", 5))

	for i := 1; i <= 5; i++ {
		f.addAsset(t, "A1", fmt.Sprintf("I%d", i), fmt.Sprintf("img%d.jpg", i), true)
	}

	w := f.get(t, "/albums/A1?page=2&pageSize=2")
	require.Equal(t, http.StatusOK, w.Code)

	result := decode[viewmodels.AlbumImages](t, w)
	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, 2, result.Page)
	assert.Equal(t, 2, result.PageSize)
	require.Len(t, result.Images, 2)
	assert.Equal(t, "img3.jpg", result.Images[0].Filename)
	assert.Equal(t, "img4.jpg", result.Images[1].Filename)
}

func TestGetAlbum_UnknownAlbum(t *testing.T) {
	f := newGalleryFixture(t)

	w := f.get(t, "/albums/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Album not found"}`, w.Body.String())
}

func TestServeImage(t *testing.T) {
	f := newGalleryFixture(t)
	require.NoError(t, f.albums.Upsert("A1", "Beach", 1))
	f.addAsset(t, "A1", "I1", "one.jpg", true)

	w := f.get(t, "/images/I1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/avif", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000, immutable", w.Header().Get("Cache-Control"))
	assert.Equal(t, "primary-I1", w.Body.String())

	w = f.get(t, "/images/I1/thumbnail")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/avif", w.Header().Get("Content-Type"))
	assert.Equal(t, "thumb-I1", w.Body.String())
}

func TestServeImage_NotFound(t *testing.T) {
	f := newGalleryFixture(t)
	require.NoError(t, f.albums.Upsert("A1", "Beach", 2))
	f.addAsset(t, "A1", "I1", "one.jpg", false)
	f.addAsset(t, "A1", "I2", "two.jpg", true)
	require.NoError(t, os.Remove(services.AvifPath(f.avifRoot, "A1", "I2")))

	tests := []struct {
		name    string
		path    string
		message string
	}{
		{name: "unknown", path: "/images/nope", message: "Image not found"},
		{name: "not converted", path: "/images/I1", message: "AVIF not yet converted"},
		{name: "missing on disk", path: "/images/I2", message: "AVIF file not found on disk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.get(t, tt.path)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, tt.message, decode[viewmodels.ErrorResponse](t, w).Error)
		})
	}
}

func TestGetImageMetadata(t *testing.T) {
	f := newGalleryFixture(t)
	require.NoError(t, f.albums.Upsert("A1", "Beach", 2))
	f.addAsset(t, "A1", "I1", "one.jpg", true)
	f.addAsset(t, "A1", "I2", "two.jpg", false)

	w := f.get(t, "/images/I1/metadata")
	require.Equal(t, http.StatusOK, w.Code)

	result := decode[viewmodels.ImageMetadata](t, w)
	assert.Equal(t, "I1", result.ID)
	assert.Equal(t, "one.jpg", result.Filename)
	assert.Equal(t, "A1", result.AlbumID)
	require.NotNil(t, result.FileSize)
	assert.Equal(t, int64(1234), *result.FileSize)
	assert.NotNil(t, result.SyncedAt)
	assert.NotNil(t, result.ConvertedAt)

	w = f.get(t, "/images/I2/metadata")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[viewmodels.ImageMetadata](t, w).ConvertedAt)

	w = f.get(t, "/images/nope/metadata")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query    string
		page     int
		pageSize int
	}{
		{query: "", page: 1, pageSize: DefaultPageSize},
		{query: "?page=3&pageSize=10", page: 3, pageSize: 10},
		{query: "?page=-1&pageSize=0", page: 1, pageSize: DefaultPageSize},
		{query: "?pageSize=100000", page: 1, pageSize: MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			page, pageSize := pagination(httptest.NewRequest(http.MethodGet, "/albums/A1"+tt.query, nil))
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.pageSize, pageSize)
		})
	}
}
