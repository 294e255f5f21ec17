package services

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/adampresley/albummirror/pkg/database"
	"github.com/rfberaldo/sqlz"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sqlz.DB {
	t.Helper()

	db, err := database.Connect(database.DSN(filepath.Join(t.TempDir(), "test.sqlite")))
	require.NoError(t, err)

	return db
}

func newTestStores(t *testing.T) (AlbumService, AssetService) {
	t.Helper()

	db := newTestDB(t)
	return NewAlbumService(AlbumServiceConfig{DB: db}), NewAssetService(AssetServiceConfig{DB: db})
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, img))
}

func strPtr(s string) *string {
	return &s
}
