package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adampresley/albummirror/pkg/models"
	"github.com/rfberaldo/sqlz"
)

type AssetServicer interface {
	ClearAllConversions() (int64, error)
	CountByAlbum(albumID string, convertedOnly bool) (int64, error)
	DeleteByID(assetID string) error
	GetAllKnownIDs() ([]string, error)
	GetByAlbum(albumID string, options GetByAlbumOptions) ([]*models.Asset, error)
	GetByID(assetID string) (*models.Asset, error)
	GetChecksums() (map[string]string, error)
	GetConverted() ([]*models.Asset, error)
	GetUnconverted() ([]*models.Asset, error)
	MarkConverted(assetID, avifPath, thumbnailPath string) error
	Upsert(downloaded models.Downloaded) error
}

/*
GetByAlbumOptions narrows an album listing. A Limit of zero returns
every row.
*/
type GetByAlbumOptions struct {
	ConvertedOnly bool
	Limit         int
	Offset        int
}

type AssetServiceConfig struct {
	DB *sqlz.DB
}

type AssetService struct {
	db *sqlz.DB
}

type idRow struct {
	ID string `db:"id"`
}

type checksumRow struct {
	ID       string  `db:"id"`
	Checksum *string `db:"checksum"`
}

type countRow struct {
	Count int64 `db:"count"`
}

const assetColumns = `
   a.id
   , a.album_id
   , a.filename
   , a.checksum
   , a.original_path
   , a.avif_path
   , a.thumbnail_path
   , a.file_size
   , a.synced_at
   , a.converted_at`

func NewAssetService(config AssetServiceConfig) AssetService {
	return AssetService{
		db: config.DB,
	}
}

/*
Upsert records a downloaded original. Derivative columns are reset so a
re-downloaded original is always converted again.
*/
func (s AssetService) Upsert(downloaded models.Downloaded) error {
	var (
		err      error
		checksum any
	)

	if downloaded.Checksum != "" {
		checksum = downloaded.Checksum
	}

	sql := `
INSERT INTO assets (
   id
   , album_id
   , filename
   , checksum
   , original_path
   , file_size
   , synced_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
   album_id = excluded.album_id
   , filename = excluded.filename
   , checksum = excluded.checksum
   , original_path = excluded.original_path
   , file_size = excluded.file_size
   , synced_at = excluded.synced_at
   , avif_path = NULL
   , thumbnail_path = NULL
   , converted_at = NULL
   `

	params := []any{
		downloaded.ID,
		downloaded.AlbumID,
		downloaded.Filename,
		checksum,
		downloaded.OriginalPath,
		downloaded.FileSize,
		time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err = s.db.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error upserting asset %s: %w", downloaded.ID, err)
	}

	return nil
}

func (s AssetService) GetByID(assetID string) (*models.Asset, error) {
	var (
		err error
	)

	result := &models.Asset{}

	sql := `
SELECT` + assetColumns + `
FROM assets AS a
WHERE 1=1
   AND a.id=?
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = s.db.QueryRow(ctx, result, sql, assetID); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrAssetNotFound, assetID)
		}

		return nil, fmt.Errorf("error querying for asset %s: %w", assetID, err)
	}

	return result, nil
}

func (s AssetService) GetByAlbum(albumID string, options GetByAlbumOptions) ([]*models.Asset, error) {
	var (
		err error
	)

	result := []*models.Asset{}

	sql := `
SELECT` + assetColumns + `
FROM assets AS a
WHERE 1=1
   AND a.album_id=?
   `

	params := []any{albumID}

	if options.ConvertedOnly {
		sql += "AND a.avif_path IS NOT NULL\n"
	}

	sql += "ORDER BY a.filename\n"

	if options.Limit > 0 {
		sql += "LIMIT ? OFFSET ?\n"
		params = append(params, options.Limit, max(options.Offset, 0))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = s.db.Query(ctx, &result, sql, params...); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for assets in album %s: %w", albumID, err)
	}

	return result, nil
}

func (s AssetService) CountByAlbum(albumID string, convertedOnly bool) (int64, error) {
	var (
		err error
	)

	result := countRow{}

	sql := `
SELECT
   COUNT(*) AS count
FROM assets AS a
WHERE 1=1
   AND a.album_id=?
   `

	if convertedOnly {
		sql += "AND a.avif_path IS NOT NULL\n"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = s.db.QueryRow(ctx, &result, sql, albumID); err != nil {
		return 0, fmt.Errorf("error counting assets in album %s: %w", albumID, err)
	}

	return result.Count, nil
}

/*
GetAllKnownIDs returns the id of every asset in the store, across all
albums.
*/
func (s AssetService) GetAllKnownIDs() ([]string, error) {
	var (
		err  error
		rows []idRow
	)

	sql := `
SELECT
   a.id
FROM assets AS a
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	if err = s.db.Query(ctx, &rows, sql); err != nil && !sqlz.IsNotFound(err) {
		return nil, fmt.Errorf("error querying for known asset IDs: %w", err)
	}

	result := make([]string, 0, len(rows))

	for _, row := range rows {
		result = append(result, row.ID)
	}

	return result, nil
}

// GetChecksums maps every stored asset id to its checksum ("" when unknown).
func (s AssetService) GetChecksums() (map[string]string, error) {
	var (
		err  error
		rows []checksumRow
	)

	sql := `
SELECT
   a.id
   , a.checksum
FROM assets AS a
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	if err = s.db.Query(ctx, &rows, sql); err != nil && !sqlz.IsNotFound(err) {
		return nil, fmt.Errorf("error querying for asset checksums: %w", err)
	}

	result := make(map[string]string, len(rows))

	for _, row := range rows {
		result[row.ID] = models.StringValue(row.Checksum)
	}

	return result, nil
}

/*
GetUnconverted returns assets with an original on disk that were never
converted, or that were converted before thumbnails existed.
*/
func (s AssetService) GetUnconverted() ([]*models.Asset, error) {
	var (
		err error
	)

	result := []*models.Asset{}

	sql := `
SELECT` + assetColumns + `
FROM assets AS a
WHERE 1=1
   AND a.original_path IS NOT NULL
   AND (a.converted_at IS NULL OR a.thumbnail_path IS NULL)
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	if err = s.db.Query(ctx, &result, sql); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for unconverted assets: %w", err)
	}

	return result, nil
}

func (s AssetService) GetConverted() ([]*models.Asset, error) {
	var (
		err error
	)

	result := []*models.Asset{}

	sql := `
SELECT` + assetColumns + `
FROM assets AS a
WHERE 1=1
   AND a.avif_path IS NOT NULL
   AND a.thumbnail_path IS NOT NULL
ORDER BY a.album_id, a.filename
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	if err = s.db.Query(ctx, &result, sql); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for converted assets: %w", err)
	}

	return result, nil
}

func (s AssetService) MarkConverted(assetID, avifPath, thumbnailPath string) error {
	var (
		err error
	)

	sql := `
UPDATE assets SET
   avif_path = ?
   , thumbnail_path = ?
   , converted_at = ?
WHERE 1=1
   AND id = ?
   `

	params := []any{
		avifPath,
		thumbnailPath,
		time.Now().UTC(),
		assetID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err = s.db.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error marking asset %s converted: %w", assetID, err)
	}

	return nil
}

func (s AssetService) DeleteByID(assetID string) error {
	var (
		err error
	)

	sql := `
DELETE FROM assets
WHERE 1=1
   AND id = ?
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err = s.db.Exec(ctx, sql, assetID); err != nil {
		return fmt.Errorf("error deleting asset %s: %w", assetID, err)
	}

	return nil
}

/*
ClearAllConversions resets the derivative columns of every asset and
returns the number of rows touched.
*/
func (s AssetService) ClearAllConversions() (int64, error) {
	sql := `
UPDATE assets SET
   avif_path = NULL
   , thumbnail_path = NULL
   , converted_at = NULL
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	result, err := s.db.Exec(ctx, sql)

	if err != nil {
		return 0, fmt.Errorf("error clearing conversions: %w", err)
	}

	affected, err := result.RowsAffected()

	if err != nil {
		return 0, fmt.Errorf("error reading cleared conversion count: %w", err)
	}

	return affected, nil
}
