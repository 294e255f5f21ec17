package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adampresley/albummirror/pkg/models"
	"github.com/rfberaldo/sqlz"
)

type AlbumServicer interface {
	GetAll() ([]*models.Album, error)
	GetByID(albumID string) (*models.Album, error)
	Upsert(albumID, name string, assetCount int64) error
}

type AlbumServiceConfig struct {
	DB *sqlz.DB
}

type AlbumService struct {
	db *sqlz.DB
}

func NewAlbumService(config AlbumServiceConfig) AlbumService {
	return AlbumService{
		db: config.DB,
	}
}

func (s AlbumService) GetAll() ([]*models.Album, error) {
	var (
		err error
	)

	result := []*models.Album{}

	sql := `
SELECT
   a.id
   , a.name
   , a.asset_count
   , a.last_sync
FROM albums AS a
ORDER BY a.name
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = s.db.Query(ctx, &result, sql); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for all albums: %w", err)
	}

	return result, nil
}

func (s AlbumService) GetByID(albumID string) (*models.Album, error) {
	var (
		err error
	)

	result := &models.Album{}

	sql := `
SELECT
   a.id
   , a.name
   , a.asset_count
   , a.last_sync
FROM albums AS a
WHERE 1=1
   AND a.id=?
   `

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = s.db.QueryRow(ctx, result, sql, albumID); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrAlbumNotFound, albumID)
		}

		return nil, fmt.Errorf("error querying for album %s: %w", albumID, err)
	}

	return result, nil
}

/*
Upsert creates the album or refreshes its name and asset count. The
last sync time is always moved forward.
*/
func (s AlbumService) Upsert(albumID, name string, assetCount int64) error {
	var (
		err error
	)

	sql := `
INSERT INTO albums (
   id
   , name
   , asset_count
   , last_sync
) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
   name = excluded.name
   , asset_count = excluded.asset_count
   , last_sync = excluded.last_sync
   `

	params := []any{
		albumID,
		name,
		assetCount,
		time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err = s.db.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error upserting album %s: %w", albumID, err)
	}

	return nil
}
