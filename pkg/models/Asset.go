package models

import (
	"fmt"
	"time"
)

var (
	ErrAssetNotFound = fmt.Errorf("asset not found")
)

/*
Asset is the local mirror of a remote image asset along with its
conversion status. OriginalPath is only set once the original is on
disk. AvifPath and ThumbnailPath are always set together.
*/
type Asset struct {
	ID            string     `db:"id"`
	AlbumID       string     `db:"album_id"`
	Filename      string     `db:"filename"`
	Checksum      *string    `db:"checksum"`
	OriginalPath  *string    `db:"original_path"`
	AvifPath      *string    `db:"avif_path"`
	ThumbnailPath *string    `db:"thumbnail_path"`
	FileSize      *int64     `db:"file_size"`
	SyncedAt      *time.Time `db:"synced_at"`
	ConvertedAt   *time.Time `db:"converted_at"`
}

// IsConverted reports whether the asset has both derivatives recorded.
func (a Asset) IsConverted() bool {
	return a.ConvertedAt != nil && a.AvifPath != nil && a.ThumbnailPath != nil
}

// IsServable reports whether a primary derivative is available.
func (a Asset) IsServable() bool {
	return a.AvifPath != nil && *a.AvifPath != ""
}

/*
Downloaded describes a freshly written original. It is the input
for AssetService.Upsert.
*/
type Downloaded struct {
	ID           string
	AlbumID      string
	Filename     string
	Checksum     string
	OriginalPath string
	FileSize     int64
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
