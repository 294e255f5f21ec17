package models

import (
	"fmt"
	"time"
)

var (
	ErrAlbumNotFound = fmt.Errorf("album not found")
)

type Album struct {
	ID         string     `db:"id"`
	Name       string     `db:"name"`
	AssetCount int64      `db:"asset_count"`
	LastSync   *time.Time `db:"last_sync"`
}
