package viewmodels

import "time"

type ImageMetadata struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	AlbumID     string     `json:"albumId"`
	FileSize    *int64     `json:"fileSize"`
	SyncedAt    *time.Time `json:"syncedAt"`
	ConvertedAt *time.Time `json:"convertedAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
