package viewmodels

type AlbumSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ImageCount int64  `json:"imageCount"`
}

type AlbumList struct {
	Albums []AlbumSummary `json:"albums"`
}

type AlbumImage struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type AlbumImages struct {
	AlbumID   string       `json:"albumId"`
	AlbumName string       `json:"albumName"`
	Total     int64        `json:"total"`
	Page      int          `json:"page"`
	PageSize  int          `json:"pageSize"`
	Images    []AlbumImage `json:"images"`
}
