package immich

import (
	"fmt"
)

type AssetType string

const (
	AssetTypeImage AssetType = "IMAGE"
	AssetTypeVideo AssetType = "VIDEO"
	AssetTypeAudio AssetType = "AUDIO"
	AssetTypeOther AssetType = "OTHER"
)

type Album struct {
	ID         string  `json:"id"`
	AlbumName  string  `json:"albumName"`
	AssetCount int64   `json:"assetCount"`
	Assets     []Asset `json:"assets"`
}

type Asset struct {
	ID               string    `json:"id"`
	OriginalFileName string    `json:"originalFileName"`
	Checksum         string    `json:"checksum"`
	Type             AssetType `json:"type"`
	OriginalMimeType string    `json:"originalMimeType,omitempty"`
	FileSize         *int64    `json:"fileSize,omitempty"`
}

func (a Asset) IsImage() bool {
	return a.Type == AssetTypeImage
}

/*
ServerVersion accepts both the legacy {"version": "x"} payload and the
current {"major", "minor", "patch"} payload.
*/
type ServerVersion struct {
	Version string `json:"version"`
	Major   int    `json:"major"`
	Minor   int    `json:"minor"`
	Patch   int    `json:"patch"`
}

func (v ServerVersion) String() string {
	if v.Version != "" {
		return v.Version
	}

	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
