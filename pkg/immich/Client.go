package immich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultTimeout = time.Minute * 5
)

type ClientConfig struct {
	BaseURL    string
	Auth       AuthProvider
	HttpClient *http.Client
}

type Client struct {
	baseURL    string
	auth       AuthProvider
	httpClient *http.Client
}

/*
NewClient creates an Immich API client. When no http client is
supplied, one with a five minute overall timeout is used.
*/
func NewClient(config ClientConfig) *Client {
	httpClient := config.HttpClient

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		auth:       config.Auth,
		httpClient: httpClient,
	}
}

func (c *Client) Ping(ctx context.Context) (ServerVersion, error) {
	var (
		err    error
		result ServerVersion
	)

	if err = c.getJSON(ctx, "/api/server/version", &result); err != nil {
		return result, fmt.Errorf("error pinging Immich server: %w", err)
	}

	slog.Info("connected to Immich server", "version", result.String())
	return result, nil
}

/*
ListAlbums returns owned albums followed by albums shared with the
caller. An album present in both listings is returned once, at the
position it was first seen.
*/
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	var (
		err    error
		owned  []Album
		shared []Album
	)

	if err = c.getJSON(ctx, "/api/albums", &owned); err != nil {
		return nil, fmt.Errorf("error fetching owned albums: %w", err)
	}

	slog.Debug("fetched owned albums", "count", len(owned))

	if err = c.getJSON(ctx, "/api/albums?shared=true", &shared); err != nil {
		return nil, fmt.Errorf("error fetching shared albums: %w", err)
	}

	slog.Debug("fetched shared albums", "count", len(shared))

	return mergeAlbums(owned, shared), nil
}

func mergeAlbums(lists ...[]Album) []Album {
	seen := map[string]struct{}{}
	result := []Album{}

	for _, list := range lists {
		for _, album := range list {
			if _, ok := seen[album.ID]; ok {
				continue
			}

			seen[album.ID] = struct{}{}
			result = append(result, album)
		}
	}

	return result
}

func (c *Client) GetAlbum(ctx context.Context, albumID string) (Album, error) {
	var (
		err    error
		result Album
	)

	if err = c.getJSON(ctx, "/api/albums/"+url.PathEscape(albumID), &result); err != nil {
		return result, fmt.Errorf("error fetching album %s: %w", albumID, err)
	}

	slog.Debug("fetched album", "albumID", albumID, "name", result.AlbumName, "assetCount", result.AssetCount)
	return result, nil
}

func (c *Client) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	var (
		err    error
		result Asset
	)

	if err = c.getJSON(ctx, "/api/assets/"+url.PathEscape(assetID), &result); err != nil {
		return result, fmt.Errorf("error fetching asset %s: %w", assetID, err)
	}

	return result, nil
}

/*
DownloadAsset streams the original bytes of an asset into destPath,
creating parent directories as needed. It returns the number of bytes
written. Callers are expected to check for an existing file first.
*/
func (c *Client) DownloadAsset(ctx context.Context, assetID, destPath string) (int64, error) {
	var (
		err      error
		response *http.Response
		file     *os.File
		written  int64
	)

	if response, err = c.get(ctx, "/api/assets/"+url.PathEscape(assetID)+"/original"); err != nil {
		return 0, fmt.Errorf("error downloading asset %s: %w", assetID, err)
	}

	defer response.Body.Close()

	if err = os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("error creating directory for asset %s: %w", assetID, err)
	}

	if file, err = os.Create(destPath); err != nil {
		return 0, fmt.Errorf("error creating file for asset %s: %w", assetID, err)
	}

	if written, err = io.Copy(file, response.Body); err != nil {
		_ = file.Close()
		return written, fmt.Errorf("error writing asset %s to '%s': %w", assetID, destPath, err)
	}

	if err = file.Sync(); err != nil {
		_ = file.Close()
		return written, fmt.Errorf("error flushing asset %s to '%s': %w", assetID, destPath, err)
	}

	if err = file.Close(); err != nil {
		return written, fmt.Errorf("error closing asset %s file: %w", assetID, err)
	}

	slog.Debug("downloaded asset", "assetID", assetID, "path", destPath, "bytes", written)
	return written, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	response, err := c.get(ctx, path)

	if err != nil {
		return err
	}

	defer response.Body.Close()

	if err = json.NewDecoder(response.Body).Decode(dest); err != nil {
		return fmt.Errorf("error decoding response from '%s': %w", path, err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	var (
		err      error
		request  *http.Request
		response *http.Response
	)

	headerName, headerValue, err := c.auth.AuthHeader(ctx)

	if err != nil {
		return nil, fmt.Errorf("error building auth header: %w", err)
	}

	if request, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil); err != nil {
		return nil, fmt.Errorf("error creating request for '%s': %w", path, err)
	}

	request.Header.Set(headerName, headerValue)

	if response, err = c.httpClient.Do(request); err != nil {
		return nil, fmt.Errorf("error requesting '%s': %w", path, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		_ = response.Body.Close()
		return nil, fmt.Errorf("error requesting '%s', status: %s", path, response.Status)
	}

	return response, nil
}
