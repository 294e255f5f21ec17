package immich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	writeJSON := func(w http.ResponseWriter, value any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(value)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/server/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"major": 1, "minor": 132, "patch": 3})
	})

	mux.HandleFunc("GET /api/albums", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.URL.Query().Get("shared") == "true" {
			writeJSON(w, []Album{{ID: "A2", AlbumName: "Shared dup"}, {ID: "A3", AlbumName: "Shared"}})
			return
		}

		writeJSON(w, []Album{{ID: "A1", AlbumName: "Owned"}, {ID: "A2", AlbumName: "Owned two"}})
	})

	mux.HandleFunc("GET /api/albums/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "A1" {
			http.NotFound(w, r)
			return
		}

		writeJSON(w, Album{
			ID:         "A1",
			AlbumName:  "Owned",
			AssetCount: 2,
			Assets: []Asset{
				{ID: "I1", OriginalFileName: "one.jpg", Checksum: "c1", Type: AssetTypeImage},
				{ID: "V1", OriginalFileName: "clip.mp4", Checksum: "c2", Type: AssetTypeVideo},
			},
		})
	})

	mux.HandleFunc("GET /api/assets/{id}/original", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("original-bytes"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestClient_ListAlbums(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(ClientConfig{BaseURL: server.URL + "/", Auth: NewAPIKeyAuth("secret")})

	albums, err := client.ListAlbums(context.Background())
	require.NoError(t, err)

	ids := []string{}
	for _, album := range albums {
		ids = append(ids, album.ID)
	}

	assert.Equal(t, []string{"A1", "A2", "A3"}, ids)
	assert.Equal(t, "Owned two", albums[1].AlbumName, "first occurrence wins")
}

func TestClient_ListAlbums_BadKey(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(ClientConfig{BaseURL: server.URL, Auth: NewAPIKeyAuth("wrong")})

	_, err := client.ListAlbums(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_GetAlbum(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(ClientConfig{BaseURL: server.URL, Auth: NewAPIKeyAuth("secret")})

	album, err := client.GetAlbum(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, album.Assets, 2)
	assert.True(t, album.Assets[0].IsImage())
	assert.False(t, album.Assets[1].IsImage())

	_, err = client.GetAlbum(context.Background(), "missing")
	assert.Error(t, err)
}

func TestClient_Ping(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(ClientConfig{BaseURL: server.URL, Auth: NewAPIKeyAuth("secret")})

	version, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.132.3", version.String())
}

func TestClient_DownloadAsset(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(ClientConfig{BaseURL: server.URL, Auth: NewAPIKeyAuth("secret")})

	dest := filepath.Join(t.TempDir(), "nested", "A1", "one.jpg")

	written, err := client.DownloadAsset(context.Background(), "I1", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len("original-bytes")), written)

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "original-bytes", string(b))
}

func TestMergeAlbums(t *testing.T) {
	merged := mergeAlbums(
		[]Album{{ID: "x"}, {ID: "y"}},
		[]Album{{ID: "y"}, {ID: "z"}, {ID: "x"}},
	)

	require.Len(t, merged, 3)
	assert.Equal(t, "x", merged[0].ID)
	assert.Equal(t, "y", merged[1].ID)
	assert.Equal(t, "z", merged[2].ID)
}

func TestServerVersion_String(t *testing.T) {
	assert.Equal(t, "1.2.3", ServerVersion{Major: 1, Minor: 2, Patch: 3}.String())
	assert.Equal(t, "v1.99", ServerVersion{Version: "v1.99"}.String())
}
