package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/adampresley/albummirror/cmd/albummirror/internal/configuration"
	"github.com/adampresley/albummirror/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	names := []string{}
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"sync", "convert", "reindex", "publish", "serve", "run", "ping", "auth"} {
		assert.Contains(t, names, want)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)

	buf.Reset()
	newLogger(&buf, "debug", "text").Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestRenderSyncSummary(t *testing.T) {
	out := renderSyncSummary(models.SyncResult{Downloaded: 3, Skipped: 2, Failed: 1})

	assert.Contains(t, out, "Downloaded")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "Removed")
}

func TestRenderConversionSummary(t *testing.T) {
	out := renderConversionSummary(models.ConversionResult{Converted: 7})
	assert.Contains(t, out, "Converted")
	assert.Contains(t, out, "7")
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	handler := newCORSMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/albums", nil))
	assert.True(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	called = false
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/albums", nil))
	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestRequestLogMiddleware_KeepsStatus(t *testing.T) {
	handler := newRequestLogMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "albummirror.lock")

	lock, err := acquireLock(path)
	require.NoError(t, err)

	_, err = acquireLock(path)
	assert.Error(t, err, "second holder is refused")

	releaseLock(lock)

	again, err := acquireLock(path)
	require.NoError(t, err)
	releaseLock(again)
}

func TestNewApp_CloseReleasesDatabase(t *testing.T) {
	config := configuration.Defaults()
	config.ImmichURL = "http://immich.local"
	config.ImmichApiKey = "secret"
	config.StoragePath = filepath.Join(t.TempDir(), "data")

	a, err := newApp(context.Background(), config)
	require.NoError(t, err)
	assert.DirExists(t, config.OriginalPath())
	assert.DirExists(t, config.AvifPath())
	assert.Nil(t, a.publishService, "no bucket configured")

	a.close()

	_, err = a.db.Exec(context.Background(), "SELECT 1")
	assert.Error(t, err, "database is closed")
}
