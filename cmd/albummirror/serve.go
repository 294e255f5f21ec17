package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/albummirror/cmd/albummirror/internal/gallery"
)

/*
serve runs the HTTP server until the process is signalled. background,
when set, is started alongside the server and told to stop on
shutdown.
*/
func serve(a *app, background func(stop <-chan struct{})) {
	slog.Debug("setting up routes...")

	galleryController := gallery.NewGalleryController(gallery.GalleryControllerConfig{
		AlbumService: a.albumService,
		AssetService: a.assetService,
	})

	middlewares := []mux.MiddlewareFunc{
		newRequestLogMiddleware(),
		newCORSMiddleware(),
	}

	routes := []mux.Route{
		{Path: "GET /heartbeat", HandlerFunc: heartbeat},
		{Path: "OPTIONS /", HandlerFunc: preflight, Middlewares: middlewares},
	}

	routes = append(routes, galleryController.Routes(middlewares...)...)

	routerConfig := mux.RouterConfig{
		Address:          a.config.Host,
		Debug:            Version == "development",
		HttpWriteTimeout: 60,
	}

	m := mux.SetupRouter(routerConfig, routes)
	httpServer, quit := mux.SetupServer(routerConfig, m)

	stop := make(chan struct{})

	if background != nil {
		background(stop)
	}

	slog.Info("server started", "host", a.config.Host)

	<-quit

	close(stop)
	mux.Shutdown(httpServer)
	slog.Info("server stopped")
}

func heartbeat(w http.ResponseWriter, r *http.Request) {
	httphelpers.TextOK(w, "OK")
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

/*
setupPeriodicSync repeats the sync pipeline every SYNC_INTERVAL_MINUTES
while the server runs. A tick is skipped when the previous run has not
finished.
*/
func setupPeriodicSync(a *app, stop <-chan struct{}) {
	if a.config.SyncIntervalMinutes <= 0 {
		return
	}

	interval := time.Duration(a.config.SyncIntervalMinutes) * time.Minute
	slog.Info("background sync enabled", "interval", interval.String())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		running := make(chan struct{}, 1)

		runner := func() {
			defer func() {
				<-running
			}()

			if err := runBackground(a); err != nil {
				slog.Error("background sync failed", "error", err)
				return
			}

			slog.Info("background sync finished.")
		}

		for {
			select {
			case <-stop:
				return

			case <-ticker.C:
				select {
				case running <- struct{}{}:
					go runner()

				default:
					slog.Info("background sync already running. skipping...")
				}
			}
		}
	}()
}

func runBackground(a *app) error {
	if _, err := a.syncService.SyncAll(); err != nil {
		return err
	}

	if _, err := a.conversionService.ConvertAll(); err != nil {
		return err
	}

	if a.publishService != nil {
		if _, err := a.publishService.PublishAll(); err != nil {
			return err
		}
	}

	return nil
}
