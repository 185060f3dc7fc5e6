// Package server is the HTTP boundary: chunked upload, processing
// control, render control, and file delivery. Handlers stay thin; all
// processing logic lives in the worker, blur, and video packages.
package server

import (
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Dezexus/SubVision/internal/config"
	"github.com/Dezexus/SubVision/internal/ocr"
	"github.com/Dezexus/SubVision/internal/storage"
	"github.com/Dezexus/SubVision/internal/upload"
	"github.com/Dezexus/SubVision/internal/worker"
	"github.com/Dezexus/SubVision/internal/ws"
)

// clientIDRe mirrors the upload-id rule: session ids are opaque tokens
// chosen by the browser and must never reach the filesystem raw.
var clientIDRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Server wires the HTTP routes to the processing engine.
type Server struct {
	cfg        *config.Settings
	hub        *ws.Hub
	uploads    *upload.Manager
	store      *storage.Manager
	engines    *ocr.EngineCache
	ocrJobs    *worker.Manager
	renderJobs *worker.Manager
	wsHandler  *ws.Handler
}

func New(cfg *config.Settings, hub *ws.Hub, uploads *upload.Manager, store *storage.Manager, engines *ocr.EngineCache) *Server {
	return &Server{
		cfg:        cfg,
		hub:        hub,
		uploads:    uploads,
		store:      store,
		engines:    engines,
		ocrJobs:    worker.NewManager(),
		renderJobs: worker.NewManager(),
		wsHandler:  ws.NewHandler(hub, cfg.AllowedOrigins),
	}
}

// Routes builds the full route table with CORS applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /upload/status/{upload_id}", s.handleUploadStatus)

	mux.HandleFunc("POST /process/start", s.handleProcessStart)
	mux.HandleFunc("POST /process/stop/{client_id}", s.handleProcessStop)
	mux.HandleFunc("POST /process/render_blur", s.handleRenderBlur)
	mux.HandleFunc("POST /process/preview_blur", s.handlePreviewBlur)
	mux.HandleFunc("POST /process/import_srt", s.handleImportSRT)
	mux.HandleFunc("GET /process/presets", s.handlePresets)
	mux.HandleFunc("GET /process/blur-defaults", s.handleBlurDefaults)

	mux.HandleFunc("GET /video/frame/{filename}/{index}", s.handleFrame)
	mux.HandleFunc("GET /video/download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /video/allowed-extensions", s.handleAllowedExtensions)

	mux.Handle("/ws/", s.wsHandler)

	return s.cors(mux)
}

// cors answers preflights and stamps the allow headers for known
// origins. An empty allow list opens everything, for development.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// cachePath maps a storage key to its local cache location, stripping
// any path components a client may have smuggled in.
func (s *Server) cachePath(filename string) string {
	return filepath.Join(s.cfg.CacheDir, filepath.Base(filename))
}

// ensureCached makes sure the named video is present in the local
// cache, fetching it from object storage when needed.
func (s *Server) ensureCached(r *http.Request, filename string) (string, error) {
	path := s.cachePath(filename)
	if err := s.store.Download(r.Context(), filepath.Base(filename), path); err != nil {
		return "", err
	}
	return path, nil
}
