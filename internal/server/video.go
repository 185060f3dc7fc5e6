package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Dezexus/SubVision/internal/video"
)

// handleFrame extracts one frame of a cached video as JPEG.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		apiError(w, http.StatusBadRequest, "frame index must be a non-negative integer")
		return
	}

	videoPath, err := s.ensureCached(r, r.PathValue("filename"))
	if err != nil {
		apiError(w, http.StatusNotFound, "video not found")
		return
	}

	img, err := video.ExtractFrame(videoPath, index)
	if err != nil {
		apiError(w, http.StatusNotFound, "frame not found")
		return
	}
	writeJPEG(w, img)
}

// handleDownload redirects to a presigned URL when object storage is
// active, otherwise streams the file from the local cache.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	safeName := filepath.Base(r.PathValue("filename"))

	url, err := s.store.PresignURL(r.Context(), safeName)
	if err == nil && url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	path := s.cachePath(safeName)
	if _, err := os.Stat(path); err != nil {
		apiError(w, http.StatusNotFound, "file not found in storage")
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(safeName))
	http.ServeFile(w, r, path)
}

func (s *Server) handleAllowedExtensions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AllowedExtensions())
}
