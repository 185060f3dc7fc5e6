package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Dezexus/SubVision/internal/upload"
	"github.com/Dezexus/SubVision/internal/video"
	"github.com/Dezexus/SubVision/internal/ws"
)

const maxChunkMemory = 32 << 20

var allowedExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
}

// AllowedExtensions lists the accepted upload extensions, sorted.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// videoMetadata is the assembly response for a completed upload.
type videoMetadata struct {
	Filename    string  `json:"filename"`
	TotalFrames int     `json:"total_frames"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	Duration    float64 `json:"duration"`
}

// handleUpload receives one chunk of a chunked upload. The request
// that completes the set also assembles, validates, and stores the
// video, answering with its metadata.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxChunkMemory); err != nil {
		apiError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}

	uploadID := r.FormValue("upload_id")
	filename := r.FormValue("filename")
	clientID := r.FormValue("client_id")
	chunkIndex, err := strconv.Atoi(r.FormValue("chunk_index"))
	if err != nil {
		apiError(w, http.StatusBadRequest, "chunk_index must be an integer")
		return
	}
	totalChunks, err := strconv.Atoi(r.FormValue("total_chunks"))
	if err != nil || totalChunks <= 0 {
		apiError(w, http.StatusBadRequest, "total_chunks must be a positive integer")
		return
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		apiError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("extension not allowed, supported: %s", strings.Join(AllowedExtensions(), ", ")))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		apiError(w, http.StatusBadRequest, "file part missing")
		return
	}
	defer file.Close()

	if err := s.uploads.SaveChunk(uploadID, chunkIndex, file); err != nil {
		if errors.Is(err, upload.ErrInvalidID) {
			apiError(w, http.StatusBadRequest, "invalid upload_id format")
			return
		}
		log.Printf("[Upload] save chunk %d of %s: %v", chunkIndex, uploadID, err)
		apiError(w, http.StatusInternalServerError, "failed to save chunk")
		return
	}

	complete, err := s.uploads.IsComplete(uploadID, totalChunks)
	if err != nil {
		apiError(w, http.StatusInternalServerError, "failed to check upload state")
		return
	}
	if !complete {
		writeJSON(w, http.StatusOK, map[string]any{"status": "chunk_received", "chunk": chunkIndex})
		return
	}

	finalName := uploadID + ext
	finalPath, err := s.uploads.Assemble(uploadID, totalChunks, finalName)
	if err != nil {
		log.Printf("[Upload] assemble %s: %v", uploadID, err)
		apiError(w, http.StatusInternalServerError, "file assembly failed")
		return
	}

	info, err := video.Probe(finalPath)
	if err != nil {
		// One remux attempt before giving up on the container.
		log.Printf("[Upload] probe %s failed, trying H.264 fallback: %v", finalName, err)
		if clientID != "" {
			s.hub.Send(clientID, ws.NewLog("CONVERTING_CODEC"))
		}
		converted := strings.TrimSuffix(finalPath, ext) + "_h264.mp4"
		if convErr := video.ConvertToH264(finalPath, converted); convErr == nil {
			os.Remove(finalPath)
			finalPath = converted
			finalName = filepath.Base(converted)
			info, err = video.Probe(finalPath)
		}
	}
	if err != nil {
		os.Remove(finalPath)
		apiError(w, http.StatusBadRequest, "invalid video format or unsupported codec")
		return
	}

	if err := s.store.Upload(r.Context(), finalPath, finalName); err != nil {
		log.Printf("[Upload] store %s: %v", finalName, err)
		apiError(w, http.StatusInternalServerError, "object storage upload failed")
		return
	}

	writeJSON(w, http.StatusOK, videoMetadata{
		Filename:    finalName,
		TotalFrames: info.TotalFrames,
		Width:       info.Width,
		Height:      info.Height,
		FPS:         info.FPS,
		Duration:    info.Duration,
	})
}

// handleUploadStatus reports the chunk indices still missing so a
// client can resume an interrupted upload.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("upload_id")
	totalChunks, err := strconv.Atoi(r.URL.Query().Get("total_chunks"))
	if err != nil || totalChunks <= 0 {
		apiError(w, http.StatusBadRequest, "total_chunks must be a positive integer")
		return
	}

	missing, err := s.uploads.Missing(uploadID, totalChunks)
	if err != nil {
		if errors.Is(err, upload.ErrInvalidID) {
			apiError(w, http.StatusBadRequest, "invalid upload_id format")
			return
		}
		apiError(w, http.StatusInternalServerError, "failed to list chunks")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"missing_chunks": missing})
}
