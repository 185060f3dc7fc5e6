package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/Dezexus/SubVision/internal/blur"
	"github.com/Dezexus/SubVision/internal/subtitle"
	"github.com/Dezexus/SubVision/internal/video"
	"github.com/Dezexus/SubVision/internal/worker"
	"github.com/Dezexus/SubVision/internal/ws"
)

type processConfig struct {
	Filename string `json:"filename"`
	ClientID string `json:"client_id"`
	// ROI is (x, y, w, h); zero width or height selects the whole
	// frame.
	ROI    []int  `json:"roi"`
	Preset string `json:"preset"`
	Lang   string `json:"lang"`
	UseGPU bool   `json:"use_gpu"`
	worker.Overrides
}

// handleProcessStart launches the OCR worker for a session, displacing
// any job the session already runs.
func (s *Server) handleProcessStart(w http.ResponseWriter, r *http.Request) {
	var cfg processConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		apiError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !clientIDRe.MatchString(cfg.ClientID) {
		apiError(w, http.StatusBadRequest, "invalid client_id format")
		return
	}

	resolved, err := worker.Resolve(cfg.Preset, cfg.Overrides)
	if err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	videoPath, err := s.ensureCached(r, cfg.Filename)
	if err != nil {
		apiError(w, http.StatusNotFound, "video not found")
		return
	}
	info, err := video.Probe(videoPath)
	if err != nil {
		apiError(w, http.StatusBadRequest, "video could not be opened")
		return
	}

	roi := image.Rect(0, 0, info.Width, info.Height)
	if len(cfg.ROI) == 4 && cfg.ROI[2] > 0 && cfg.ROI[3] > 0 {
		roi = image.Rect(cfg.ROI[0], cfg.ROI[1], cfg.ROI[0]+cfg.ROI[2], cfg.ROI[1]+cfg.ROI[3]).
			Intersect(image.Rect(0, 0, info.Width, info.Height))
		if roi.Empty() {
			apiError(w, http.StatusBadRequest, "roi outside frame bounds")
			return
		}
	}

	lang := cfg.Lang
	if lang == "" {
		lang = "en"
	}
	engine, err := s.engines.Get(lang, cfg.UseGPU)
	if err != nil {
		log.Printf("[HTTP] OCR engine for %s unavailable: %v", lang, err)
		apiError(w, http.StatusServiceUnavailable, "OCR engine unavailable")
		return
	}

	base := filepath.Base(cfg.Filename)
	srtPath := s.cachePath(strings.TrimSuffix(base, filepath.Ext(base)) + ".srt")

	job := worker.NewWorker(worker.Params{
		SessionID:  cfg.ClientID,
		VideoPath:  videoPath,
		OutputPath: srtPath,
		Lang:       lang,
		UseGPU:     cfg.UseGPU,
		ROI:        roi,
	}, resolved, engine, ws.NewEmitter(s.hub, cfg.ClientID), nil)

	s.ocrJobs.Launch(cfg.ClientID, job, job.Run, srtPath)

	writeJSON(w, http.StatusOK, map[string]string{"status": "started", "job_id": uuid.NewString()})
}

// handleProcessStop cancels whatever the session is running.
func (s *Server) handleProcessStop(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if !clientIDRe.MatchString(clientID) {
		apiError(w, http.StatusBadRequest, "invalid client_id format")
		return
	}
	ocrStopped := s.ocrJobs.Stop(clientID)
	renderStopped := s.renderJobs.Stop(clientID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "stopped",
		"ocr_stopped":    ocrStopped,
		"render_stopped": renderStopped,
	})
}

type renderConfig struct {
	Filename     string          `json:"filename"`
	ClientID     string          `json:"client_id"`
	Subtitles    []subtitle.Item `json:"subtitles"`
	BlurSettings json.RawMessage `json:"blur_settings"`
}

// decodeBlurSettings unmarshals onto prefilled defaults, so absent
// fields keep their defaults while explicit zeros (sigma, feather)
// turn the feature off.
func decodeBlurSettings(raw json.RawMessage) (blur.Settings, error) {
	s := blur.DefaultSettings()
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return blur.Settings{}, err
	}
	return s, nil
}

// handleRenderBlur starts a background blur render for the session and
// returns immediately; completion arrives over the session socket.
func (s *Server) handleRenderBlur(w http.ResponseWriter, r *http.Request) {
	var cfg renderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		apiError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !clientIDRe.MatchString(cfg.ClientID) {
		apiError(w, http.StatusBadRequest, "invalid client_id format")
		return
	}
	settings, err := decodeBlurSettings(cfg.BlurSettings)
	if err != nil {
		apiError(w, http.StatusBadRequest, "malformed blur_settings")
		return
	}

	outputName := "blurred_" + filepath.Base(cfg.Filename)
	outputPath := s.cachePath(outputName)
	filename := filepath.Base(cfg.Filename)
	emitter := ws.NewEmitter(s.hub, cfg.ClientID)

	renderer := blur.NewRenderer(nil)
	job := newRenderJob(renderer)

	s.renderJobs.Launch(cfg.ClientID, job, func() {
		defer close(job.done)
		ctx := context.Background()

		videoPath := s.cachePath(filename)
		if err := s.store.Download(ctx, filename, videoPath); err != nil {
			emitter.Finish(false, "", fmt.Sprintf("source video unavailable: %v", err))
			return
		}

		progress := func(done, total int) {
			if total <= 0 {
				total = 1
			}
			pct := min(100, done*100/total)
			emitter.Progress(float64(pct), done, total, fmt.Sprintf("%d%%", pct))
		}

		err := renderer.Render(videoPath, cfg.Subtitles, settings, outputPath, progress)
		switch {
		case errors.Is(err, video.ErrCancelled):
			emitter.Finish(false, "", "Stopped by user")
			return
		case err != nil:
			log.Printf("[HTTP] render for %s failed: %v", cfg.ClientID, err)
			emitter.Finish(false, "", err.Error())
			return
		}

		if err := s.store.Upload(ctx, outputPath, outputName); err != nil {
			emitter.Finish(false, "", fmt.Sprintf("failed to store rendered video: %v", err))
			return
		}
		emitter.Finish(true, "/video/download/"+outputName, "")
	}, outputPath)

	writeJSON(w, http.StatusOK, map[string]string{"status": "rendering_started", "output": outputName})
}

type previewConfig struct {
	Filename     string          `json:"filename"`
	FrameIndex   int             `json:"frame_index"`
	BlurSettings json.RawMessage `json:"blur_settings"`
	SubtitleText string          `json:"subtitle_text"`
}

// handlePreviewBlur applies the blur settings to a single frame and
// returns the composited image as JPEG.
func (s *Server) handlePreviewBlur(w http.ResponseWriter, r *http.Request) {
	var cfg previewConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		apiError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	settings, err := decodeBlurSettings(cfg.BlurSettings)
	if err != nil {
		apiError(w, http.StatusBadRequest, "malformed blur_settings")
		return
	}

	videoPath, err := s.ensureCached(r, cfg.Filename)
	if err != nil {
		apiError(w, http.StatusNotFound, "video not found")
		return
	}

	img, err := blur.NewRenderer(nil).Preview(videoPath, cfg.FrameIndex, settings, cfg.SubtitleText)
	if err != nil {
		log.Printf("[HTTP] preview for %s frame %d: %v", cfg.Filename, cfg.FrameIndex, err)
		apiError(w, http.StatusInternalServerError, "failed to generate preview")
		return
	}
	writeJPEG(w, img)
}

// handleImportSRT parses an uploaded SRT file into subtitle items,
// falling back from UTF-8 to Windows-1252 for legacy files.
func (s *Server) handleImportSRT(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxChunkMemory); err != nil {
		apiError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		apiError(w, http.StatusBadRequest, "file part missing")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		apiError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if !utf8.Valid(content) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
		if err != nil {
			apiError(w, http.StatusBadRequest, "invalid file encoding")
			return
		}
		content = decoded
	}

	items := subtitle.ParseSRT(string(content))
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, worker.Presets())
}

func (s *Server) handleBlurDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, blur.DefaultSettings())
}

func writeJPEG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/jpeg")
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 90}); err != nil {
		log.Printf("[HTTP] encode jpeg: %v", err)
	}
}
