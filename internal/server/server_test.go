package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dezexus/SubVision/internal/blur"
	"github.com/Dezexus/SubVision/internal/config"
	"github.com/Dezexus/SubVision/internal/ocr"
	"github.com/Dezexus/SubVision/internal/storage"
	"github.com/Dezexus/SubVision/internal/subtitle"
	"github.com/Dezexus/SubVision/internal/upload"
	"github.com/Dezexus/SubVision/internal/worker"
	"github.com/Dezexus/SubVision/internal/ws"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := &config.Settings{
		CacheDir: t.TempDir(),
	}
	uploads, err := upload.NewManager(cfg.CacheDir)
	require.NoError(t, err)
	store, err := storage.NewManager(context.Background(), cfg)
	require.NoError(t, err)
	engines := ocr.NewEngineCache(func(lang string, gpu bool) (*ocr.Engine, error) {
		return ocr.NewEngine(nil), nil
	})

	s := New(cfg, ws.NewHub(), uploads, store, engines)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return s, srv
}

func chunkRequest(t *testing.T, uploadID, filename string, index, total int, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("upload_id", uploadID))
	require.NoError(t, mw.WriteField("chunk_index", strconv.Itoa(index)))
	require.NoError(t, mw.WriteField("total_chunks", strconv.Itoa(total)))
	require.NoError(t, mw.WriteField("filename", filename))
	part, err := mw.CreateFormFile("file", "blob")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestAllowedExtensions(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/video/allowed-extensions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var exts []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&exts))
	assert.Contains(t, exts, ".mp4")
	assert.Contains(t, exts, ".webm")
	assert.NotContains(t, exts, ".exe")
}

func TestPresetsEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/process/presets")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var presets map[string]worker.Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&presets))
	assert.Contains(t, presets, "balance")
	assert.Equal(t, 2, presets["balance"].Step)
}

func TestBlurDefaultsEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/process/blur-defaults")
	require.NoError(t, err)
	defer resp.Body.Close()

	var s blur.Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, "hybrid", s.Mode)
	assert.Equal(t, 21, s.FontSize)
}

func TestUploadChunkReceipt(t *testing.T) {
	_, srv := newTestServer(t)
	body, contentType := chunkRequest(t, "up-1", "movie.mp4", 0, 3, []byte("first"))
	resp, err := http.Post(srv.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "chunk_received", out["status"])
}

func TestUploadRejectsBadExtension(t *testing.T) {
	_, srv := newTestServer(t)
	body, contentType := chunkRequest(t, "up-2", "payload.exe", 0, 1, []byte("nope"))
	resp, err := http.Post(srv.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUploadRejectsBadID(t *testing.T) {
	_, srv := newTestServer(t)
	body, contentType := chunkRequest(t, "../escape", "movie.mp4", 0, 2, []byte("x"))
	resp, err := http.Post(srv.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadStatusReportsMissing(t *testing.T) {
	_, srv := newTestServer(t)
	body, contentType := chunkRequest(t, "up-3", "movie.mp4", 1, 3, []byte("mid"))
	resp, err := http.Post(srv.URL+"/upload", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/upload/status/up-3?total_chunks=3")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string][]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []int{0, 2}, out["missing_chunks"])
}

func TestProcessStopWithoutJobs(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/process/stop/client-1", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "stopped", out["status"])
	assert.Equal(t, false, out["ocr_stopped"])
	assert.Equal(t, false, out["render_stopped"])
}

func TestProcessStartRejectsBadClientID(t *testing.T) {
	_, srv := newTestServer(t)
	payload := `{"filename":"a.mp4","client_id":"../etc","roi":[0,0,10,10]}`
	resp, err := http.Post(srv.URL+"/process/start", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessStartRejectsOutOfRangeConfig(t *testing.T) {
	_, srv := newTestServer(t)
	payload := `{"filename":"a.mp4","client_id":"client-2","step":99}`
	resp, err := http.Post(srv.URL+"/process/start", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportSRT(t *testing.T) {
	_, srv := newTestServer(t)

	srt := "1\n00:00:01,000 --> 00:00:02,500\nHello <i>world</i>\n\n2\n00:00:03,000 --> 00:00:04,000\nSecond line\n"
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "subs.srt")
	require.NoError(t, err)
	_, err = part.Write([]byte(srt))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/process/import_srt", mw.FormDataContentType(), body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []subtitle.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.Equal(t, "Hello world", items[0].Text, "html tags are stripped")
	assert.Equal(t, 1.0, items[0].Start)
	assert.Equal(t, 2.5, items[0].End)
}

func TestDownloadServesLocalFile(t *testing.T) {
	s, srv := newTestServer(t)
	path := filepath.Join(s.cfg.CacheDir, "out.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o644))

	resp, err := http.Get(srv.URL + "/video/download/out.mp4")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDownloadMissingFile(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/video/download/nope.mp4")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	_, srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/process/presets", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:7860")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:7860", resp.Header.Get("Access-Control-Allow-Origin"))
}
