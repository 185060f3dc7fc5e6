package ocr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const (
	healthCacheTTL = 30 * time.Second
	jpegQuality    = 90
)

// HTTPRecognizer talks to an OCR inference sidecar over HTTP. Frames
// go up as multipart JPEG, spans come back as parallel arrays of
// texts, scores and box quads. Health checks are cached for 30 s so a
// busy worker does not hammer /health between batches.
type HTTPRecognizer struct {
	endpoint string
	lang     string
	gpu      bool
	client   *http.Client

	healthOK time.Time
}

func NewHTTPRecognizer(endpoint, lang string, gpu bool) *HTTPRecognizer {
	return &HTTPRecognizer{
		endpoint: endpoint,
		lang:     lang,
		gpu:      gpu,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsHealthy reports whether the sidecar answered a recent health probe.
func (r *HTTPRecognizer) IsHealthy() bool {
	if time.Since(r.healthOK) < healthCacheTTL {
		return true
	}
	resp, err := r.client.Get(r.endpoint + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	r.healthOK = time.Now()
	return true
}

type predictResponse struct {
	Texts  []string       `json:"texts"`
	Scores []float64      `json:"scores"`
	Boxes  [][][2]float64 `json:"boxes"`
}

// Recognize sends one frame to the sidecar and decodes the spans.
func (r *HTTPRecognizer) Recognize(img *image.RGBA) ([]Span, error) {
	if !r.IsHealthy() {
		return nil, fmt.Errorf("ocr service at %s unavailable", r.endpoint)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	fw, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if err := jpeg.Encode(fw, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	w.WriteField("lang", r.lang)
	w.WriteField("use_gpu", fmt.Sprintf("%t", r.gpu))
	w.Close()

	req, err := http.NewRequest(http.MethodPost, r.endpoint+"/predict", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		r.healthOK = time.Time{}
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, msg)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}

	spans := make([]Span, 0, len(out.Texts))
	for i, text := range out.Texts {
		s := Span{Text: text}
		if i < len(out.Scores) {
			s.Score = out.Scores[i]
		}
		if i < len(out.Boxes) {
			s.Box = out.Boxes[i]
		}
		spans = append(spans, s)
	}
	return spans, nil
}
