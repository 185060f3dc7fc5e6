package ocr

import (
	"fmt"
	"image"
	"log"
	"sync"
)

// Recognizer runs text recognition on a single frame.
type Recognizer interface {
	Recognize(img *image.RGBA) ([]Span, error)
}

// Engine wraps a Recognizer with the serialization and parsing the
// workers rely on. Inference backends tolerate exactly one in-flight
// request, so PredictBatch holds a lock for the whole batch.
type Engine struct {
	recognizer Recognizer
	inference  sync.Mutex
}

func NewEngine(recognizer Recognizer) *Engine {
	return &Engine{recognizer: recognizer}
}

// PredictBatch recognizes a batch of frames in order. A nil frame or a
// failed recognition yields an empty Result in its slot rather than
// failing the batch.
func (e *Engine) PredictBatch(frames []*image.RGBA, confThresh float64) []Result {
	results := make([]Result, len(frames))
	if len(frames) == 0 {
		return results
	}
	e.inference.Lock()
	defer e.inference.Unlock()
	for i, frame := range frames {
		if frame == nil {
			continue
		}
		spans, err := e.recognizer.Recognize(frame)
		if err != nil {
			log.Printf("[OCR] inference failed for batch slot %d: %v", i, err)
			continue
		}
		results[i] = ParseSpans(spans, confThresh)
	}
	return results
}

// EngineCache hands out one Engine per (lang, gpu) pair, building them
// lazily under a double-checked lock so concurrent sessions share the
// same engine instance.
type EngineCache struct {
	mu      sync.Mutex
	engines map[string]*Engine
	build   func(lang string, gpu bool) (*Engine, error)
}

func NewEngineCache(build func(lang string, gpu bool) (*Engine, error)) *EngineCache {
	return &EngineCache{
		engines: make(map[string]*Engine),
		build:   build,
	}
}

func (c *EngineCache) Get(lang string, gpu bool) (*Engine, error) {
	key := fmt.Sprintf("%s/%t", lang, gpu)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.engines[key]; ok {
		return e, nil
	}
	e, err := c.build(lang, gpu)
	if err != nil {
		return nil, fmt.Errorf("build ocr engine %s: %w", key, err)
	}
	c.engines[key] = e
	return e, nil
}
