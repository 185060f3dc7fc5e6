package imaging

import (
	"image"
	"log"
)

// PipelineOptions tune the per-frame preprocessing ahead of OCR.
type PipelineOptions struct {
	// ROI is the subtitle region in full-frame coordinates.
	ROI image.Rectangle
	// SmartSkip drops frames whose ROI is visually unchanged.
	SmartSkip bool
	// DenoiseStrength of 0 disables denoising.
	DenoiseStrength float64
	// ScaleFactor of 1 keeps the native ROI resolution.
	ScaleFactor float64
	// Sharpen applies the fixed sharpening kernel as the last stage.
	Sharpen bool
}

// Pipeline prepares video frames for the OCR engine: crop to the ROI,
// optionally skip static frames, then denoise, upscale and sharpen.
// It keeps the previous ROI crop between calls, so one Pipeline serves
// exactly one frame stream.
type Pipeline struct {
	opts     PipelineOptions
	backend  Backend
	detector *ChangeDetector

	lastROI *image.RGBA
	skipped int
}

func NewPipeline(opts PipelineOptions, backend Backend) *Pipeline {
	if backend == nil {
		backend = Auto()
	}
	return &Pipeline{
		opts:     opts,
		backend:  backend,
		detector: NewChangeDetector(backend),
	}
}

// Process runs one frame through the pipeline. It returns the prepared
// ROI image, or nil with skip=true when the frame should not reach the
// OCR engine (empty ROI intersection, or an unchanged ROI under smart
// skip). Filter failures degrade to the unfiltered crop rather than
// dropping the frame.
func (p *Pipeline) Process(frame *image.RGBA) (img *image.RGBA, skip bool) {
	roi := Crop(frame, p.opts.ROI)
	if roi == nil {
		p.skipped++
		return nil, true
	}

	if p.opts.SmartSkip {
		if !p.detector.Changed(p.lastROI, roi) {
			// The prior stays put on a skip: replacing it here would let
			// a slow fade drift under the threshold frame after frame.
			p.skipped++
			return nil, true
		}
		p.lastROI = roi
	}

	out := roi
	if p.opts.DenoiseStrength > 0 {
		if d, err := p.backend.Denoise(out, p.opts.DenoiseStrength); err == nil {
			out = d
		} else {
			log.Printf("[Pipeline] denoise failed, passing frame through: %v", err)
		}
	}
	if p.opts.ScaleFactor > 0 && p.opts.ScaleFactor != 1 {
		if s, err := p.backend.Scale(out, p.opts.ScaleFactor); err == nil {
			out = s
		} else {
			log.Printf("[Pipeline] scale failed, passing frame through: %v", err)
		}
	}
	if p.opts.Sharpen {
		if s, err := p.backend.Sharpen(out); err == nil {
			out = s
		}
	}
	return out, false
}

// SkippedCount returns how many frames the pipeline has dropped so far.
func (p *Pipeline) SkippedCount() int { return p.skipped }
