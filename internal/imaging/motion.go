package imaging

import "image"

const (
	changeBlurKernel    = 5
	changeDiffThreshold = 15
	changeMinPixels     = 15
)

// ChangeDetector decides whether a region of interest moved enough
// since the previous frame to be worth re-running OCR on. Both frames
// are reduced to blurred grayscale before differencing so compression
// noise does not register as motion.
type ChangeDetector struct {
	backend Backend
}

func NewChangeDetector(backend Backend) *ChangeDetector {
	return &ChangeDetector{backend: backend}
}

// Changed reports whether cur differs from prev. A nil prev, a size
// mismatch or a filter failure all count as changed so the caller
// never skips a frame it cannot prove static.
func (d *ChangeDetector) Changed(prev, cur *image.RGBA) bool {
	if prev == nil || cur == nil {
		return true
	}
	if prev.Bounds().Size() != cur.Bounds().Size() {
		return true
	}
	pg, err := d.backend.GaussianBlurGray(Grayscale(prev), changeBlurKernel)
	if err != nil {
		return true
	}
	cg, err := d.backend.GaussianBlurGray(Grayscale(cur), changeBlurKernel)
	if err != nil {
		return true
	}
	changed := 0
	for i := range cg.Pix {
		diff := int(cg.Pix[i]) - int(pg.Pix[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > changeDiffThreshold {
			changed++
			if changed > changeMinPixels {
				return true
			}
		}
	}
	return false
}
