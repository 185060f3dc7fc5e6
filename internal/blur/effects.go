package blur

import (
	"image"

	"github.com/Dezexus/SubVision/internal/imaging"
)

func oddAtLeast(v, floor int) int {
	if v < floor {
		v = floor
	}
	if v%2 == 0 {
		v++
	}
	return v
}

// ApplyBlur obscures roi in place. In hybrid mode the text strokes are
// inpainted away first, then the whole region is softened with a
// 3-pass box blur and composited back through a feathered alpha mask
// so the edit has no hard edges. Alpha below 1 fades the whole effect,
// which the preview endpoint uses.
func ApplyBlur(frame *image.RGBA, roi image.Rectangle, s Settings, alpha float64, precalcMask *image.Gray, backend imaging.Backend) {
	s = s.withDefaults()
	roi = roi.Intersect(frame.Bounds())
	if roi.Empty() || alpha <= 0 {
		return
	}
	if backend == nil {
		backend = imaging.Auto()
	}

	originalROI := imaging.Crop(frame, roi)

	if s.Mode == "hybrid" {
		hybridInpaint(frame, roi, s.FontSize, precalcMask, backend)
	}

	processed := imaging.Crop(frame, roi)
	if s.Sigma > 0 {
		k := s.Sigma*2 + 1
		for i := 0; i < 3; i++ {
			if out, err := backend.BoxFilter(processed, k); err == nil {
				processed = out
			}
		}
	}

	if s.Feather > 0 || alpha < 1.0 {
		mask := featherMask(roi, frame.Bounds(), s.Feather, backend)
		blendMasked(frame, roi, processed, originalROI, mask, alpha)
	} else {
		imaging.Paste(frame, processed, roi.Min)
	}
}

// hybridInpaint reconstructs the background under the text strokes.
// The working region extends past roi so diffusion and smoothing can
// pull from clean surroundings.
func hybridInpaint(frame *image.RGBA, roi image.Rectangle, fontSize int, precalc *image.Gray, backend imaging.Backend) {
	pad := max(15, fontSize/2)
	expanded := image.Rect(roi.Min.X-pad, roi.Min.Y-pad, roi.Max.X+pad, roi.Max.Y+pad).
		Intersect(frame.Bounds())

	region := imaging.Crop(frame, expanded)
	if region == nil {
		return
	}

	mask := precalc
	if mask == nil || mask.Bounds().Dx() != roi.Dx() || mask.Bounds().Dy() != roi.Dy() {
		mask = GenerateTextMask(frame, roi, fontSize)
	}
	if mask == nil {
		return
	}

	// Place the roi-local mask inside the expanded region.
	localMask := image.NewGray(image.Rect(0, 0, expanded.Dx(), expanded.Dy()))
	ox := roi.Min.X - expanded.Min.X
	oy := roi.Min.Y - expanded.Min.Y
	for y := 0; y < mask.Bounds().Dy(); y++ {
		for x := 0; x < mask.Bounds().Dx(); x++ {
			localMask.Pix[localMask.PixOffset(ox+x, oy+y)] = mask.Pix[mask.PixOffset(x, y)]
		}
	}

	radius := max(5, int(float64(fontSize)*0.3))
	filled := inpaint(region, localMask, radius)

	smoothK := oddAtLeast(int(float64(fontSize)*0.8), 11)
	if out, err := backend.GaussianBlur(filled, smoothK); err == nil {
		filled = out
	}

	blendK := oddAtLeast(int(float64(fontSize)*0.6), 9)
	soft := localMask
	if out, err := backend.GaussianBlurGray(localMask, blendK); err == nil {
		soft = out
	}

	// Composite the reconstruction over the original through the
	// softened mask.
	out := imaging.Clone(region)
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			a := float64(soft.Pix[soft.PixOffset(x, y)]) / 255.0
			if a == 0 {
				continue
			}
			o := out.PixOffset(x, y)
			fo := filled.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float64(filled.Pix[fo+c])*a + float64(out.Pix[o+c])*(1-a)
				out.Pix[o+c] = clampByte(v)
			}
		}
	}
	imaging.Paste(frame, out, expanded.Min)
}

// featherMask builds the per-pixel blend weights for the roi: fully
// opaque in the middle, fading across the feather width at any edge
// not flush with the frame border.
func featherMask(roi, frameBounds image.Rectangle, feather int, backend imaging.Backend) *image.Gray {
	bw, bh := roi.Dx(), roi.Dy()
	mask := image.NewGray(image.Rect(0, 0, bw, bh))

	eff := min(feather, int(float64(bw)*0.45), int(float64(bh)*0.45))
	if eff < 1 {
		for i := range mask.Pix {
			mask.Pix[i] = 255
		}
		return mask
	}

	x1, y1 := eff, eff
	x2, y2 := bw-eff, bh-eff
	if roi.Min.X <= frameBounds.Min.X {
		x1 = 0
	}
	if roi.Min.Y <= frameBounds.Min.Y {
		y1 = 0
	}
	if roi.Max.X >= frameBounds.Max.X {
		x2 = bw
	}
	if roi.Max.Y >= frameBounds.Max.Y {
		y2 = bh
	}
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			mask.Pix[mask.PixOffset(x, y)] = 255
		}
	}

	k := oddAtLeast(eff, 3)
	if out, err := backend.GaussianBlurGray(mask, k); err == nil {
		mask = out
	}
	return mask
}

// blendMasked writes blurred-over-original into frame at roi using the
// feather mask scaled by alpha.
func blendMasked(frame *image.RGBA, roi image.Rectangle, blurred, original *image.RGBA, mask *image.Gray, alpha float64) {
	out := imaging.Clone(original)
	for y := 0; y < roi.Dy(); y++ {
		for x := 0; x < roi.Dx(); x++ {
			a := float64(mask.Pix[mask.PixOffset(x, y)]) / 255.0 * alpha
			o := out.PixOffset(x, y)
			bo := blurred.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float64(blurred.Pix[bo+c])*a + float64(original.Pix[o+c])*(1-a)
				out.Pix[o+c] = clampByte(v)
			}
		}
	}
	imaging.Paste(frame, out, roi.Min)
}
