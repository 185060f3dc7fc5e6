package blur

import (
	"image"
	"log"
	"strings"

	"github.com/Dezexus/SubVision/internal/imaging"
	"github.com/Dezexus/SubVision/internal/subtitle"
	"github.com/Dezexus/SubVision/internal/video"
)

const (
	maskGradThreshold = 25
	maskSampleCount   = 5
)

// GenerateTextMask builds a binary mask of the text strokes inside
// roi. A low gradient threshold catches drop shadows; closing fills
// stroke interiors and an elliptical dilation grows the mask past the
// glyph edges so inpainting has clean borders to pull from.
func GenerateTextMask(frame *image.RGBA, roi image.Rectangle, fontSize int) *image.Gray {
	inner := imaging.Crop(frame, roi)
	if inner == nil {
		return nil
	}
	gray := imaging.Grayscale(inner)

	mask := gradient(gray, rectKernel(3))
	mask = threshold(mask, maskGradThreshold)

	fillK := max(5, fontSize/2)
	mask = closing(mask, rectKernel(fillK))

	dilateK := max(9, int(float64(fontSize)*0.6))
	return dilate(mask, ellipseKernel(dilateK))
}

// BestMasks samples up to five frames per cue and keeps the mask with
// the largest text area, so one badly compressed frame does not leave
// glyph remnants for the whole cue. Only the hybrid mode uses masks.
func BestMasks(videoPath string, subs []subtitle.Item, s Settings, info *video.Info) map[int]*image.Gray {
	masks := make(map[int]*image.Gray)
	s = s.withDefaults()
	if s.Mode != "hybrid" {
		return masks
	}

	for _, sub := range subs {
		text := strings.TrimSpace(sub.Text)
		if text == "" {
			continue
		}
		roi := CalcROI(text, info.Width, info.Height, s)
		if roi.Empty() {
			continue
		}

		startF := int(sub.Start * info.FPS)
		endF := int(sub.End * info.FPS)
		indices := sampleIndices(startF, endF, info.TotalFrames)

		var best *image.Gray
		maxPixels := -1
		for _, idx := range indices {
			frame, err := video.ExtractFrame(videoPath, idx)
			if err != nil {
				log.Printf("[MaskGenerator] frame %d unavailable for cue %d: %v", idx, sub.ID, err)
				continue
			}
			mask := GenerateTextMask(frame, roi, s.FontSize)
			if mask == nil {
				continue
			}
			if n := countNonZero(mask); n > maxPixels {
				maxPixels = n
				best = mask
			}
		}
		if best != nil {
			masks[sub.ID] = best
		}
	}
	return masks
}

// sampleIndices spreads maskSampleCount indices evenly across a cue's
// frame range; short cues use every frame.
func sampleIndices(startF, endF, totalFrames int) []int {
	duration := endF - startF
	var indices []int
	if duration <= maskSampleCount {
		for f := startF; f < endF; f++ {
			indices = append(indices, f)
		}
	} else {
		step := float64(duration) / maskSampleCount
		for i := 0; i < maskSampleCount; i++ {
			indices = append(indices, startF+int(float64(i)*step))
		}
	}
	for i, f := range indices {
		indices[i] = max(0, min(totalFrames-1, f))
	}
	return indices
}
