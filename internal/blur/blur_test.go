package blur

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dezexus/SubVision/internal/imaging"
	"github.com/Dezexus/SubVision/internal/subtitle"
	"github.com/Dezexus/SubVision/internal/video"
)

func TestEstimateTextWidth(t *testing.T) {
	assert.Equal(t, 0, EstimateTextWidth("", 21, 1.0))

	short := EstimateTextWidth("hi", 21, 1.0)
	long := EstimateTextWidth("hello there friend", 21, 1.0)
	assert.Greater(t, long, short, "longer text must be wider")

	thin := EstimateTextWidth("iiii", 21, 1.0)
	wide := EstimateTextWidth("mmmm", 21, 1.0)
	assert.Greater(t, wide, thin, "wide glyphs outweigh thin glyphs")

	cjk := EstimateTextWidth("字幕文字", 21, 1.0)
	latin := EstimateTextWidth("abcd", 21, 1.0)
	assert.Greater(t, cjk, latin, "full-width glyphs are the widest class")

	assert.Equal(t, EstimateTextWidth("text", 21, 1.0)*2, EstimateTextWidth("text", 42, 1.0))
}

func TestCalcROI(t *testing.T) {
	s := DefaultSettings()

	assert.True(t, CalcROI("", 1920, 1080, s).Empty())
	assert.True(t, CalcROI("   ", 1920, 1080, s).Empty())

	roi := CalcROI("Some subtitle text", 1920, 1080, s)
	require.False(t, roi.Empty())
	assert.True(t, roi.In(image.Rect(0, 0, 1920, 1080)), "roi stays inside the frame")

	// centered: distance from left edge ~ distance from right edge
	leftGap := roi.Min.X
	rightGap := 1920 - roi.Max.X
	assert.InDelta(t, leftGap, rightGap, 2)
}

func TestCalcROIClampsAtEdges(t *testing.T) {
	s := DefaultSettings()
	s.Y = 10 // baseline near the top pushes the box off-frame
	roi := CalcROI("Edge case", 640, 360, s)
	require.False(t, roi.Empty())
	assert.GreaterOrEqual(t, roi.Min.Y, 0)
	assert.LessOrEqual(t, roi.Max.X, 640)
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	assert.Equal(t, "hybrid", s.Mode)
	assert.Equal(t, 21, s.FontSize)
	assert.Equal(t, 40, s.PaddingX)
	assert.Equal(t, 2.0, s.PaddingY)
	assert.Equal(t, 1.0, s.WidthMultiplier)
}

func TestGenerateTextMaskFindsStrokes(t *testing.T) {
	// Uniform background with a bright bar: the gradient mask must
	// light up around the bar and stay empty on a flat frame.
	frame := imaging.Uniform(200, 100, color.RGBA{40, 40, 40, 255})
	for y := 40; y < 50; y++ {
		for x := 50; x < 150; x++ {
			o := frame.PixOffset(x, y)
			frame.Pix[o], frame.Pix[o+1], frame.Pix[o+2] = 250, 250, 250
		}
	}
	roi := image.Rect(30, 20, 170, 80)

	mask := GenerateTextMask(frame, roi, 21)
	require.NotNil(t, mask)
	assert.Greater(t, countNonZero(mask), 0)

	flat := imaging.Uniform(200, 100, color.RGBA{40, 40, 40, 255})
	flatMask := GenerateTextMask(flat, roi, 21)
	require.NotNil(t, flatMask)
	assert.Equal(t, 0, countNonZero(flatMask))
}

func TestGenerateTextMaskEmptyROI(t *testing.T) {
	frame := imaging.Uniform(10, 10, color.RGBA{A: 255})
	assert.Nil(t, GenerateTextMask(frame, image.Rect(50, 50, 60, 60), 21))
}

func TestInpaintRemovesMaskedContent(t *testing.T) {
	img := imaging.Uniform(40, 40, color.RGBA{100, 100, 100, 255})
	// bright square to remove
	for y := 15; y < 25; y++ {
		for x := 15; x < 25; x++ {
			o := img.PixOffset(x, y)
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = 255, 255, 255
		}
	}
	mask := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 14; y < 26; y++ {
		for x := 14; x < 26; x++ {
			mask.Pix[mask.PixOffset(x, y)] = 255
		}
	}

	out := inpaint(img, mask, 5)
	center := out.PixOffset(20, 20)
	assert.InDelta(t, 100, float64(out.Pix[center]), 15, "masked area converges toward the background")

	corner := out.PixOffset(2, 2)
	assert.Equal(t, uint8(100), out.Pix[corner], "unmasked pixels stay untouched")
}

func TestApplyBlurChangesOnlyROI(t *testing.T) {
	frame := imaging.Uniform(120, 80, color.RGBA{60, 60, 60, 255})
	for y := 30; y < 40; y++ {
		for x := 30; x < 90; x++ {
			o := frame.PixOffset(x, y)
			frame.Pix[o], frame.Pix[o+1], frame.Pix[o+2] = 240, 240, 240
		}
	}
	before := imaging.Clone(frame)

	s := DefaultSettings()
	s.Mode = "blur"
	s.Feather = 0
	roi := image.Rect(20, 20, 100, 50)
	ApplyBlur(frame, roi, s, 1.0, nil, nil)

	assert.False(t, imaging.Equal(before, frame), "blur must alter the roi")
	// far corner untouched
	o := frame.PixOffset(110, 70)
	assert.Equal(t, uint8(60), frame.Pix[o])
}

func TestApplyBlurZeroAlphaIsNoop(t *testing.T) {
	frame := imaging.Uniform(50, 50, color.RGBA{10, 20, 30, 255})
	before := imaging.Clone(frame)
	ApplyBlur(frame, image.Rect(10, 10, 40, 40), DefaultSettings(), 0, nil, nil)
	assert.True(t, imaging.Equal(before, frame))
}

func TestBuildPlanExpandsAndClamps(t *testing.T) {
	info := &video.Info{Width: 1280, Height: 720, FPS: 25, TotalFrames: 250}
	subs := []subtitle.Item{
		{ID: 1, Start: 0.0, End: 1.0, Text: "Opening line"},
		{ID: 2, Start: 9.8, End: 10.4, Text: "Closing line"},
	}
	plan := buildPlan(subs, DefaultSettings(), info)

	// [0*25-1, 1*25+1) clamped at zero
	_, ok := plan[0]
	assert.True(t, ok)
	_, ok = plan[25]
	assert.True(t, ok)
	_, ok = plan[26]
	assert.False(t, ok)

	// second cue runs past TotalFrames but stays under total+5
	_, ok = plan[254]
	assert.True(t, ok)
	_, ok = plan[255]
	assert.False(t, ok)
}

func TestBuildPlanSkipsEmptyText(t *testing.T) {
	info := &video.Info{Width: 1280, Height: 720, FPS: 25, TotalFrames: 100}
	plan := buildPlan([]subtitle.Item{{ID: 1, Start: 0, End: 1, Text: "  "}}, DefaultSettings(), info)
	assert.Empty(t, plan)
}

func TestSampleIndices(t *testing.T) {
	idx := sampleIndices(10, 13, 100)
	assert.Equal(t, []int{10, 11, 12}, idx, "short cues use every frame")

	idx = sampleIndices(0, 100, 100)
	assert.Len(t, idx, 5)
	assert.Equal(t, 0, idx[0])
	for i := 1; i < len(idx); i++ {
		assert.Greater(t, idx[i], idx[i-1])
	}

	idx = sampleIndices(95, 120, 100)
	for _, f := range idx {
		assert.Less(t, f, 100, "samples clamp to the last frame")
	}
}

func TestRenderReleasesStagesOnError(t *testing.T) {
	r := NewRenderer(imaging.Auto())
	err := r.Render("/nonexistent/video.mp4", []subtitle.Item{
		{ID: 1, Start: 0, End: 1, Text: "hello"},
	}, DefaultSettings(), t.TempDir()+"/out.mp4", nil)
	require.Error(t, err)

	// A failed render must leave the stop channel closed so the stage
	// goroutines blocked on channel sends can exit.
	assert.True(t, r.stopped())
}
