package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropClampsToBounds(t *testing.T) {
	src := Uniform(100, 50, color.RGBA{10, 20, 30, 255})

	out := Crop(src, image.Rect(80, 30, 200, 200))
	require.NotNil(t, out)
	assert.Equal(t, image.Rect(0, 0, 20, 20), out.Bounds())
	assert.Equal(t, uint8(10), out.Pix[0])
}

func TestCropEmptyIntersection(t *testing.T) {
	src := Uniform(10, 10, color.RGBA{})
	assert.Nil(t, Crop(src, image.Rect(50, 50, 60, 60)))
}

func TestGrayscaleWeights(t *testing.T) {
	src := Uniform(2, 2, color.RGBA{255, 0, 0, 255})
	g := Grayscale(src)
	// Rec. 601: 0.299 * 255
	assert.Equal(t, uint8(76), g.Pix[0])
}

func TestGaussianPreservesUniform(t *testing.T) {
	for _, b := range []Backend{newScalarBackend(), newParallelBackend()} {
		src := Uniform(32, 32, color.RGBA{100, 150, 200, 255})
		out, err := b.GaussianBlur(src, 5)
		require.NoError(t, err, b.Name())
		assert.True(t, Equal(src, out), b.Name())
	}
}

func TestScalarAndParallelAgree(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for i := range src.Pix {
		src.Pix[i] = uint8((i * 37) % 251)
	}
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	scalar := newScalarBackend()
	parallel := newParallelBackend()

	s1, err := scalar.GaussianBlur(src, 5)
	require.NoError(t, err)
	p1, err := parallel.GaussianBlur(src, 5)
	require.NoError(t, err)
	assert.True(t, Equal(s1, p1))

	s2, err := scalar.Sharpen(src)
	require.NoError(t, err)
	p2, err := parallel.Sharpen(src)
	require.NoError(t, err)
	assert.True(t, Equal(s2, p2))
}

func TestScaleDimensions(t *testing.T) {
	b := newScalarBackend()
	src := Uniform(20, 10, color.RGBA{1, 2, 3, 255})

	out, err := b.Scale(src, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())

	_, err = b.Scale(src, 0)
	assert.Error(t, err)
}

func TestDenoiseZeroStrengthIsNoop(t *testing.T) {
	b := newScalarBackend()
	src := Uniform(8, 8, color.RGBA{42, 42, 42, 255})
	out, err := b.Denoise(src, 0)
	require.NoError(t, err)
	assert.True(t, Equal(src, out))
}

func TestAutoFallsBackOnError(t *testing.T) {
	// nil source errors on the fast path and again on the safe path;
	// the composition must surface the error, not panic.
	a := Auto()
	_, err := a.GaussianBlur(nil, 5)
	assert.Error(t, err)
}

func TestChangeDetector(t *testing.T) {
	d := NewChangeDetector(newScalarBackend())
	a := Uniform(40, 20, color.RGBA{30, 30, 30, 255})
	b := Uniform(40, 20, color.RGBA{30, 30, 30, 255})

	assert.True(t, d.Changed(nil, a), "nil previous frame counts as changed")
	assert.False(t, d.Changed(a, b), "identical frames are static")

	c := Uniform(40, 20, color.RGBA{220, 220, 220, 255})
	assert.True(t, d.Changed(a, c), "large luminance jump is motion")

	small := Uniform(10, 10, color.RGBA{30, 30, 30, 255})
	assert.True(t, d.Changed(a, small), "size mismatch counts as changed")
}

func TestPipelineSmartSkip(t *testing.T) {
	p := NewPipeline(PipelineOptions{
		ROI:       image.Rect(0, 10, 40, 20),
		SmartSkip: true,
	}, newScalarBackend())

	frame := Uniform(40, 30, color.RGBA{50, 50, 50, 255})

	out, skip := p.Process(frame)
	require.False(t, skip)
	require.NotNil(t, out)
	assert.Equal(t, image.Rect(0, 0, 40, 10), out.Bounds())

	out, skip = p.Process(Clone(frame))
	assert.True(t, skip, "static ROI must be skipped")
	assert.Nil(t, out)
	assert.Equal(t, 1, p.SkippedCount())

	changed := Uniform(40, 30, color.RGBA{250, 250, 250, 255})
	_, skip = p.Process(changed)
	assert.False(t, skip, "changed ROI must pass through")
}

func TestPipelineSmartSkipCatchesGradualChange(t *testing.T) {
	p := NewPipeline(PipelineOptions{
		ROI:       image.Rect(0, 0, 40, 10),
		SmartSkip: true,
	}, newScalarBackend())

	// Brighten by 10 levels per frame: every consecutive diff sits
	// under the change threshold, but the drift accumulates. The
	// baseline must stay at the last *changed* frame, or a fading
	// caption never reaches OCR.
	passed := 0
	for step := 0; step < 10; step++ {
		v := uint8(50 + step*10)
		frame := Uniform(40, 10, color.RGBA{v, v, v, 255})
		if _, skip := p.Process(frame); !skip {
			passed++
		}
	}
	assert.Greater(t, passed, 1, "gradual brightening must eventually register as change")
}

func TestPipelineEmptyROI(t *testing.T) {
	p := NewPipeline(PipelineOptions{ROI: image.Rect(100, 100, 120, 120)}, newScalarBackend())
	out, skip := p.Process(Uniform(40, 30, color.RGBA{}))
	assert.True(t, skip)
	assert.Nil(t, out)
	assert.Equal(t, 1, p.SkippedCount())
}
