package imaging

import (
	"image"
	"log"
)

// Backend executes the heavy per-pixel filters. Two implementations
// exist: a scalar one that walks rows serially and a parallel one that
// fans rows out across CPU cores. Callers normally go through Auto,
// which picks the parallel path per call and degrades to scalar when a
// single stage fails, so one bad stage never aborts a pipeline.
type Backend interface {
	Name() string
	BoxFilter(src *image.RGBA, ksize int) (*image.RGBA, error)
	GaussianBlur(src *image.RGBA, ksize int) (*image.RGBA, error)
	GaussianBlurGray(src *image.Gray, ksize int) (*image.Gray, error)
	Scale(src *image.RGBA, factor float64) (*image.RGBA, error)
	Sharpen(src *image.RGBA) (*image.RGBA, error)
	Denoise(src *image.RGBA, strength float64) (*image.RGBA, error)
}

type autoBackend struct {
	fast Backend
	safe Backend
}

// Auto returns the default backend composition: row-parallel filters
// with a scalar fallback per call.
func Auto() Backend {
	return &autoBackend{fast: newParallelBackend(), safe: newScalarBackend()}
}

func (a *autoBackend) Name() string { return "auto" }

func (a *autoBackend) BoxFilter(src *image.RGBA, ksize int) (*image.RGBA, error) {
	out, err := a.fast.BoxFilter(src, ksize)
	if err != nil {
		log.Printf("[Imaging] %s box filter failed, using %s: %v", a.fast.Name(), a.safe.Name(), err)
		return a.safe.BoxFilter(src, ksize)
	}
	return out, nil
}

func (a *autoBackend) GaussianBlur(src *image.RGBA, ksize int) (*image.RGBA, error) {
	out, err := a.fast.GaussianBlur(src, ksize)
	if err != nil {
		log.Printf("[Imaging] %s gaussian failed, using %s: %v", a.fast.Name(), a.safe.Name(), err)
		return a.safe.GaussianBlur(src, ksize)
	}
	return out, nil
}

func (a *autoBackend) GaussianBlurGray(src *image.Gray, ksize int) (*image.Gray, error) {
	out, err := a.fast.GaussianBlurGray(src, ksize)
	if err != nil {
		return a.safe.GaussianBlurGray(src, ksize)
	}
	return out, nil
}

func (a *autoBackend) Scale(src *image.RGBA, factor float64) (*image.RGBA, error) {
	out, err := a.fast.Scale(src, factor)
	if err != nil {
		return a.safe.Scale(src, factor)
	}
	return out, nil
}

func (a *autoBackend) Sharpen(src *image.RGBA) (*image.RGBA, error) {
	out, err := a.fast.Sharpen(src)
	if err != nil {
		return a.safe.Sharpen(src)
	}
	return out, nil
}

func (a *autoBackend) Denoise(src *image.RGBA, strength float64) (*image.RGBA, error) {
	out, err := a.fast.Denoise(src, strength)
	if err != nil {
		return a.safe.Denoise(src, strength)
	}
	return out, nil
}
