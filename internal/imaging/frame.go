package imaging

import (
	"image"
	"image/color"
	"image/draw"
)

// ToRGBA returns img as *image.RGBA, converting only when necessary.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Clone returns a deep copy of src.
func Clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// Crop extracts rect from src into a fresh image anchored at (0,0).
// The rectangle is clamped to the source bounds; an empty intersection
// returns nil.
func Crop(src *image.RGBA, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(src.Bounds())
	if rect.Empty() {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return dst
}

// Paste copies patch into dst with its top-left corner at pt.
func Paste(dst *image.RGBA, patch *image.RGBA, pt image.Point) {
	r := image.Rect(pt.X, pt.Y, pt.X+patch.Bounds().Dx(), pt.Y+patch.Bounds().Dy())
	draw.Draw(dst, r.Intersect(dst.Bounds()), patch, patch.Bounds().Min, draw.Src)
}

// Grayscale converts src to 8-bit luminance using the Rec. 601 weights.
func Grayscale(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		so := src.PixOffset(b.Min.X, b.Min.Y+y)
		do := dst.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			r := uint32(src.Pix[so])
			g := uint32(src.Pix[so+1])
			bb := uint32(src.Pix[so+2])
			dst.Pix[do] = uint8((299*r + 587*g + 114*bb) / 1000)
			so += 4
			do++
		}
	}
	return dst
}

// Equal reports whether two frames have identical bounds and pixels.
func Equal(a, b *image.RGBA) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Bounds() != b.Bounds() {
		return false
	}
	if len(a.Pix) != len(b.Pix) {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}

// Uniform builds a solid-color frame, mainly useful in tests.
func Uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}
