package blur

import "image"

// kernel is a binary structuring element for morphological ops.
type kernel struct {
	size int
	hits [][2]int
}

func rectKernel(size int) kernel {
	if size < 1 {
		size = 1
	}
	half := size / 2
	k := kernel{size: size}
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			k.hits = append(k.hits, [2]int{dx, dy})
		}
	}
	return k
}

// ellipseKernel approximates a filled ellipse inscribed in a size×size
// box.
func ellipseKernel(size int) kernel {
	if size < 1 {
		size = 1
	}
	half := size / 2
	k := kernel{size: size}
	r := float64(half)
	if r == 0 {
		k.hits = append(k.hits, [2]int{0, 0})
		return k
	}
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			fx, fy := float64(dx)/r, float64(dy)/r
			if fx*fx+fy*fy <= 1.0 {
				k.hits = append(k.hits, [2]int{dx, dy})
			}
		}
	}
	return k
}

func morphMax(src *image.Gray, k kernel) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var best uint8
			for _, d := range k.hits {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if v := src.Pix[src.PixOffset(nx, ny)]; v > best {
					best = v
				}
			}
			dst.Pix[dst.PixOffset(x, y)] = best
		}
	}
	return dst
}

func morphMin(src *image.Gray, k kernel) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			best := uint8(255)
			for _, d := range k.hits {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if v := src.Pix[src.PixOffset(nx, ny)]; v < best {
					best = v
				}
			}
			dst.Pix[dst.PixOffset(x, y)] = best
		}
	}
	return dst
}

func dilate(src *image.Gray, k kernel) *image.Gray { return morphMax(src, k) }
func erode(src *image.Gray, k kernel) *image.Gray  { return morphMin(src, k) }

// gradient is dilation minus erosion: a cheap edge response that
// lights up text strokes and their drop shadows.
func gradient(src *image.Gray, k kernel) *image.Gray {
	d := morphMax(src, k)
	e := morphMin(src, k)
	out := image.NewGray(src.Bounds())
	for i := range out.Pix {
		out.Pix[i] = d.Pix[i] - e.Pix[i]
	}
	return out
}

// closing fills holes inside detected strokes.
func closing(src *image.Gray, k kernel) *image.Gray {
	return erode(dilate(src, k), k)
}

// threshold binarizes src: values above t become 255, the rest 0.
func threshold(src *image.Gray, t uint8) *image.Gray {
	out := image.NewGray(src.Bounds())
	for i, v := range src.Pix {
		if v > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// countNonZero returns the number of set pixels in a mask.
func countNonZero(mask *image.Gray) int {
	n := 0
	for _, v := range mask.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}
