package blur

import "image"

// inpaint reconstructs the masked pixels of img by iterative diffusion
// from their unmasked neighbours. Each pass replaces every masked
// pixel with the mean of its 4-neighbourhood; repeated passes let the
// surrounding background flow inward until the text region reads as a
// smooth continuation of its surroundings. The pass count scales with
// radius so larger glyphs still fill completely.
func inpaint(img *image.RGBA, mask *image.Gray, radius int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if mask.Bounds().Dx() != w || mask.Bounds().Dy() != h {
		return img
	}

	cur := make([]float64, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(x, y)
			i := (y*w + x) * 3
			cur[i] = float64(img.Pix[o])
			cur[i+1] = float64(img.Pix[o+1])
			cur[i+2] = float64(img.Pix[o+2])
		}
	}
	next := make([]float64, len(cur))
	copy(next, cur)

	masked := func(x, y int) bool {
		return mask.Pix[mask.PixOffset(x, y)] != 0
	}

	// Seed masked pixels with the average of unmasked border pixels so
	// diffusion starts from a plausible background tone.
	var br, bg, bb float64
	count := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !masked(x, y) {
				i := (y*w + x) * 3
				br += cur[i]
				bg += cur[i+1]
				bb += cur[i+2]
				count++
			}
		}
	}
	if count > 0 {
		br /= float64(count)
		bg /= float64(count)
		bb /= float64(count)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if masked(x, y) {
					i := (y*w + x) * 3
					cur[i], cur[i+1], cur[i+2] = br, bg, bb
				}
			}
		}
		copy(next, cur)
	}

	passes := radius * 8
	if passes < 20 {
		passes = 20
	}
	for p := 0; p < passes; p++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !masked(x, y) {
					continue
				}
				var sr, sg, sb float64
				n := 0
				for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nx, ny := x+d[0], y+d[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					i := (ny*w + nx) * 3
					sr += cur[i]
					sg += cur[i+1]
					sb += cur[i+2]
					n++
				}
				if n == 0 {
					continue
				}
				i := (y*w + x) * 3
				next[i] = sr / float64(n)
				next[i+1] = sg / float64(n)
				next[i+2] = sb / float64(n)
			}
		}
		cur, next = next, cur
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(out.Pix, img.Pix)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !masked(x, y) {
				continue
			}
			o := out.PixOffset(x, y)
			i := (y*w + x) * 3
			out.Pix[o] = clampByte(cur[i])
			out.Pix[o+1] = clampByte(cur[i+1])
			out.Pix[o+2] = clampByte(cur[i+2])
			out.Pix[o+3] = 0xff
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
