package imaging

import "image"

// dilate sets each pixel to the maximum over a kw x kh window centered on it
// (anchor at kw/2, kh/2). Out-of-image pixels are ignored.
func dilate(src *image.Gray, kw, kh int) *image.Gray {
	return morph(src, kw, kh, func(acc, v uint8) uint8 {
		if v > acc {
			return v
		}
		return acc
	}, 0)
}

// erode sets each pixel to the minimum over the window. Out-of-image pixels
// are ignored, so foreground touching the border is not eaten away.
func erode(src *image.Gray, kw, kh int) *image.Gray {
	return morph(src, kw, kh, func(acc, v uint8) uint8 {
		if v < acc {
			return v
		}
		return acc
	}, 255)
}

func morph(src *image.Gray, kw, kh int, pick func(acc, v uint8) uint8, init uint8) *image.Gray {
	if kw < 1 {
		kw = 1
	}
	if kh < 1 {
		kh = 1
	}
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))
	ax, ay := kw/2, kh/2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			acc := init
			for ky := 0; ky < kh; ky++ {
				sy := y + ky - ay
				if sy < 0 || sy >= height {
					continue
				}
				for kx := 0; kx < kw; kx++ {
					sx := x + kx - ax
					if sx < 0 || sx >= width {
						continue
					}
					acc = pick(acc, src.Pix[sy*src.Stride+sx])
				}
			}
			dst.Pix[y*dst.Stride+x] = acc
		}
	}
	return dst
}
