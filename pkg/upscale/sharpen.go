package upscale

import (
	"fmt"

	"github.com/malt3/peicon/pkg/raster"
)

var sharpenKernel = [3][3]int{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Sharpen convolves every channel, alpha included, with a 3x3 sharpening kernel.
// Neighbours outside the image repeat the nearest edge pixel.
func Sharpen(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("sharpening: %w", err)
	}
	w, h := img.Width, img.Height
	out := make([]byte, len(img.Pix))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [4]int
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					k := sharpenKernel[ky+1][kx+1]
					if k == 0 {
						continue
					}
					i := (clamp(y+ky, 0, h-1)*w + clamp(x+kx, 0, w-1)) * 4
					for c := 0; c < 4; c++ {
						acc[c] += k * int(img.Pix[i+c])
					}
				}
			}
			o := (y*w + x) * 4
			for c := 0; c < 4; c++ {
				out[o+c] = byte(clamp(acc[c], 0, 255))
			}
		}
	}
	return &raster.Image{Width: w, Height: h, Pix: out}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
