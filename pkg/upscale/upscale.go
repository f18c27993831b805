// Package upscale enlarges small extracted icons so they stay legible when shown
// at larger sizes.
package upscale

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/malt3/peicon/pkg/iconerr"
	"github.com/malt3/peicon/pkg/logging"
	"github.com/malt3/peicon/pkg/raster"
	"golang.org/x/image/draw"
)

const (
	// SmallIconThreshold is the file size below which an extracted icon is
	// considered low resolution.
	SmallIconThreshold = 5 * 1024
	// MinDimension is the edge length below which an image gets enlarged.
	MinDimension = 128
	// MaxTarget caps the edge length of an enlarged image.
	MaxTarget = 256

	scaleFactor = 8
	suffix      = "_upscaled.png"
)

// Upscaler enlarges and sharpens small icons.
type Upscaler struct {
	log     logging.Logger
	sharpen func(*raster.Image) (*raster.Image, error)
}

// Option configures an Upscaler.
type Option func(*Upscaler)

// WithLogger sets the logger used for recoverable failures.
func WithLogger(l logging.Logger) Option {
	return func(u *Upscaler) {
		if l != nil {
			u.log = l
		}
	}
}

// New creates an Upscaler. Without options it logs nothing.
func New(opts ...Option) *Upscaler {
	u := &Upscaler{log: logging.Discard, sharpen: Sharpen}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// NeedsUpscale reports whether the file at path exists and is smaller than
// SmallIconThreshold.
func NeedsUpscale(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Size() < SmallIconThreshold
}

// Target returns the square edge length an image of the given size is scaled to,
// or 0 if it is large enough already.
func Target(width, height int) int {
	if width >= MinDimension && height >= MinDimension {
		return 0
	}
	return min(MaxTarget, max(width, height)*scaleFactor)
}

// Upscale resamples img to a Target x Target square with a Catmull-Rom kernel and
// sharpens the result. Images that are large enough are returned unchanged.
// If sharpening fails the resampled image is returned.
func (u *Upscaler) Upscale(img *raster.Image) *raster.Image {
	target := Target(img.Width, img.Height)
	if target == 0 {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, target, target))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img.NRGBA(), image.Rect(0, 0, img.Width, img.Height), draw.Src, nil)
	scaled := &raster.Image{Width: target, Height: target, Pix: dst.Pix}

	sharp, err := u.sharpen(scaled)
	if err != nil {
		u.log.Warnf("sharpening %dx%d icon: %v", target, target, err)
		return scaled
	}
	return sharp
}

// UpscaleFile decodes the icon at path (PNG, ICO or BMP), upscales it and writes the
// result as PNG to <stem>_upscaled.png next to it. Icons that are large enough
// already yield path itself.
func (u *Upscaler) UpscaleFile(path string) (string, error) {
	img, err := readImage(path)
	if err != nil {
		return "", err
	}
	out := u.Upscale(img)
	if out == img {
		u.log.Infof("%s is %dx%d, not upscaling", path, img.Width, img.Height)
		return path, nil
	}

	outPath := OutputPath(path)
	if err := raster.WriteFile(outPath, out); err != nil {
		return "", err
	}
	u.log.Infof("upscaled %s from %dx%d to %dx%d", path, img.Width, img.Height, out.Width, out.Height)
	return outPath, nil
}

// OutputPath returns the path UpscaleFile writes to for the given input.
func OutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}

func readImage(path string) (*raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening icon file: %w", iconerr.ErrIO, err)
	}
	defer f.Close()
	img, err := raster.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", iconerr.ErrDecode, path, err)
	}
	return img, nil
}
