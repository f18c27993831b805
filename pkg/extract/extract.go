// Package extract is the entry point for pulling the application icon out of a
// Windows executable. Every operation is synchronous and opens its own file handle.
package extract

import (
	"fmt"
	"io"
	"os"

	"github.com/malt3/peicon/pkg/icon"
	"github.com/malt3/peicon/pkg/iconerr"
	"github.com/malt3/peicon/pkg/logging"
	"github.com/malt3/peicon/pkg/raster"
	"github.com/malt3/peicon/pkg/rsrc"
	"github.com/malt3/peicon/pkg/upscale"
)

// Extractor runs the extraction pipeline. It holds no per-call state and is safe
// for concurrent use.
type Extractor struct {
	log      logging.Logger
	upscaler *upscale.Upscaler
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger routes diagnostics to l.
func WithLogger(l logging.Logger) Option {
	return func(x *Extractor) {
		if l != nil {
			x.log = l
		}
	}
}

// New creates an Extractor. Without options it logs nothing.
func New(opts ...Option) *Extractor {
	x := &Extractor{log: logging.Discard}
	for _, opt := range opts {
		opt(x)
	}
	x.upscaler = upscale.New(upscale.WithLogger(x.log))
	return x
}

// HasIcon reports whether the executable at path carries a non-empty icon group.
// Any failure counts as false.
func (x *Extractor) HasIcon(path string) bool {
	var found bool
	err := withFile(path, func(r io.ReaderAt, size int64) error {
		w, err := rsrc.Open(r, size)
		if err != nil {
			return err
		}
		if _, err := icon.LoadGroup(w); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		x.log.Infof("%s has no icon: %v", path, err)
	}
	return found
}

// ExtractIconToImage decodes the best icon of the executable at path.
func (x *Extractor) ExtractIconToImage(path string) (*raster.Image, error) {
	var img *raster.Image
	err := withFile(path, func(r io.ReaderAt, size int64) error {
		var err error
		img, err = x.ExtractFrom(r, size)
		return err
	})
	if err != nil {
		x.log.Errorf("extracting icon from %s: %v", path, err)
		return nil, err
	}
	return img, nil
}

// ExtractFrom runs the pipeline on an executable held by r.
func (x *Extractor) ExtractFrom(r io.ReaderAt, size int64) (*raster.Image, error) {
	w, err := rsrc.Open(r, size)
	if err != nil {
		return nil, err
	}
	group, err := icon.LoadGroup(w)
	if err != nil {
		return nil, err
	}
	best, ok := icon.Select(group)
	if !ok {
		return nil, fmt.Errorf("%w: icon group has no entries", iconerr.ErrResourceNotFound)
	}
	x.log.Infof("selected %dx%d %d bpp icon %d out of %d", best.Width, best.Height, best.BitCount, best.ID, len(group.Entries))

	data, err := icon.LoadImageData(w, best)
	if err != nil {
		return nil, err
	}
	img, err := icon.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding icon %d: %w", best.ID, err)
	}
	return img, nil
}

// ExtractIconToFile writes the best icon of the executable at path to outputPath.
// The extension of outputPath picks the encoding: .ico, .bmp, PNG otherwise.
// It reports whether the file was written.
func (x *Extractor) ExtractIconToFile(path, outputPath string) bool {
	img, err := x.ExtractIconToImage(path)
	if err != nil {
		return false
	}
	if err := raster.WriteFile(outputPath, img); err != nil {
		x.log.Errorf("writing icon of %s: %v", path, err)
		return false
	}
	x.log.Infof("wrote %dx%d icon of %s to %s", img.Width, img.Height, path, outputPath)
	return true
}

// NeedsUpscale reports whether an extracted icon file is small enough to be worth
// upscaling.
func (x *Extractor) NeedsUpscale(iconPath string) bool {
	return upscale.NeedsUpscale(iconPath)
}

// Upscale enlarges the extracted icon at iconPath and returns the path of the
// result, iconPath itself when the icon is large enough, or "" on failure.
func (x *Extractor) Upscale(iconPath string) string {
	out, err := x.upscaler.UpscaleFile(iconPath)
	if err != nil {
		x.log.Errorf("upscaling %s: %v", iconPath, err)
		return ""
	}
	return out
}

func withFile(path string, fn func(r io.ReaderAt, size int64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", iconerr.ErrIO, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", iconerr.ErrIO, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", iconerr.ErrIO, path)
	}
	return fn(f, info.Size())
}

var std = New()

// HasIcon calls HasIcon on an Extractor that logs nothing.
func HasIcon(path string) bool { return std.HasIcon(path) }

// ExtractIconToImage calls ExtractIconToImage on an Extractor that logs nothing.
func ExtractIconToImage(path string) (*raster.Image, error) { return std.ExtractIconToImage(path) }

// ExtractIconToFile calls ExtractIconToFile on an Extractor that logs nothing.
func ExtractIconToFile(path, outputPath string) bool { return std.ExtractIconToFile(path, outputPath) }

// NeedsUpscale calls NeedsUpscale on an Extractor that logs nothing.
func NeedsUpscale(iconPath string) bool { return std.NeedsUpscale(iconPath) }

// Upscale calls Upscale on an Extractor that logs nothing.
func Upscale(iconPath string) string { return std.Upscale(iconPath) }
