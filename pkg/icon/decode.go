package icon

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/malt3/peicon/pkg/dib"
	"github.com/malt3/peicon/pkg/iconerr"
	"github.com/malt3/peicon/pkg/raster"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G'}

// IsPNG reports whether an icon payload is an embedded PNG.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// Decode turns an icon resource payload into an RGBA raster.
// Embedded PNGs go through image/png, everything else is a legacy bitmap.
func Decode(data []byte) (*raster.Image, error) {
	if !IsPNG(data) {
		return dib.Decode(data)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: embedded png: %w", iconerr.ErrDecode, err)
	}
	if err := raster.CheckSize(cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("embedded png: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: embedded png: %w", iconerr.ErrDecode, err)
	}
	return raster.FromImage(img), nil
}
