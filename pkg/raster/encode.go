package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/malt3/peicon/pkg/iconerr"
	ico "github.com/sergeymakinen/go-ico"
	"golang.org/x/image/bmp"
)

// Format is an on-disk image encoding.
type Format int

const (
	PNG Format = iota
	ICO
	BMP
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case ICO:
		return "ico"
	case BMP:
		return "bmp"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// FormatFromPath picks the format from the file extension, defaulting to PNG.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ico":
		return ICO
	case ".bmp":
		return BMP
	}
	return PNG
}

// Encode writes m to w in format f.
func Encode(w io.Writer, m *Image, f Format) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("encoding %s: %w", f, err)
	}
	img := m.NRGBA()
	switch f {
	case PNG:
		return png.Encode(w, img)
	case ICO:
		return ico.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("unsupported format %s", f)
}

// WriteFile encodes m into a new file at path, in the format its extension names.
func WriteFile(path string, m *Image) (retErr error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", iconerr.ErrIO, err)
	}
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("%w: closing %s: %w", iconerr.ErrIO, path, err)
		}
	}()
	if err := Encode(f, m, FormatFromPath(path)); err != nil {
		return fmt.Errorf("%w: writing %s: %w", iconerr.ErrIO, path, err)
	}
	return nil
}

// Decode reads a PNG, ICO or BMP file. The header is checked against
// MaxDimension before any pixels are allocated.
func Decode(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := CheckSize(cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	return FromImage(img), nil
}
