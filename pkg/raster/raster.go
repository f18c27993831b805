// Package raster holds decoded icon pixels and converts them to and from image.Image.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/malt3/peicon/pkg/iconerr"
)

// MaxDimension bounds the width and height of any decoded icon.
const MaxDimension = 4096

// CheckSize rejects dimensions that are not positive or exceed MaxDimension.
func CheckSize(width, height int) error {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: image size %dx%d outside 1..%d", iconerr.ErrDecode, width, height, MaxDimension)
	}
	return nil
}

// Image is a straight (non-premultiplied) RGBA pixel buffer, rows top to bottom.
// It is not modified after construction.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New wraps pix as an image, checking that it holds width*height RGBA pixels.
func New(width, height int, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel buffer holds %d bytes, want %d", len(pix), width*height*4)
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

// Validate reports whether the buffer size matches the dimensions.
func (m *Image) Validate() error {
	if m == nil {
		return errors.New("nil image")
	}
	_, err := New(m.Width, m.Height, m.Pix)
	return err
}

// At returns the RGBA quartet of pixel (x, y).
func (m *Image) At(x, y int) [4]byte {
	i := (y*m.Width + x) * 4
	return [4]byte{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}

// NRGBA exposes the buffer as an *image.NRGBA sharing the pixel memory.
func (m *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    m.Pix,
		Stride: m.Width * 4,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}
}

// FromImage copies any image.Image into a new buffer.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && n.Stride == b.Dx()*4 && b.Min == (image.Point{}) {
		pix := make([]byte, len(n.Pix[:b.Dy()*n.Stride]))
		copy(pix, n.Pix)
		return &Image{Width: b.Dx(), Height: b.Dy(), Pix: pix}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Image{Width: b.Dx(), Height: b.Dy(), Pix: dst.Pix}
}
