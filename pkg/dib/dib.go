// Package dib decodes the device-independent bitmaps stored in icon resources.
//
// An icon bitmap is a BITMAPINFOHEADER followed by an optional color table, the
// color (XOR) plane and the 1 bpp transparency (AND) plane, without the file
// header of a .bmp file. The stored height covers both planes.
package dib

import (
	"encoding/binary"
	"fmt"

	"github.com/malt3/peicon/pkg/iconerr"
	"github.com/malt3/peicon/pkg/raster"
)

const (
	infoHeaderSize = 40
	// MaxDimension bounds width and visible height.
	MaxDimension = raster.MaxDimension
)

// InfoHeader is the BITMAPINFOHEADER of an icon bitmap.
type InfoHeader struct {
	Size        uint32
	Width       int32
	Height      int32
	Planes      uint16
	BitCount    uint16
	Compression uint32
	SizeImage   uint32
	ColorsUsed  uint32
}

// ReadInfoHeader parses the leading BITMAPINFOHEADER of data.
func ReadInfoHeader(data []byte) (InfoHeader, error) {
	if len(data) < infoHeaderSize {
		return InfoHeader{}, fmt.Errorf("%w: bitmap header needs %d bytes, got %d", iconerr.ErrDecode, infoHeaderSize, len(data))
	}
	h := InfoHeader{
		Size:        binary.LittleEndian.Uint32(data[0:]),
		Width:       int32(binary.LittleEndian.Uint32(data[4:])),
		Height:      int32(binary.LittleEndian.Uint32(data[8:])),
		Planes:      binary.LittleEndian.Uint16(data[12:]),
		BitCount:    binary.LittleEndian.Uint16(data[14:]),
		Compression: binary.LittleEndian.Uint32(data[16:]),
		SizeImage:   binary.LittleEndian.Uint32(data[20:]),
		ColorsUsed:  binary.LittleEndian.Uint32(data[32:]),
	}
	if h.Size < infoHeaderSize || int64(h.Size) > int64(len(data)) {
		return InfoHeader{}, fmt.Errorf("%w: bad bitmap header size %d", iconerr.ErrDecode, h.Size)
	}
	return h, nil
}

// Stride is the padded length of one row: ceil(width*bpp/32)*4 bytes.
func Stride(width, bpp int) int {
	return (width*bpp + 31) / 32 * 4
}

// Decode turns an icon bitmap into an RGBA raster.
func Decode(data []byte) (*raster.Image, error) {
	h, err := ReadInfoHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Compression != 0 {
		return nil, fmt.Errorf("%w: compressed bitmap (compression %d)", iconerr.ErrDecode, h.Compression)
	}
	width := int(h.Width)
	if width <= 0 || width > MaxDimension {
		return nil, fmt.Errorf("%w: bad bitmap width %d", iconerr.ErrDecode, h.Width)
	}
	bottomUp := h.Height > 0
	stored := int(h.Height)
	if !bottomUp {
		stored = -stored
	}
	height := stored / 2
	if height <= 0 || height > MaxDimension {
		return nil, fmt.Errorf("%w: bad bitmap height %d", iconerr.ErrDecode, h.Height)
	}

	bpp := int(h.BitCount)
	// tableLen counts the quads in the file, palette holds the ones an index can reach
	tableLen := int64(h.ColorsUsed)
	var palette [][4]byte
	switch bpp {
	case 1, 4, 8:
		if tableLen == 0 {
			tableLen = int64(1) << bpp
		}
		palette = make([][4]byte, min(tableLen, int64(1)<<bpp))
	case 24, 32:
		// a color table may precede true-color pixels; it is skipped
		if tableLen > 256 {
			return nil, fmt.Errorf("%w: bad color count %d", iconerr.ErrDecode, h.ColorsUsed)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", iconerr.ErrDecode, bpp)
	}

	off := int(h.Size)
	if int64(off)+tableLen*4 > int64(len(data)) {
		return nil, fmt.Errorf("%w: color table truncated", iconerr.ErrDecode)
	}
	for i := range palette {
		q := data[off+i*4:]
		palette[i] = [4]byte{q[2], q[1], q[0], 0xff}
	}
	off += int(tableLen) * 4

	xorStride := Stride(width, bpp)
	xorSize := xorStride * height
	if off+xorSize > len(data) {
		return nil, fmt.Errorf("%w: color plane truncated (%d of %d bytes)", iconerr.ErrDecode, len(data)-off, xorSize)
	}
	xor := data[off : off+xorSize]
	off += xorSize

	var and []byte
	andStride := Stride(width, 1)
	if bpp < 32 {
		andSize := andStride * height
		if off+andSize > len(data) {
			return nil, fmt.Errorf("%w: mask plane truncated (%d of %d bytes)", iconerr.ErrDecode, len(data)-off, andSize)
		}
		and = data[off : off+andSize]
	}

	pix := make([]byte, width*height*4)
	for row := 0; row < height; row++ {
		y := row
		if bottomUp {
			y = height - 1 - row
		}
		src := xor[row*xorStride : (row+1)*xorStride]
		dst := pix[y*width*4 : (y+1)*width*4]
		var mask []byte
		if and != nil {
			mask = and[row*andStride : (row+1)*andStride]
		}
		for x := 0; x < width; x++ {
			p := dst[x*4 : x*4+4]
			switch bpp {
			case 32:
				p[0], p[1], p[2], p[3] = src[x*4+2], src[x*4+1], src[x*4], src[x*4+3]
				continue
			case 24:
				p[0], p[1], p[2] = src[x*3+2], src[x*3+1], src[x*3]
			default:
				c := lookup(palette, index(src, x, bpp))
				p[0], p[1], p[2] = c[0], c[1], c[2]
			}
			if mask[x/8]>>(7-uint(x%8))&1 == 1 {
				p[3] = 0
			} else {
				p[3] = 0xff
			}
		}
	}
	return &raster.Image{Width: width, Height: height, Pix: pix}, nil
}

// index extracts the palette index of pixel x from a packed row.
func index(row []byte, x, bpp int) int {
	switch bpp {
	case 1:
		return int(row[x/8]>>(7-uint(x%8))) & 1
	case 4:
		if x%2 == 0 {
			return int(row[x/2] >> 4)
		}
		return int(row[x/2] & 0x0f)
	}
	return int(row[x])
}

// lookup returns black for indices beyond a short color table.
func lookup(palette [][4]byte, i int) [4]byte {
	if i < len(palette) {
		return palette[i]
	}
	return [4]byte{0, 0, 0, 0xff}
}
