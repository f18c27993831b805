// Package testpe builds small PE images with a resource section for tests.
package testpe

import (
	"encoding/binary"
	"hash/crc32"
	"sort"
)

// Fixed layout of the generated images.
const (
	NTOffset       = 0x40
	OptionalSize   = 224
	SectionTable   = NTOffset + 24 + OptionalSize
	TextRVA        = 0x1000
	TextFileOffset = 0x200
	RsrcRVA        = 0x2000
	RsrcFileOffset = 0x400

	fileAlignment = 0x200
)

// Resource types used by icons.
const (
	TypeIcon      = 3
	TypeGroupIcon = 14
)

// Resource is a single leaf of the resource tree.
type Resource struct {
	Type uint32
	ID   uint32
	Lang uint32
	Data []byte
}

// Options tweak the generated image.
type Options struct {
	// RsrcName overrides the ".rsrc" section name.
	RsrcName string
	// NoDataDirectory leaves the resource data directory empty.
	NoDataDirectory bool
}

// Build returns a PE32 image with a .text section and a resource section
// holding resources.
func Build(resources []Resource) []byte {
	return BuildWithOptions(resources, Options{})
}

// BuildWithOptions is Build with Options.
func BuildWithOptions(resources []Resource, opts Options) []byte {
	rsrc := Section(resources)
	rsrcRaw := align(len(rsrc), fileAlignment)
	if rsrcRaw == 0 {
		rsrcRaw = fileAlignment
	}
	out := make([]byte, RsrcFileOffset+rsrcRaw)

	out[0], out[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(out[0x3c:], NTOffset)

	nt := out[NTOffset:]
	copy(nt, "PE\x00\x00")
	fh := nt[4:]
	binary.LittleEndian.PutUint16(fh[0:], 0x14c) // i386
	binary.LittleEndian.PutUint16(fh[2:], 2)
	binary.LittleEndian.PutUint16(fh[16:], OptionalSize)
	binary.LittleEndian.PutUint16(fh[18:], 0x0102)

	opt := nt[24:]
	binary.LittleEndian.PutUint16(opt[0:], 0x10b)
	binary.LittleEndian.PutUint32(opt[28:], 0x400000)       // ImageBase
	binary.LittleEndian.PutUint32(opt[32:], 0x1000)         // SectionAlignment
	binary.LittleEndian.PutUint32(opt[36:], fileAlignment)  // FileAlignment
	binary.LittleEndian.PutUint32(opt[56:], RsrcRVA+0x1000) // SizeOfImage
	binary.LittleEndian.PutUint32(opt[60:], TextFileOffset) // SizeOfHeaders
	binary.LittleEndian.PutUint16(opt[68:], 2)              // Subsystem
	binary.LittleEndian.PutUint32(opt[92:], 16)             // NumberOfRvaAndSizes
	if !opts.NoDataDirectory {
		binary.LittleEndian.PutUint32(opt[96+2*8:], RsrcRVA)
		binary.LittleEndian.PutUint32(opt[96+2*8+4:], uint32(len(rsrc)))
	}

	name := opts.RsrcName
	if name == "" {
		name = ".rsrc"
	}
	putSection(out[SectionTable:], ".text", TextRVA, 0x10, TextFileOffset, fileAlignment)
	putSection(out[SectionTable+40:], name, RsrcRVA, uint32(rsrcRaw), RsrcFileOffset, uint32(rsrcRaw))

	copy(out[RsrcFileOffset:], rsrc)
	return out
}

func putSection(b []byte, name string, va, vsize, raw, rawSize uint32) {
	copy(b[:8], name)
	binary.LittleEndian.PutUint32(b[8:], vsize)
	binary.LittleEndian.PutUint32(b[12:], va)
	binary.LittleEndian.PutUint32(b[16:], rawSize)
	binary.LittleEndian.PutUint32(b[20:], raw)
	binary.LittleEndian.PutUint32(b[36:], 0x40000040) // initialized data, readable
}

type node struct {
	id       uint32
	children []*node
	data     []byte
}

func (n *node) child(id uint32) *node {
	for _, c := range n.children {
		if c.id == id {
			return c
		}
	}
	c := &node{id: id}
	n.children = append(n.children, c)
	return c
}

// Section serializes resources into the bytes of a resource section mapped at RsrcRVA.
// Directories come first, then data entries, then the 4-byte aligned payloads.
func Section(resources []Resource) []byte {
	root := &node{}
	for _, r := range resources {
		root.child(r.Type).child(r.ID).child(r.Lang).data = r.Data
	}
	sortTree(root)

	// assign offsets: directories breadth first, then data entries, then data
	offsets := map[*node]int{}
	pos := 0
	var dirs, leaves []*node
	queue := []*node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.children == nil && n != root {
			leaves = append(leaves, n)
			continue
		}
		dirs = append(dirs, n)
		offsets[n] = pos
		pos += 16 + 8*len(n.children)
		queue = append(queue, n.children...)
	}
	for _, l := range leaves {
		offsets[l] = pos
		pos += 16
	}
	dataOffsets := map[*node]int{}
	for _, l := range leaves {
		pos = align(pos, 4)
		dataOffsets[l] = pos
		pos += len(l.data)
	}

	out := make([]byte, align(pos, 4))
	for _, d := range dirs {
		b := out[offsets[d]:]
		binary.LittleEndian.PutUint16(b[14:], uint16(len(d.children)))
		for i, c := range d.children {
			e := b[16+8*i:]
			binary.LittleEndian.PutUint32(e, c.id)
			off := uint32(offsets[c])
			if c.children != nil {
				off |= 0x80000000
			}
			binary.LittleEndian.PutUint32(e[4:], off)
		}
	}
	for _, l := range leaves {
		b := out[offsets[l]:]
		binary.LittleEndian.PutUint32(b, uint32(RsrcRVA+dataOffsets[l]))
		binary.LittleEndian.PutUint32(b[4:], uint32(len(l.data)))
		copy(out[dataOffsets[l]:], l.data)
	}
	return out
}

func sortTree(n *node) {
	sort.SliceStable(n.children, func(i, j int) bool { return n.children[i].id < n.children[j].id })
	for _, c := range n.children {
		sortTree(c)
	}
}

func align(n, a int) int {
	return (n + a - 1) / a * a
}

// GroupEntry describes one candidate in a group icon resource.
type GroupEntry struct {
	Width, Height uint8
	BitCount      uint16
	ByteLength    uint32
	ID            uint16
}

// GroupIcon serializes a group icon resource of type 1 (icon).
func GroupIcon(entries []GroupEntry) []byte {
	out := make([]byte, 6+14*len(entries))
	binary.LittleEndian.PutUint16(out[2:], 1)
	binary.LittleEndian.PutUint16(out[4:], uint16(len(entries)))
	for i, e := range entries {
		b := out[6+14*i:]
		b[0] = e.Width
		b[1] = e.Height
		binary.LittleEndian.PutUint16(b[4:], 1)
		binary.LittleEndian.PutUint16(b[6:], e.BitCount)
		binary.LittleEndian.PutUint32(b[8:], e.ByteLength)
		binary.LittleEndian.PutUint16(b[12:], e.ID)
	}
	return out
}

// DIB32 returns a 32 bpp icon bitmap (info header, BGRA rows bottom-up, AND mask)
// where every pixel is the given straight RGBA color.
func DIB32(width, height int, r, g, b, a byte) []byte {
	xorStride := width * 4
	andStride := (width + 31) / 32 * 4
	out := make([]byte, 40+xorStride*height+andStride*height)
	putInfoHeader(out, width, height, 32, 0)
	px := out[40:]
	for i := 0; i < width*height; i++ {
		px[i*4+0] = b
		px[i*4+1] = g
		px[i*4+2] = r
		px[i*4+3] = a
	}
	return out
}

// InfoHeader writes a 40-byte BITMAPINFOHEADER with the doubled icon height.
func InfoHeader(width, height, bpp, colors int) []byte {
	out := make([]byte, 40)
	putInfoHeader(out, width, height, bpp, colors)
	return out
}

func putInfoHeader(b []byte, width, height, bpp, colors int) {
	binary.LittleEndian.PutUint32(b[0:], 40)
	binary.LittleEndian.PutUint32(b[4:], uint32(int32(width)))
	binary.LittleEndian.PutUint32(b[8:], uint32(int32(height*2)))
	binary.LittleEndian.PutUint16(b[12:], 1)
	binary.LittleEndian.PutUint16(b[14:], uint16(bpp))
	binary.LittleEndian.PutUint32(b[32:], uint32(colors))
}

// PNGHeader returns a PNG stream holding only the signature, an IHDR claiming
// width x height 8-bit RGBA pixels and IEND.
func PNGHeader(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], width)
	binary.BigEndian.PutUint32(ihdr[4:], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha
	out := []byte("\x89PNG\r\n\x1a\n")
	out = appendChunk(out, "IHDR", ihdr)
	return appendChunk(out, "IEND", nil)
}

func appendChunk(out []byte, typ string, data []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	start := len(out)
	out = append(out, typ...)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[start:]))
}
