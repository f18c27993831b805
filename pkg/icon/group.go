// Package icon reads icon groups out of a resource tree, picks the best
// candidate and decodes its pixels.
package icon

import (
	"encoding/binary"
	"fmt"

	"github.com/malt3/peicon/pkg/iconerr"
	"github.com/malt3/peicon/pkg/rsrc"
)

// Resource type ids.
const (
	TypeIcon      = 3
	TypeGroupIcon = 14
)

const (
	groupHeaderSize = 6
	groupEntrySize  = 14

	resourceTypeIcon = 1
)

// GroupEntry describes one candidate image of an icon group.
type GroupEntry struct {
	Width      int
	Height     int
	ColorCount int
	Planes     uint16
	BitCount   uint16
	ByteLength uint32
	// ID is the id of the icon resource holding the image.
	ID uint16
}

// Group is the ordered list of candidates of a group icon resource.
type Group struct {
	Entries []GroupEntry
}

// ParseGroup decodes the bytes of a group icon resource.
func ParseGroup(data []byte) (*Group, error) {
	if len(data) < groupHeaderSize {
		return nil, fmt.Errorf("%w: icon group needs %d bytes, got %d", iconerr.ErrFormat, groupHeaderSize, len(data))
	}
	typ := binary.LittleEndian.Uint16(data[2:])
	count := int(binary.LittleEndian.Uint16(data[4:]))
	if typ != resourceTypeIcon {
		return nil, fmt.Errorf("%w: group resource type %d is not an icon", iconerr.ErrFormat, typ)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: icon group has no entries", iconerr.ErrFormat)
	}
	if need := groupHeaderSize + count*groupEntrySize; len(data) < need {
		return nil, fmt.Errorf("%w: icon group of %d entries needs %d bytes, got %d", iconerr.ErrFormat, count, need, len(data))
	}

	g := &Group{Entries: make([]GroupEntry, 0, count)}
	for i := 0; i < count; i++ {
		b := data[groupHeaderSize+i*groupEntrySize:]
		g.Entries = append(g.Entries, GroupEntry{
			Width:      dimension(b[0]),
			Height:     dimension(b[1]),
			ColorCount: int(b[2]),
			Planes:     binary.LittleEndian.Uint16(b[4:]),
			BitCount:   binary.LittleEndian.Uint16(b[6:]),
			ByteLength: binary.LittleEndian.Uint32(b[8:]),
			ID:         binary.LittleEndian.Uint16(b[12:]),
		})
	}
	return g, nil
}

// dimension maps the stored 0 to 256.
func dimension(b byte) int {
	if b == 0 {
		return 256
	}
	return int(b)
}

// LoadGroup reads the first icon group of the file: first name, first language.
func LoadGroup(w *rsrc.Walker) (*Group, error) {
	data, err := w.First(TypeGroupIcon)
	if err != nil {
		return nil, fmt.Errorf("loading icon group: %w", err)
	}
	return ParseGroup(data)
}

// LoadImageData reads the icon resource referenced by e.
func LoadImageData(w *rsrc.Walker, e GroupEntry) ([]byte, error) {
	data, err := w.Lookup(TypeIcon, uint32(e.ID))
	if err != nil {
		return nil, fmt.Errorf("loading icon %d: %w", e.ID, err)
	}
	return data, nil
}
