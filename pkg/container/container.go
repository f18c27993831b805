// Package container parses the headers and section table of a PE file.
// Nothing beyond the section table and the optional header's data directories
// is interpreted.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/malt3/peicon/pkg/iconerr"
)

const (
	dosHeaderSize     = 64
	lfanewOffset      = 0x3c
	peSignatureSize   = 4
	fileHeaderSize    = 20
	sectionHeaderSize = 40

	magicPE32     = 0x10b
	magicPE32Plus = 0x20b

	// index of the resource table in the data directory array
	resourceDirectoryIndex = 2
)

// ErrNotMapped is returned by Translate for an RVA outside every section.
var ErrNotMapped = fmt.Errorf("%w: rva not mapped by any section", iconerr.ErrFormat)

// Section is one entry of the section table.
type Section struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
	RawOffset      uint32
	RawSize        uint32
}

// Contains reports whether rva lies in [VirtualAddress, VirtualAddress+VirtualSize).
func (s Section) Contains(rva uint32) bool {
	return rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(s.VirtualSize)
}

// Layout is the parsed container: the section table in file order plus the
// resource data directory, if the optional header declares one.
type Layout struct {
	Sections []Section
	// Size is the size of the underlying file.
	Size int64
	// Is64 is set for PE32+ images.
	Is64         bool
	ResourceRVA  uint32
	ResourceSize uint32
}

// Open reads the DOS stub, the NT headers and the section table from r.
// size is the total size of the file behind r.
func Open(r io.ReaderAt, size int64) (*Layout, error) {
	if size < dosHeaderSize {
		return nil, fmt.Errorf("%w: file too small for a DOS header (%d bytes)", iconerr.ErrFormat, size)
	}
	dos := make([]byte, dosHeaderSize)
	if err := ReadFull(r, dos, 0); err != nil {
		return nil, fmt.Errorf("reading DOS header: %w", err)
	}
	if dos[0] != 'M' || dos[1] != 'Z' {
		return nil, fmt.Errorf("%w: missing MZ signature", iconerr.ErrFormat)
	}

	ntOffset := int64(binary.LittleEndian.Uint32(dos[lfanewOffset:]))
	if ntOffset+peSignatureSize+fileHeaderSize > size {
		return nil, fmt.Errorf("%w: NT header offset 0x%x outside file", iconerr.ErrFormat, ntOffset)
	}
	nt := make([]byte, peSignatureSize+fileHeaderSize)
	if err := ReadFull(r, nt, ntOffset); err != nil {
		return nil, fmt.Errorf("reading NT header: %w", err)
	}
	if string(nt[:peSignatureSize]) != "PE\x00\x00" {
		return nil, fmt.Errorf("%w: missing PE signature at 0x%x", iconerr.ErrFormat, ntOffset)
	}
	fh := nt[peSignatureSize:]
	numSections := int64(binary.LittleEndian.Uint16(fh[2:]))
	optSize := int64(binary.LittleEndian.Uint16(fh[16:]))

	layout := &Layout{Size: size}
	optOffset := ntOffset + peSignatureSize + fileHeaderSize
	if err := layout.readOptionalHeader(r, optOffset, optSize); err != nil {
		return nil, err
	}

	tableOffset := optOffset + optSize
	tableSize := numSections * sectionHeaderSize
	if tableOffset+tableSize > size {
		return nil, fmt.Errorf("%w: section table (%d sections at 0x%x) outside file", iconerr.ErrFormat, numSections, tableOffset)
	}
	table := make([]byte, tableSize)
	if err := ReadFull(r, table, tableOffset); err != nil {
		return nil, fmt.Errorf("reading section table: %w", err)
	}
	layout.Sections = make([]Section, 0, numSections)
	for i := int64(0); i < numSections; i++ {
		layout.Sections = append(layout.Sections, parseSection(table[i*sectionHeaderSize:]))
	}
	return layout, nil
}

// readOptionalHeader records the bitness and the resource data directory.
// A missing or truncated optional header is not an error: resources are
// primarily located by section name.
func (l *Layout) readOptionalHeader(r io.ReaderAt, offset, size int64) error {
	if size < 2 {
		return nil
	}
	if offset+size > l.Size {
		return fmt.Errorf("%w: optional header outside file", iconerr.ErrFormat)
	}
	opt := make([]byte, size)
	if err := ReadFull(r, opt, offset); err != nil {
		return fmt.Errorf("reading optional header: %w", err)
	}

	var countOffset int64
	switch binary.LittleEndian.Uint16(opt) {
	case magicPE32:
		countOffset = 92
	case magicPE32Plus:
		l.Is64 = true
		countOffset = 108
	default:
		return nil
	}
	if countOffset+4 > size {
		return nil
	}
	count := int64(binary.LittleEndian.Uint32(opt[countOffset:]))
	dir := countOffset + 4 + resourceDirectoryIndex*8
	if count <= resourceDirectoryIndex || dir+8 > size {
		return nil
	}
	l.ResourceRVA = binary.LittleEndian.Uint32(opt[dir:])
	l.ResourceSize = binary.LittleEndian.Uint32(opt[dir+4:])
	return nil
}

func parseSection(b []byte) Section {
	return Section{
		Name:           strings.TrimRight(string(b[:8]), "\x00"),
		VirtualSize:    binary.LittleEndian.Uint32(b[8:]),
		VirtualAddress: binary.LittleEndian.Uint32(b[12:]),
		RawSize:        binary.LittleEndian.Uint32(b[16:]),
		RawOffset:      binary.LittleEndian.Uint32(b[20:]),
	}
}

// Translate maps an RVA to a file offset through the first section containing it.
func (l *Layout) Translate(rva uint32) (int64, error) {
	for _, s := range l.Sections {
		if s.Contains(rva) {
			return int64(s.RawOffset) + int64(rva-s.VirtualAddress), nil
		}
	}
	return 0, fmt.Errorf("%w (0x%x)", ErrNotMapped, rva)
}

// Section returns the first section with the given name.
func (l *Layout) Section(name string) (Section, bool) {
	for _, s := range l.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// SectionFor returns the first section containing rva.
func (l *Layout) SectionFor(rva uint32) (Section, bool) {
	for _, s := range l.Sections {
		if s.Contains(rva) {
			return s, true
		}
	}
	return Section{}, false
}

// ReadFull reads exactly len(p) bytes at off. A short read is an I/O failure.
func ReadFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %w", iconerr.ErrIO, err)
}

