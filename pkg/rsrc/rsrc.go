// Package rsrc walks the resource directory tree of a PE file.
//
// The tree has exactly three meaningful levels: type, name or id, and language.
// Every offset read from the tree is checked against the resource section before
// it is followed, so malformed or looping trees end in an error instead of
// unbounded work.
package rsrc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/malt3/peicon/pkg/container"
	"github.com/malt3/peicon/pkg/iconerr"
)

// SectionName is the name of the section holding resources.
const SectionName = ".rsrc"

const (
	directoryHeaderSize = 16
	directoryEntrySize  = 8
	dataEntrySize       = 16

	highBit = 0x80000000
)

// Level is the depth of a directory in the resource tree.
type Level int

const (
	LevelType Level = iota + 1
	LevelName
	LevelLanguage
)

func (l Level) String() string {
	switch l {
	case LevelType:
		return "type"
	case LevelName:
		return "name"
	case LevelLanguage:
		return "language"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Section locates the resource section in the file.
type Section struct {
	// BaseRVA is the RVA of the resource section.
	BaseRVA uint32
	// FileOffset is where the resource section starts in the file.
	FileOffset int64
	// Size is the number of bytes of the section present in the file.
	Size int64
}

// Contains reports whether the absolute range [off, off+n) lies inside the section.
func (s Section) Contains(off, n int64) bool {
	return off >= s.FileOffset && n >= 0 && off+n <= s.FileOffset+s.Size
}

// Locate finds the resource section by name. Files that name it differently are
// served by the section containing the resource data directory.
func Locate(layout *container.Layout) (Section, error) {
	s, ok := layout.Section(SectionName)
	byDirectory := false
	if !ok && layout.ResourceRVA != 0 {
		s, ok = layout.SectionFor(layout.ResourceRVA)
		byDirectory = ok
	}
	if !ok {
		return Section{}, fmt.Errorf("%w: no resource section", iconerr.ErrResourceNotFound)
	}

	sec := Section{
		BaseRVA:    s.VirtualAddress,
		FileOffset: int64(s.RawOffset),
		Size:       int64(s.RawSize),
	}
	if sec.FileOffset >= layout.Size {
		return Section{}, fmt.Errorf("%w: resource section at 0x%x outside file", iconerr.ErrFormat, sec.FileOffset)
	}
	if sec.FileOffset+sec.Size > layout.Size {
		sec.Size = layout.Size - sec.FileOffset
	}
	if byDirectory && layout.ResourceRVA > s.VirtualAddress {
		// the data directory points into the middle of a shared section
		delta := int64(layout.ResourceRVA - s.VirtualAddress)
		if delta >= sec.Size {
			return Section{}, fmt.Errorf("%w: resource directory outside its section", iconerr.ErrFormat)
		}
		sec.BaseRVA = layout.ResourceRVA
		sec.FileOffset += delta
		sec.Size -= delta
	}
	return sec, nil
}

// Entry is one record of a resource directory.
type Entry struct {
	// ID is the numeric id, or the name string offset when Named is set.
	ID    uint32
	Named bool
	// IsDir distinguishes a subdirectory from a data entry.
	IsDir bool
	// Offset is relative to the start of the resource section.
	Offset uint32
}

// Directory is a decoded resource directory, entries in stored order.
type Directory struct {
	Level   Level
	Entries []Entry
}

// Find returns the first subdirectory entry with the numeric id.
func (d *Directory) Find(id uint32) (Entry, bool) {
	for _, e := range d.Entries {
		if !e.Named && e.ID == id && e.IsDir {
			return e, true
		}
	}
	return Entry{}, false
}

// DataEntry is a resource data description.
type DataEntry struct {
	RVA      uint32
	Size     uint32
	CodePage uint32
}

// Walker reads directories and data out of one resource section.
type Walker struct {
	r      io.ReaderAt
	layout *container.Layout
	sec    Section
}

// NewWalker returns a walker over the resource section sec of the file behind r.
func NewWalker(r io.ReaderAt, layout *container.Layout, sec Section) *Walker {
	return &Walker{r: r, layout: layout, sec: sec}
}

// Open parses the container behind r and returns a walker over its resource section.
func Open(r io.ReaderAt, size int64) (*Walker, error) {
	layout, err := container.Open(r, size)
	if err != nil {
		return nil, err
	}
	sec, err := Locate(layout)
	if err != nil {
		return nil, err
	}
	return NewWalker(r, layout, sec), nil
}

// Section returns the resource section the walker reads from.
func (w *Walker) Section() Section {
	return w.sec
}

// Layout returns the container layout the walker translates through.
func (w *Walker) Layout() *container.Layout {
	return w.layout
}

// Root reads the type-level directory at the start of the resource section.
func (w *Walker) Root() (*Directory, error) {
	return w.ReadDirectory(w.sec.FileOffset, LevelType)
}

// ReadDirectory reads the directory at the absolute file offset off.
func (w *Walker) ReadDirectory(off int64, level Level) (*Directory, error) {
	if level < LevelType || level > LevelLanguage {
		return nil, fmt.Errorf("%w: resource directory nested beyond %s level", iconerr.ErrFormat, LevelLanguage)
	}
	if !w.sec.Contains(off, directoryHeaderSize) {
		return nil, fmt.Errorf("%w: %s directory at 0x%x outside resource section", iconerr.ErrFormat, level, off)
	}
	header := make([]byte, directoryHeaderSize)
	if err := container.ReadFull(w.r, header, off); err != nil {
		return nil, fmt.Errorf("reading %s directory: %w", level, err)
	}
	count := int64(binary.LittleEndian.Uint16(header[12:])) + int64(binary.LittleEndian.Uint16(header[14:]))
	recordsOff := off + directoryHeaderSize
	if !w.sec.Contains(recordsOff, count*directoryEntrySize) {
		return nil, fmt.Errorf("%w: %d %s directory entries overrun resource section", iconerr.ErrFormat, count, level)
	}
	records := make([]byte, count*directoryEntrySize)
	if err := container.ReadFull(w.r, records, recordsOff); err != nil {
		return nil, fmt.Errorf("reading %s directory entries: %w", level, err)
	}

	dir := &Directory{Level: level, Entries: make([]Entry, 0, count)}
	for i := int64(0); i < count; i++ {
		rec := records[i*directoryEntrySize:]
		name := binary.LittleEndian.Uint32(rec)
		target := binary.LittleEndian.Uint32(rec[4:])
		e := Entry{
			ID:     name &^ highBit,
			Named:  name&highBit != 0,
			IsDir:  target&highBit != 0,
			Offset: target &^ highBit,
		}
		if int64(e.Offset) >= w.sec.Size {
			return nil, fmt.Errorf("%w: %s entry offset 0x%x beyond resource section size 0x%x", iconerr.ErrFormat, level, e.Offset, w.sec.Size)
		}
		dir.Entries = append(dir.Entries, e)
	}
	return dir, nil
}

// ReadDataEntry reads the data description at the absolute file offset off.
func (w *Walker) ReadDataEntry(off int64) (DataEntry, error) {
	if !w.sec.Contains(off, dataEntrySize) {
		return DataEntry{}, fmt.Errorf("%w: data entry at 0x%x outside resource section", iconerr.ErrFormat, off)
	}
	b := make([]byte, dataEntrySize)
	if err := container.ReadFull(w.r, b, off); err != nil {
		return DataEntry{}, fmt.Errorf("reading data entry: %w", err)
	}
	return DataEntry{
		RVA:      binary.LittleEndian.Uint32(b),
		Size:     binary.LittleEndian.Uint32(b[4:]),
		CodePage: binary.LittleEndian.Uint32(b[8:]),
	}, nil
}

// ReadData reads the bytes described by the data entry at the absolute file offset off.
func (w *Walker) ReadData(off int64) ([]byte, error) {
	de, err := w.ReadDataEntry(off)
	if err != nil {
		return nil, err
	}
	start, err := w.layout.Translate(de.RVA)
	if err != nil {
		return nil, fmt.Errorf("translating resource data: %w", err)
	}
	if start+int64(de.Size) > w.layout.Size {
		return nil, fmt.Errorf("%w: %d bytes of resource data at 0x%x outside file", iconerr.ErrFormat, de.Size, start)
	}
	data := make([]byte, de.Size)
	if err := container.ReadFull(w.r, data, start); err != nil {
		return nil, fmt.Errorf("reading resource data: %w", err)
	}
	return data, nil
}

// abs converts an entry offset into an absolute file offset.
func (w *Walker) abs(e Entry) int64 {
	return w.sec.FileOffset + int64(e.Offset)
}
