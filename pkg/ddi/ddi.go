// Package ddi reads executables stored on the EFI system partition of a raw
// GPT disk image, such as a unified kernel image on a discoverable disk image.
package ddi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/malt3/peicon/pkg/fat"
	"github.com/malt3/peicon/pkg/gpt"
)

// DefaultBootPath is the removable-media boot loader path on x86-64.
const DefaultBootPath = "/EFI/BOOT/BOOTX64.EFI"

type Image struct {
	path      string
	file      *os.File
	blocksize int64
}

// Open opens the disk image at imagePath read-only.
// blocksize is the blocksize of the image (usually 512, use 0 to enable autodetection).
func Open(imagePath string, blocksize int64) (*Image, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("opening image file: %w", err)
	}
	if blocksize == 0 {
		blocksize, err = learnBlocksize(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("learning blocksize: %w", err)
		}
	}
	return &Image{
		path:      imagePath,
		file:      file,
		blocksize: blocksize,
	}, nil
}

func (i *Image) Close() error {
	return i.file.Close()
}

// Blocksize returns the configured or detected blocksize.
func (i *Image) Blocksize() int64 {
	return i.blocksize
}

// FileSection returns a reader over the contents of the file at path inside the
// EFI system partition. An empty path selects DefaultBootPath.
func (i *Image) FileSection(path string) (*io.SectionReader, error) {
	if path == "" {
		path = DefaultBootPath
	}
	esp, err := gpt.EFIPartitionSection(i.path)
	if err != nil {
		return nil, fmt.Errorf("getting EFI partition section: %w", err)
	}

	efiPartition := io.NewSectionReader(i.file, esp.Start, esp.Size)

	fileContentOffset, fileContentSize, err := fat.FileSection(efiPartition, esp.Size, i.blocksize, path)
	if err != nil {
		return nil, fmt.Errorf("getting file content section within EFI partition: %w", err)
	}
	return io.NewSectionReader(i.file, esp.Start+fileContentOffset, fileContentSize), nil
}

func learnBlocksize(r io.ReaderAt) (int64, error) {
	buf := make([]byte, 8)

	for bs := int64(512); bs <= 4096; bs *= 2 {
		_, err := r.ReadAt(buf, bs)
		if err != nil {
			return 0, err
		}
		if slices.Equal(buf, []byte("EFI PART")) {
			return bs, nil
		}
	}
	return 0, errors.New("blocksize not found")
}
