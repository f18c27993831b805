// Package fat locates file contents inside a FAT32 filesystem without copying them.
package fat

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/diskfs/go-diskfs/util"
)

// ErrReadOnly is returned by every write to a filesystem opened by this package.
var ErrReadOnly = errors.New("filesystem is read-only")

// Reader is the view of a partition the filesystem is read from.
type Reader interface {
	io.ReaderAt
	io.Seeker
}

// FileSection returns the offset, relative to the start of r, and the size of the
// contiguous contents of the file at path. size is the size of the partition.
func FileSection(r Reader, size, blocksize int64, path string) (int64, int64, error) {
	var fsFile util.File = &readOnly{r}
	fs, err := fat32.Read(fsFile, size, 0, blocksize)
	if err != nil {
		return 0, 0, fmt.Errorf("reading FAT32 filesystem: %w", err)
	}
	file, err := fs.OpenFile(path, os.O_RDONLY)
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()
	fat32File, ok := file.(*fat32.File)
	if !ok {
		return 0, 0, fmt.Errorf("opening %s: unexpected file type %T", path, file)
	}
	return fat32File.GetContentSection()
}

type readOnly struct {
	Reader
}

func (readOnly) WriteAt([]byte, int64) (int, error) {
	return 0, ErrReadOnly
}
