package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/malt3/peicon/pkg/ddi"
	"github.com/spf13/cobra"
)

// source is an executable opened from the local filesystem or from the EFI
// system partition of a disk image.
type source struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer
}

func (s *source) Close() error {
	return s.closer.Close()
}

type sourceFlags struct {
	diskImage string
	blocksize int64
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.diskImage, "disk-image", "d", "", "read the executable from the EFI system partition of this raw disk image")
	cmd.Flags().Int64VarP(&f.blocksize, "blocksize", "b", 0, "blocksize of the disk image (0 to autodetect)")
}

func (f *sourceFlags) open(path string) (*source, error) {
	if f.diskImage == "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		return &source{r: file, size: info.Size(), closer: file}, nil
	}

	image, err := ddi.Open(f.diskImage, f.blocksize)
	if err != nil {
		return nil, err
	}
	sec, err := image.FileSection(path)
	if err != nil {
		image.Close()
		return nil, fmt.Errorf("finding %s in %s: %w", path, f.diskImage, err)
	}
	logger.Infof("reading %s from %s (blocksize %d)", path, f.diskImage, image.Blocksize())
	return &source{r: sec, size: sec.Size(), closer: image}, nil
}
