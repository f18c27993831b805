// Package gpt finds partitions of a raw GPT disk image.
package gpt

import (
	"errors"
	"fmt"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition"
	"github.com/diskfs/go-diskfs/partition/gpt"
)

// ErrPartitionNotFound is returned when no partition has the requested type.
var ErrPartitionNotFound = errors.New("partition not found")

// Section is the byte range of a partition within the image.
type Section struct {
	Start int64
	Size  int64
}

// EFIPartitionSection returns the byte range of the EFI system partition.
func EFIPartitionSection(path string) (Section, error) {
	return PartitionSection(path, gpt.EFISystemPartition)
}

// PartitionSection returns the byte range of the first partition of type typ.
func PartitionSection(path string, typ gpt.Type) (Section, error) {
	disk, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return Section{}, fmt.Errorf("opening disk image: %w", err)
	}
	defer disk.File.Close()
	table, err := disk.GetPartitionTable()
	if err != nil {
		return Section{}, fmt.Errorf("reading partition table: %w", err)
	}
	part, err := findPartWithTypeGUID(table, typ)
	if err != nil {
		return Section{}, err
	}
	return Section{Start: part.GetStart(), Size: part.GetSize()}, nil
}

func findPartWithTypeGUID(table partition.Table, typ gpt.Type) (*gpt.Partition, error) {
	for _, part := range table.GetPartitions() {
		part, ok := part.(*gpt.Partition)
		if !ok {
			return nil, errors.New("partition table is not GPT")
		}
		if part.Type == typ {
			return part, nil
		}
	}
	return nil, fmt.Errorf("%w: type %s", ErrPartitionNotFound, typ)
}
