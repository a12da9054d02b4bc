//go:build !js || !wasm

// Package backingstore is a demo-only memory-mapped byte buffer: the
// storage an allocator's offsets index into. internal/allocator never
// imports this package or anything like it — the allocator only ever hands
// out integers, and a caller decides separately what those integers mean
// against whatever buffer (GPU, mmap, plain slice) it owns.
package backingstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/offsetpool/meshpool/internal/allocator"
	allocerrors "github.com/offsetpool/meshpool/internal/errors"
)

// ErrOutOfBounds is returned when a read or write would cross the mapped
// region's end.
var ErrOutOfBounds = errors.New("backingstore: access out of bounds")

// Options configures a mapped Store.
type Options struct {
	// Path is the backing file. Created and truncated to Size if it does
	// not already exist at that size.
	Path string
	Size uint32
}

// Store is a single mmap'd region sized to match an allocator's capacity.
// It has no knowledge of the allocator's free/used bookkeeping; callers
// pass Offset/Size pairs derived from an allocator.Allocation themselves.
type Store struct {
	file *os.File
	data []byte
	size uint32
}

// Open mmaps opts.Path, creating and sizing it first if necessary.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("backingstore: path required")
	}

	if opts.Size == 0 {
		return nil, errors.New("backingstore: size required")
	}

	path := filepath.Clean(opts.Path)

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("backingstore: %w", allocerrors.SystemFailure("open "+path, err))
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("backingstore: %w", allocerrors.SystemFailure("stat "+path, err))
	}

	if uint32(info.Size()) != opts.Size {
		if err := file.Truncate(int64(opts.Size)); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("backingstore: %w", allocerrors.SystemFailure("truncate "+path, err))
		}
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(opts.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("backingstore: %w", allocerrors.SystemFailure("mmap "+path, err))
	}

	return &Store{file: file, data: data, size: opts.Size}, nil
}

// Size returns the mapped region's total byte length.
func (s *Store) Size() uint32 {
	return s.size
}

// WriteAllocation copies src into the mapped region starting at
// alloc.Offset. Only the region's bounds are checked; len(src) is not
// compared against the allocation's size.
func (s *Store) WriteAllocation(alloc allocator.Allocation, src []byte) error {
	return s.WriteAt(alloc.Offset, src)
}

// ReadAllocation copies len(dest) bytes from the mapped region starting at
// alloc.Offset into dest. Only the region's bounds are checked; len(dest)
// is not compared against the allocation's size.
func (s *Store) ReadAllocation(alloc allocator.Allocation, dest []byte) error {
	return s.ReadAt(alloc.Offset, dest)
}

// WriteAt copies src into the mapped region starting at offset.
func (s *Store) WriteAt(offset uint32, src []byte) error {
	if offset+uint32(len(src)) > s.size {
		return ErrOutOfBounds
	}

	copy(s.data[offset:offset+uint32(len(src))], src)

	return nil
}

// ReadAt copies from the mapped region starting at offset into dest.
func (s *Store) ReadAt(offset uint32, dest []byte) error {
	if offset+uint32(len(dest)) > s.size {
		return ErrOutOfBounds
	}

	copy(dest, s.data[offset:offset+uint32(len(dest))])

	return nil
}

// Close unmaps the region and closes the backing file.
func (s *Store) Close() error {
	var err error

	if s.data != nil {
		if unmapErr := unix.Munmap(s.data); unmapErr != nil {
			err = unmapErr
		}

		s.data = nil
	}

	if s.file != nil {
		if closeErr := s.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		s.file = nil
	}

	return err
}
