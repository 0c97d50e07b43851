package hs

/*
#cgo pkg-config: libhs
#include <hs.h>
*/
import "C"

import (
	"math"
	"runtime"
	"unsafe"
)

// VectoredScanner scans a sequence of buffers as one logical input against a
// vectored-mode database. Ownership rules match BlockScanner.
type VectoredScanner struct {
	db      *Database
	scratch *Scratch
}

// NewVectoredScanner allocates a scanner for a database compiled with
// ModeVectored.
func NewVectoredScanner(db *Database) (*VectoredScanner, error) {
	if db.Mode().Base() != ModeVectored {
		return nil, ErrModeMismatch
	}
	scratch, err := NewScratch(db)
	if err != nil {
		return nil, err
	}
	return &VectoredScanner{db: db, scratch: scratch}, nil
}

// Database returns the database the scanner scans against.
func (s *VectoredScanner) Database() *Database {
	return s.db
}

// Scan scans buffers in order as if they were concatenated. Match offsets are
// relative to the start of the first buffer.
func (s *VectoredScanner) Scan(buffers [][]byte, onMatch MatchHandler) (Outcome, error) {
	if s.scratch.handle == nil || s.db.handle == nil {
		return Completed, ErrClosed
	}
	if uint64(len(buffers)) > math.MaxUint32 {
		return Completed, ErrInputTooLarge
	}

	// The engine rejects NULL arrays even for an empty vector.
	n := max(len(buffers), 1)
	ptrs := make([]*C.char, n)
	lengths := make([]C.uint, n)
	ptrs[0] = (*C.char)(unsafe.Pointer(&emptyInput[0]))

	var pinner runtime.Pinner
	defer pinner.Unpin()
	for i, buf := range buffers {
		ptr, length, err := inputPointer(buf)
		if err != nil {
			return Completed, err
		}
		if length > 0 {
			pinner.Pin(&buf[0])
		}
		ptrs[i] = ptr
		lengths[i] = length
	}

	count := C.uint(len(buffers))
	code, stopped := withHandler(onMatch, func(cb C.match_event_handler, ctx unsafe.Pointer) C.hs_error_t {
		return C.hs_scan_vector(s.db.handle, &ptrs[0], &lengths[0], count, 0, s.scratch.handle, cb, ctx)
	})
	runtime.KeepAlive(buffers)
	runtime.KeepAlive(s)
	return scanResult("hs_scan_vector", code, stopped)
}

// Clone returns a scanner with its own scratch over the same database.
func (s *VectoredScanner) Clone() (*VectoredScanner, error) {
	scratch, err := s.scratch.Clone()
	if err != nil {
		return nil, err
	}
	return &VectoredScanner{db: s.db, scratch: scratch}, nil
}

// Close frees the scanner's scratch. The database is left open.
func (s *VectoredScanner) Close() error {
	return s.scratch.Close()
}
