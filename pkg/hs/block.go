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

// emptyInput backs zero-length scans; the engine rejects a NULL data pointer
// even when the length is zero.
var emptyInput = [1]byte{}

// inputPointer returns the native view of data.
func inputPointer(data []byte) (*C.char, C.uint, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return nil, 0, ErrInputTooLarge
	}
	if len(data) == 0 {
		return (*C.char)(unsafe.Pointer(&emptyInput[0])), 0, nil
	}
	return (*C.char)(unsafe.Pointer(&data[0])), C.uint(len(data)), nil
}

// BlockScanner scans complete buffers against a block-mode database. It owns
// its scratch and borrows the database, which must outlive it.
//
// A BlockScanner is not safe for concurrent use; Clone it per goroutine.
type BlockScanner struct {
	db      *Database
	scratch *Scratch
}

// NewBlockScanner allocates a scanner for a database compiled with ModeBlock.
func NewBlockScanner(db *Database) (*BlockScanner, error) {
	if db.Mode().Base() != ModeBlock {
		return nil, ErrModeMismatch
	}
	scratch, err := NewScratch(db)
	if err != nil {
		return nil, err
	}
	return &BlockScanner{db: db, scratch: scratch}, nil
}

// Database returns the database the scanner scans against.
func (s *BlockScanner) Database() *Database {
	return s.db
}

// Scan scans data, calling onMatch for every match in the order the engine
// reports them. A nil onMatch scans without reporting.
func (s *BlockScanner) Scan(data []byte, onMatch MatchHandler) (Outcome, error) {
	if s.scratch.handle == nil || s.db.handle == nil {
		return Completed, ErrClosed
	}
	ptr, length, err := inputPointer(data)
	if err != nil {
		return Completed, err
	}

	code, stopped := withHandler(onMatch, func(cb C.match_event_handler, ctx unsafe.Pointer) C.hs_error_t {
		return C.hs_scan(s.db.handle, ptr, length, 0, s.scratch.handle, cb, ctx)
	})
	runtime.KeepAlive(data)
	runtime.KeepAlive(s)
	return scanResult("hs_scan", code, stopped)
}

// Clone returns a scanner with its own scratch over the same database.
func (s *BlockScanner) Clone() (*BlockScanner, error) {
	scratch, err := s.scratch.Clone()
	if err != nil {
		return nil, err
	}
	return &BlockScanner{db: s.db, scratch: scratch}, nil
}

// Close frees the scanner's scratch. The database is left open.
func (s *BlockScanner) Close() error {
	return s.scratch.Close()
}
