package hs

/*
#cgo pkg-config: libhs
#include <hs.h>
*/
import "C"

import "runtime"

// Scratch is the per-scan working memory the engine requires. A Scratch
// serves one scan at a time; give each goroutine its own clone.
type Scratch struct {
	handle  *C.hs_scratch_t
	db      *Database
	cleanup runtime.Cleanup
}

// NewScratch allocates scratch space sized for db.
func NewScratch(db *Database) (*Scratch, error) {
	if db.handle == nil {
		return nil, ErrClosed
	}
	var handle *C.hs_scratch_t
	code := ErrorCode(C.hs_alloc_scratch(db.handle, &handle))
	runtime.KeepAlive(db)
	if err := statusError("hs_alloc_scratch", code); err != nil {
		return nil, err
	}
	return newScratch(handle, db), nil
}

func newScratch(handle *C.hs_scratch_t, db *Database) *Scratch {
	s := &Scratch{handle: handle, db: db}
	s.cleanup = runtime.AddCleanup(s, freeScratch, handle)
	return s
}

func freeScratch(handle *C.hs_scratch_t) {
	if code := ErrorCode(C.hs_free_scratch(handle)); code != Success {
		panic(&Error{Op: "hs_free_scratch", Code: code})
	}
}

// Database returns the database the scratch was allocated for.
func (s *Scratch) Database() *Database {
	return s.db
}

// Clone allocates an independent copy of s for the same database.
func (s *Scratch) Clone() (*Scratch, error) {
	if s.handle == nil {
		return nil, ErrClosed
	}
	var handle *C.hs_scratch_t
	code := ErrorCode(C.hs_clone_scratch(s.handle, &handle))
	runtime.KeepAlive(s)
	if err := statusError("hs_clone_scratch", code); err != nil {
		return nil, err
	}
	return newScratch(handle, s.db), nil
}

// Size returns the size of the scratch region in bytes.
func (s *Scratch) Size() (int, error) {
	if s.handle == nil {
		return 0, ErrClosed
	}
	var n C.size_t
	code := ErrorCode(C.hs_scratch_size(s.handle, &n))
	runtime.KeepAlive(s)
	if err := statusError("hs_scratch_size", code); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close frees the scratch. Later calls are no-ops.
func (s *Scratch) Close() error {
	if s == nil || s.handle == nil {
		return nil
	}
	s.cleanup.Stop()
	handle := s.handle
	s.handle = nil
	freeScratch(handle)
	return nil
}
