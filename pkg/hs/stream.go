package hs

/*
#cgo pkg-config: libhs
#include <hs.h>
*/
import "C"

import (
	"runtime"
	"unsafe"
)

// StreamScanner opens streams against a stream-mode database and supplies the
// scratch their scans use. Like BlockScanner it owns its scratch and borrows
// the database.
//
// Streams opened from one StreamScanner share its scratch, so they must be
// driven from one goroutine at a time.
type StreamScanner struct {
	db      *Database
	scratch *Scratch
}

// NewStreamScanner allocates a scanner for a database compiled with ModeStream.
func NewStreamScanner(db *Database) (*StreamScanner, error) {
	if db.Mode().Base() != ModeStream {
		return nil, ErrModeMismatch
	}
	scratch, err := NewScratch(db)
	if err != nil {
		return nil, err
	}
	return &StreamScanner{db: db, scratch: scratch}, nil
}

// Database returns the database the scanner scans against.
func (s *StreamScanner) Database() *Database {
	return s.db
}

// Open starts a new stream at offset 0.
func (s *StreamScanner) Open() (*Stream, error) {
	if s.scratch.handle == nil || s.db.handle == nil {
		return nil, ErrClosed
	}
	var handle *C.hs_stream_t
	code := ErrorCode(C.hs_open_stream(s.db.handle, 0, &handle))
	runtime.KeepAlive(s)
	if err := statusError("hs_open_stream", code); err != nil {
		return nil, err
	}
	st := &Stream{handle: handle, scanner: s}
	st.cleanup = runtime.AddCleanup(st, discardStream, handle)
	return st, nil
}

// Clone returns a scanner with its own scratch over the same database.
func (s *StreamScanner) Clone() (*StreamScanner, error) {
	scratch, err := s.scratch.Clone()
	if err != nil {
		return nil, err
	}
	return &StreamScanner{db: s.db, scratch: scratch}, nil
}

// Close frees the scanner's scratch. Streams opened from it can no longer
// scan, but must still be closed.
func (s *StreamScanner) Close() error {
	return s.scratch.Close()
}

// Stream is one logical input delivered in pieces. Matches spanning the
// boundary between two Scan calls are found.
type Stream struct {
	handle  *C.hs_stream_t
	scanner *StreamScanner
	cleanup runtime.Cleanup
}

// discardStream releases a stream without reporting end-of-data matches.
func discardStream(handle *C.hs_stream_t) {
	if code := ErrorCode(C.hs_close_stream(handle, nil, nil, nil)); code != Success {
		panic(&Error{Op: "hs_close_stream", Code: code})
	}
}

func (st *Stream) usable() error {
	if st.handle == nil {
		return ErrStreamClosed
	}
	if st.scanner.scratch.handle == nil || st.scanner.db.handle == nil {
		return ErrClosed
	}
	return nil
}

// Scan feeds the next piece of the stream. Terminating from onMatch ends this
// call only; the stream stays open.
func (st *Stream) Scan(data []byte, onMatch MatchHandler) (Outcome, error) {
	if err := st.usable(); err != nil {
		return Completed, err
	}
	ptr, length, err := inputPointer(data)
	if err != nil {
		return Completed, err
	}

	scratch := st.scanner.scratch.handle
	code, stopped := withHandler(onMatch, func(cb C.match_event_handler, ctx unsafe.Pointer) C.hs_error_t {
		return C.hs_scan_stream(st.handle, ptr, length, 0, scratch, cb, ctx)
	})
	runtime.KeepAlive(data)
	runtime.KeepAlive(st)
	return scanResult("hs_scan_stream", code, stopped)
}

// Reset reports matches that complete at end of data, then returns the
// stream to offset 0 as if newly opened.
func (st *Stream) Reset(onMatch MatchHandler) (Outcome, error) {
	if err := st.usable(); err != nil {
		return Completed, err
	}

	scratch := st.scanner.scratch.handle
	code, stopped := withHandler(onMatch, func(cb C.match_event_handler, ctx unsafe.Pointer) C.hs_error_t {
		if cb == nil {
			return C.hs_reset_stream(st.handle, 0, nil, nil, nil)
		}
		return C.hs_reset_stream(st.handle, 0, scratch, cb, ctx)
	})
	runtime.KeepAlive(st)
	return scanResult("hs_reset_stream", code, stopped)
}

// Close reports matches that complete at end of data and releases the
// stream. A nil onMatch discards them. The stream is released even when
// onMatch terminates or the call fails; later calls return ErrStreamClosed.
func (st *Stream) Close(onMatch MatchHandler) (Outcome, error) {
	if st.handle == nil {
		return Completed, ErrStreamClosed
	}
	st.cleanup.Stop()
	handle := st.handle
	st.handle = nil

	if st.scanner.scratch.handle == nil || st.scanner.db.handle == nil {
		discardStream(handle)
		return Completed, ErrClosed
	}

	scratch := st.scanner.scratch.handle
	code, stopped := withHandler(onMatch, func(cb C.match_event_handler, ctx unsafe.Pointer) C.hs_error_t {
		if cb == nil {
			return C.hs_close_stream(handle, nil, nil, nil)
		}
		return C.hs_close_stream(handle, scratch, cb, ctx)
	})
	runtime.KeepAlive(st)
	return scanResult("hs_close_stream", code, stopped)
}
