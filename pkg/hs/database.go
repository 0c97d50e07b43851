package hs

/*
#cgo pkg-config: libhs
#include <stdlib.h>
#include <hs.h>
*/
import "C"

import (
	"runtime"
	"unsafe"
)

// Database is a compiled pattern database.
//
// A Database is immutable and may be shared by any number of scanners on any
// number of goroutines. Close must not race with scans using the database.
type Database struct {
	handle  *C.hs_database_t
	mode    ScanMode
	cleanup runtime.Cleanup
}

// Compile compiles patterns into a database for mode.
//
// Compile panics if patterns is empty: an empty pattern set is a programming
// error, not a recoverable condition. Patterns the engine rejects are
// reported as a *CompileError naming the offending pattern.
func Compile(patterns []Pattern, mode ScanMode) (*Database, error) {
	if len(patterns) == 0 {
		panic("hs: Compile requires at least one pattern")
	}

	n := len(patterns)
	exprs := make([]*C.char, n)
	flags := make([]C.uint, n)
	ids := make([]C.uint, n)
	for i, p := range patterns {
		exprs[i] = C.CString(string(p.expression))
		flags[i] = C.uint(p.flags)
		ids[i] = C.uint(p.id)
	}
	defer func() {
		for _, e := range exprs {
			C.free(unsafe.Pointer(e))
		}
	}()

	var handle *C.hs_database_t
	var cerr *C.hs_compile_error_t
	code := ErrorCode(C.hs_compile_ext_multi(
		&exprs[0], &flags[0], &ids[0], nil,
		C.uint(n), C.uint(mode), nil,
		&handle, &cerr,
	))
	if cerr != nil {
		err := newCompileError(cerr, patterns)
		if handle != nil {
			freeDatabase(handle)
		}
		return nil, err
	}
	if err := statusError("hs_compile_ext_multi", code); err != nil {
		return nil, err
	}
	return newDatabase(handle, mode), nil
}

// newCompileError converts and releases an engine compile diagnostic.
func newCompileError(cerr *C.hs_compile_error_t, patterns []Pattern) *CompileError {
	e := &CompileError{
		Message:    C.GoString(cerr.message),
		Expression: int(cerr.expression),
	}
	if e.Expression >= 0 && e.Expression < len(patterns) {
		e.PatternID, e.HasPatternID = patterns[e.Expression].ID()
	}
	if code := ErrorCode(C.hs_free_compile_error(cerr)); code != Success {
		panic(&Error{Op: "hs_free_compile_error", Code: code})
	}
	return e
}

func newDatabase(handle *C.hs_database_t, mode ScanMode) *Database {
	db := &Database{handle: handle, mode: mode}
	db.cleanup = runtime.AddCleanup(db, freeDatabase, handle)
	return db
}

func freeDatabase(handle *C.hs_database_t) {
	if code := ErrorCode(C.hs_free_database(handle)); code != Success {
		panic(&Error{Op: "hs_free_database", Code: code})
	}
}

// Mode returns the scan mode the database was compiled for.
func (db *Database) Mode() ScanMode {
	return db.mode
}

// Size returns the size of the compiled database in bytes.
func (db *Database) Size() (int, error) {
	if db.handle == nil {
		return 0, ErrClosed
	}
	var n C.size_t
	code := ErrorCode(C.hs_database_size(db.handle, &n))
	runtime.KeepAlive(db)
	if err := statusError("hs_database_size", code); err != nil {
		return 0, err
	}
	return int(n), nil
}

// StreamSize returns the size in bytes of the state each open stream of this
// database carries. Only streaming databases have stream state.
func (db *Database) StreamSize() (int, error) {
	if db.handle == nil {
		return 0, ErrClosed
	}
	if db.mode.Base() != ModeStream {
		return 0, ErrModeMismatch
	}
	var n C.size_t
	code := ErrorCode(C.hs_stream_size(db.handle, &n))
	runtime.KeepAlive(db)
	if err := statusError("hs_stream_size", code); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Info returns the engine's description of the database: engine version,
// target CPU features and scan mode.
func (db *Database) Info() (string, error) {
	if db.handle == nil {
		return "", ErrClosed
	}
	var info *C.char
	code := ErrorCode(C.hs_database_info(db.handle, &info))
	runtime.KeepAlive(db)
	if err := statusError("hs_database_info", code); err != nil {
		return "", err
	}
	defer C.free(unsafe.Pointer(info))
	return C.GoString(info), nil
}

// Clone returns an independent copy of the database, made by serializing and
// deserializing it. The copy and the original can be closed in any order.
func (db *Database) Clone() (*Database, error) {
	sdb, err := db.Serialize()
	if err != nil {
		return nil, err
	}
	defer sdb.Close()

	return sdb.DeserializeAs(db.mode)
}

// Close releases the native database. Later calls are no-ops.
func (db *Database) Close() error {
	if db == nil || db.handle == nil {
		return nil
	}
	db.cleanup.Stop()
	handle := db.handle
	db.handle = nil
	freeDatabase(handle)
	return nil
}
