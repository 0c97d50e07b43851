package hs

/*
#cgo pkg-config: libhs
#include <stdlib.h>
#include <hs.h>
*/
import "C"

import (
	"bytes"
	"fmt"
	"runtime"
	"unsafe"
)

// SerializedDatabase is a database flattened into a relocatable byte stream,
// held in native memory until Close.
type SerializedDatabase struct {
	buf     *C.char
	length  C.size_t
	cleanup runtime.Cleanup
}

// Serialize flattens db. The result can be stored and later deserialized on a
// host running the same engine version and platform.
func (db *Database) Serialize() (*SerializedDatabase, error) {
	if db.handle == nil {
		return nil, ErrClosed
	}
	var buf *C.char
	var length C.size_t
	code := ErrorCode(C.hs_serialize_database(db.handle, &buf, &length))
	runtime.KeepAlive(db)
	if err := statusError("hs_serialize_database", code); err != nil {
		return nil, err
	}
	return newSerializedDatabase(buf, length), nil
}

// NewSerializedDatabase copies data, typically read back from disk, into
// native memory.
func NewSerializedDatabase(data []byte) *SerializedDatabase {
	buf := (*C.char)(C.CBytes(data))
	return newSerializedDatabase(buf, C.size_t(len(data)))
}

func newSerializedDatabase(buf *C.char, length C.size_t) *SerializedDatabase {
	sdb := &SerializedDatabase{buf: buf, length: length}
	sdb.cleanup = runtime.AddCleanup(sdb, freeBuffer, buf)
	return sdb
}

func freeBuffer(buf *C.char) {
	C.free(unsafe.Pointer(buf))
}

// Len returns the length of the serialized form in bytes.
func (s *SerializedDatabase) Len() int {
	return int(s.length)
}

// Bytes returns a Go copy of the serialized form, or nil after Close.
func (s *SerializedDatabase) Bytes() []byte {
	if s.buf == nil {
		return nil
	}
	b := bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(s.buf)), int(s.length)))
	runtime.KeepAlive(s)
	return b
}

// DeserializedSize returns the size the database will occupy once
// deserialized.
func (s *SerializedDatabase) DeserializedSize() (int, error) {
	if s.buf == nil {
		return 0, ErrClosed
	}
	var n C.size_t
	code := ErrorCode(C.hs_serialized_database_size(s.buf, s.length, &n))
	runtime.KeepAlive(s)
	if err := statusError("hs_serialized_database_size", code); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Info describes the serialized database the same way Database.Info does.
func (s *SerializedDatabase) Info() (string, error) {
	if s.buf == nil {
		return "", ErrClosed
	}
	var info *C.char
	code := ErrorCode(C.hs_serialized_database_info(s.buf, s.length, &info))
	runtime.KeepAlive(s)
	if err := statusError("hs_serialized_database_info", code); err != nil {
		return "", err
	}
	defer C.free(unsafe.Pointer(info))
	return C.GoString(info), nil
}

// Deserialize reconstructs a database. The serialized form stays valid and
// can be deserialized again.
//
// The serialized form records only the base mode, so Mode on the result is
// ModeBlock, ModeStream or ModeVectored without the SOM horizon bits. Use
// DeserializeAs when the full compile mode is known.
func (s *SerializedDatabase) Deserialize() (*Database, error) {
	return s.deserialize(0)
}

// DeserializeAs reconstructs a database compiled with mode, keeping the
// horizon bits the serialized form drops. It fails with ErrModeMismatch when
// the serialized base mode differs from mode's.
func (s *SerializedDatabase) DeserializeAs(mode ScanMode) (*Database, error) {
	return s.deserialize(mode)
}

func (s *SerializedDatabase) deserialize(want ScanMode) (*Database, error) {
	if s.buf == nil {
		return nil, ErrClosed
	}
	info, err := s.Info()
	if err != nil {
		return nil, err
	}
	mode, err := parseInfoMode(info)
	if err != nil {
		return nil, err
	}
	if want != 0 {
		if want.Base() != mode {
			return nil, fmt.Errorf("%w: serialized %s database, expected %s", ErrModeMismatch, mode, want)
		}
		mode = want
	}

	var handle *C.hs_database_t
	code := ErrorCode(C.hs_deserialize_database(s.buf, s.length, &handle))
	runtime.KeepAlive(s)
	if err := statusError("hs_deserialize_database", code); err != nil {
		return nil, err
	}
	return newDatabase(handle, mode), nil
}

// Close frees the native buffer. Later calls are no-ops.
func (s *SerializedDatabase) Close() error {
	if s == nil || s.buf == nil {
		return nil
	}
	s.cleanup.Stop()
	buf := s.buf
	s.buf = nil
	freeBuffer(buf)
	return nil
}

// MarshalBinary returns the serialized form of db.
func (db *Database) MarshalBinary() ([]byte, error) {
	sdb, err := db.Serialize()
	if err != nil {
		return nil, err
	}
	defer sdb.Close()
	return sdb.Bytes(), nil
}

// UnmarshalDatabase reconstructs a database from bytes produced by
// MarshalBinary. Its Mode is the base mode; see Deserialize.
func UnmarshalDatabase(data []byte) (*Database, error) {
	sdb := NewSerializedDatabase(data)
	defer sdb.Close()
	return sdb.Deserialize()
}

// UnmarshalDatabaseAs is UnmarshalDatabase for a database known to have
// been compiled with mode.
func UnmarshalDatabaseAs(data []byte, mode ScanMode) (*Database, error) {
	sdb := NewSerializedDatabase(data)
	defer sdb.Close()
	return sdb.DeserializeAs(mode)
}
