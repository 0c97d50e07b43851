package hs

import (
	"errors"
	"fmt"
)

// ErrorCode is a native hs_error_t status.
type ErrorCode int

const (
	Success           ErrorCode = 0   // HS_SUCCESS
	ErrInvalid        ErrorCode = -1  // HS_INVALID
	ErrNoMem          ErrorCode = -2  // HS_NOMEM
	ErrScanTerminated ErrorCode = -3  // HS_SCAN_TERMINATED
	ErrCompiler       ErrorCode = -4  // HS_COMPILER_ERROR
	ErrDBVersion      ErrorCode = -5  // HS_DB_VERSION_ERROR
	ErrDBPlatform     ErrorCode = -6  // HS_DB_PLATFORM_ERROR
	ErrDBMode         ErrorCode = -7  // HS_DB_MODE_ERROR
	ErrBadAlign       ErrorCode = -8  // HS_BAD_ALIGN
	ErrBadAlloc       ErrorCode = -9  // HS_BAD_ALLOC
	ErrScratchInUse   ErrorCode = -10 // HS_SCRATCH_IN_USE
	ErrArch           ErrorCode = -11 // HS_ARCH_ERROR
	ErrInsufficient   ErrorCode = -12 // HS_INSUFFICIENT_SPACE
	ErrUnknown        ErrorCode = -13 // HS_UNKNOWN_ERROR
)

var errorCodeText = map[ErrorCode]string{
	Success:           "success",
	ErrInvalid:        "invalid parameter",
	ErrNoMem:          "memory allocation failed",
	ErrScanTerminated: "scan terminated by match callback",
	ErrCompiler:       "pattern compilation failed",
	ErrDBVersion:      "database built for a different engine version",
	ErrDBPlatform:     "database built for a different platform",
	ErrDBMode:         "database built for a different scan mode",
	ErrBadAlign:       "parameter not correctly aligned",
	ErrBadAlloc:       "allocator returned misaligned memory",
	ErrScratchInUse:   "scratch region already in use",
	ErrArch:           "unsupported CPU architecture",
	ErrInsufficient:   "provided buffer too small",
	ErrUnknown:        "unexpected internal error",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeText[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown status %d", int(c))
}

// Error makes ErrorCode usable as an errors.Is target.
func (c ErrorCode) Error() string {
	return "hs: " + c.String()
}

// Error is a non-success status returned by a native call.
type Error struct {
	Op   string // native operation, e.g. "hs_scan"
	Code ErrorCode
}

func (e *Error) Error() string {
	return fmt.Sprintf("hs: %s: %s (%d)", e.Op, e.Code, int(e.Code))
}

// Unwrap exposes the status code so errors.Is(err, hs.ErrNoMem) works.
func (e *Error) Unwrap() error {
	return e.Code
}

// CompileError is the engine's diagnostic for a rejected pattern set.
type CompileError struct {
	Message string
	// Expression is the index of the offending pattern, or -1 when the
	// failure is not attributable to a single expression.
	Expression   int
	PatternID    uint32
	HasPatternID bool
}

func (e *CompileError) Error() string {
	switch {
	case e.Expression < 0:
		return fmt.Sprintf("hs: compile: %s", e.Message)
	case e.HasPatternID:
		return fmt.Sprintf("hs: compile: pattern %d (id %d): %s", e.Expression, e.PatternID, e.Message)
	default:
		return fmt.Sprintf("hs: compile: pattern %d: %s", e.Expression, e.Message)
	}
}

// Unwrap lets errors.Is(err, hs.ErrCompiler) match compile failures.
func (e *CompileError) Unwrap() error {
	return ErrCompiler
}

// NulByteError rejects an expression containing a NUL byte; the engine reads
// expressions as NUL-terminated strings.
type NulByteError struct {
	Offset int
}

func (e *NulByteError) Error() string {
	return fmt.Sprintf("hs: expression contains NUL byte at offset %d", e.Offset)
}

func (e *NulByteError) Is(target error) bool {
	return target == ErrNulByte
}

var (
	// ErrNulByte matches any *NulByteError.
	ErrNulByte = errors.New("hs: expression contains NUL byte")

	// ErrModeMismatch is returned when a database is paired with a scanner
	// or query for a different scan mode.
	ErrModeMismatch = errors.New("hs: database scan mode mismatch")

	// ErrStreamClosed is returned by any use of a stream after Close.
	ErrStreamClosed = errors.New("hs: stream already closed")

	// ErrClosed is returned when a closed database, scratch or scanner is used.
	ErrClosed = errors.New("hs: use of closed resource")

	// ErrInputTooLarge is returned for buffers the engine cannot address
	// (longer than 4 GiB).
	ErrInputTooLarge = errors.New("hs: input exceeds 4 GiB")
)

// statusError converts a native status into nil, or an *Error for op.
func statusError(op string, code ErrorCode) error {
	if code == Success {
		return nil
	}
	return &Error{Op: op, Code: code}
}
