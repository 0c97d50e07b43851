package hs

/*
#cgo pkg-config: libhs
#include <stdlib.h>
#include <hs.h>
*/
import "C"

import (
	"math"
	"unsafe"
)

// Version returns the engine's version string, e.g. "5.4.11 2024-07-04".
func Version() string {
	return C.GoString(C.hs_version())
}

// ValidPlatform reports whether the host CPU supports the engine's minimum
// instruction set.
func ValidPlatform() error {
	return statusError("hs_valid_platform", ErrorCode(C.hs_valid_platform()))
}

// ExprInfo describes the matches a single expression can produce.
type ExprInfo struct {
	MinWidth uint32
	// MaxWidth is meaningless when Unbounded is set.
	MaxWidth         uint32
	Unbounded        bool
	UnorderedMatches bool
	MatchesAtEOD     bool
	MatchesOnlyAtEOD bool
}

// ExpressionInfo analyzes p without building a database. An expression the
// engine rejects is reported as a *CompileError.
func ExpressionInfo(p Pattern) (*ExprInfo, error) {
	expr := C.CString(string(p.expression))
	defer C.free(unsafe.Pointer(expr))

	var info *C.hs_expr_info_t
	var cerr *C.hs_compile_error_t
	code := ErrorCode(C.hs_expression_info(expr, C.uint(p.flags), &info, &cerr))
	if cerr != nil {
		return nil, newCompileError(cerr, []Pattern{p})
	}
	if err := statusError("hs_expression_info", code); err != nil {
		return nil, err
	}
	defer C.free(unsafe.Pointer(info))

	return &ExprInfo{
		MinWidth:         uint32(info.min_width),
		MaxWidth:         uint32(info.max_width),
		Unbounded:        uint32(info.max_width) == math.MaxUint32,
		UnorderedMatches: info.unordered_matches != 0,
		MatchesAtEOD:     info.matches_at_eod != 0,
		MatchesOnlyAtEOD: info.matches_only_at_eod != 0,
	}, nil
}
