package hs

/*
#cgo pkg-config: libhs
#include <hs.h>

extern int vectorscanOnMatch(unsigned int, unsigned long long, unsigned long long, unsigned int, void *);
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

// Decision is a match handler's answer to the engine.
type Decision int

const (
	// Continue asks the engine to keep scanning.
	Continue Decision = iota
	// Terminate stops the current scan call; the call returns Terminated.
	Terminate
)

// Outcome reports how a scan call finished.
type Outcome int

const (
	// Completed means every match was delivered and the input was consumed.
	Completed Outcome = iota
	// Terminated means the match handler returned Terminate.
	Terminated
)

func (o Outcome) String() string {
	if o == Terminated {
		return "terminated"
	}
	return "completed"
}

// MatchHandler receives one match during a scan call:
//
//   - id: the ID of the pattern that matched
//   - from: start offset of the match; 0 unless the pattern was compiled
//     with SomLeftMost
//   - to: offset one past the last byte of the match
//   - flags: reserved by the engine, currently always 0
//
// The handler runs synchronously on the scanning goroutine. It must not use
// the scanner it was invoked from, and must not call runtime.Goexit.
type MatchHandler func(id uint32, from, to uint64, flags uint32) Decision

// MatchEvent is one reported match.
type MatchEvent struct {
	ID    uint32
	From  uint64
	To    uint64
	Flags uint32
}

// Collect returns a handler appending every match to events.
func Collect(events *[]MatchEvent) MatchHandler {
	return func(id uint32, from, to uint64, flags uint32) Decision {
		*events = append(*events, MatchEvent{ID: id, From: from, To: to, Flags: flags})
		return Continue
	}
}

// matchContext carries a handler across the native boundary for the duration
// of one native call.
type matchContext struct {
	handler    MatchHandler
	stopped    bool
	panicked   bool
	panicValue any
}

func (c *matchContext) dispatch(id uint32, from, to uint64, flags uint32) (ret C.int) {
	defer func() {
		if r := recover(); r != nil {
			c.stopped = true
			c.panicked = true
			c.panicValue = r
			ret = 1
		}
	}()
	if c.handler(id, from, to, flags) == Terminate {
		c.stopped = true
		return 1
	}
	return 0
}

//export vectorscanOnMatch
func vectorscanOnMatch(id C.uint, from, to C.ulonglong, flags C.uint, ctx unsafe.Pointer) C.int {
	h := *(*cgo.Handle)(ctx)
	c := h.Value().(*matchContext)
	return c.dispatch(uint32(id), uint64(from), uint64(to), uint32(flags))
}

// withHandler runs call with the native callback and context to pass to the
// engine and reports whether the handler stopped the call. A nil handler
// passes a nil callback. The handle is released before withHandler returns,
// and a panic raised by the handler is re-raised here, after the engine has
// unwound.
func withHandler(handler MatchHandler, call func(cb C.match_event_handler, ctx unsafe.Pointer) C.hs_error_t) (ErrorCode, bool) {
	if handler == nil {
		return ErrorCode(call(nil, nil)), false
	}

	mc := &matchContext{handler: handler}
	h := cgo.NewHandle(mc)
	code := ErrorCode(call(C.match_event_handler(C.vectorscanOnMatch), unsafe.Pointer(&h)))
	h.Delete()

	if mc.panicked {
		panic(mc.panicValue)
	}
	return code, mc.stopped
}

// scanResult maps a native scan status onto the public outcome. The engine
// reports end-of-data matches from hs_close_stream and hs_reset_stream but
// returns Success even when the handler stopped them, so stopped is
// consulted as well.
func scanResult(op string, code ErrorCode, stopped bool) (Outcome, error) {
	switch code {
	case Success:
		if stopped {
			return Terminated, nil
		}
		return Completed, nil
	case ErrScanTerminated:
		return Terminated, nil
	default:
		return Completed, &Error{Op: op, Code: code}
	}
}
