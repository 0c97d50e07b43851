package hs

import (
	"bytes"
	"strconv"
	"strings"
)

// Pattern is one expression to compile, with its flags and optional ID.
// Patterns are immutable once constructed.
type Pattern struct {
	expression []byte
	flags      Flag
	id         uint32
	hasID      bool
}

// NewPattern creates a pattern without an explicit ID. Patterns without an ID
// report matches under ID 0.
func NewPattern(expression []byte, flags Flag) (Pattern, error) {
	if i := bytes.IndexByte(expression, 0); i >= 0 {
		return Pattern{}, &NulByteError{Offset: i}
	}
	return Pattern{
		expression: bytes.Clone(expression),
		flags:      flags,
	}, nil
}

// NewPatternWithID creates a pattern that reports its matches under id.
func NewPatternWithID(expression []byte, flags Flag, id uint32) (Pattern, error) {
	p, err := NewPattern(expression, flags)
	if err != nil {
		return Pattern{}, err
	}
	p.id = id
	p.hasID = true
	return p, nil
}

// MustPattern is like NewPatternWithID but panics on error. It is intended
// for patterns known at compile time.
func MustPattern(expression string, flags Flag, id uint32) Pattern {
	p, err := NewPatternWithID([]byte(expression), flags, id)
	if err != nil {
		panic(err)
	}
	return p
}

// Expression returns a copy of the pattern's expression.
func (p Pattern) Expression() []byte {
	return bytes.Clone(p.expression)
}

// Flags returns the pattern's compile flags.
func (p Pattern) Flags() Flag {
	return p.flags
}

// ID returns the pattern ID and whether one was set.
func (p Pattern) ID() (uint32, bool) {
	return p.id, p.hasID
}

// String renders the pattern as "id:/expression/flags".
func (p Pattern) String() string {
	var b strings.Builder
	if p.hasID {
		b.WriteString(strconv.FormatUint(uint64(p.id), 10))
		b.WriteByte(':')
	}
	b.WriteByte('/')
	b.Write(p.expression)
	b.WriteByte('/')
	b.WriteString(p.flags.String())
	return b.String()
}
