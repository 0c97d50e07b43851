package hs

import (
	"fmt"
	"strings"
)

// Flag is a set of per-pattern compile flags.
// The values match the HS_FLAG_* constants of hs_compile.h.
type Flag uint32

const (
	Caseless    Flag = 1 << iota // HS_FLAG_CASELESS: ignore case
	DotAll                       // HS_FLAG_DOTALL: '.' matches newline
	MultiLine                    // HS_FLAG_MULTILINE: '^' and '$' match at line boundaries
	SingleMatch                  // HS_FLAG_SINGLEMATCH: report at most one match per pattern
	AllowEmpty                   // HS_FLAG_ALLOWEMPTY: permit zero-width matches
	UTF8                         // HS_FLAG_UTF8: treat the pattern and input as UTF-8
	UCP                          // HS_FLAG_UCP: Unicode character properties
	Prefilter                    // HS_FLAG_PREFILTER: approximate, over-matching mode
	SomLeftMost                  // HS_FLAG_SOM_LEFTMOST: report the leftmost start of match
	Combination                  // HS_FLAG_COMBINATION: logical combination of other patterns
	Quiet                        // HS_FLAG_QUIET: never report matches for this pattern
)

// flagLetters lists flags in rendering order with their conventional letters.
var flagLetters = []struct {
	flag   Flag
	letter byte
}{
	{Caseless, 'i'},
	{MultiLine, 'm'},
	{DotAll, 's'},
	{SingleMatch, 'H'},
	{AllowEmpty, 'V'},
	{UTF8, '8'},
	{UCP, 'W'},
	{Prefilter, 'P'},
	{SomLeftMost, 'L'},
	{Combination, 'C'},
	{Quiet, 'Q'},
}

// Has reports whether all bits of other are set in f.
func (f Flag) Has(other Flag) bool {
	return f&other == other
}

// String renders the flags in the letter form used after the closing slash of
// a /expression/flags pattern, e.g. "iL".
func (f Flag) String() string {
	var b strings.Builder
	for _, fl := range flagLetters {
		if f&fl.flag != 0 {
			b.WriteByte(fl.letter)
		}
	}
	return b.String()
}

// ParseFlags parses the letter form produced by Flag.String.
func ParseFlags(s string) (Flag, error) {
	var f Flag
	for i := 0; i < len(s); i++ {
		found := false
		for _, fl := range flagLetters {
			if fl.letter == s[i] {
				f |= fl.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown pattern flag %q", s[i])
		}
	}
	return f, nil
}

// ScanMode selects the kind of database to compile.
// The values match the HS_MODE_* constants of hs_compile.h.
type ScanMode uint32

const (
	ModeBlock    ScanMode = 1 // HS_MODE_BLOCK
	ModeStream   ScanMode = 2 // HS_MODE_STREAM
	ModeVectored ScanMode = 4 // HS_MODE_VECTORED

	// Start-of-match horizons for streaming databases with SomLeftMost patterns.
	ModeSomHorizonLarge  ScanMode = 1 << 24
	ModeSomHorizonMedium ScanMode = 1 << 25
	ModeSomHorizonSmall  ScanMode = 1 << 26

	modeBaseMask = ModeBlock | ModeStream | ModeVectored
)

// Base strips the SOM horizon modifiers from m.
func (m ScanMode) Base() ScanMode {
	return m & modeBaseMask
}

func (m ScanMode) String() string {
	var name string
	switch m.Base() {
	case ModeBlock:
		name = "block"
	case ModeStream:
		name = "stream"
	case ModeVectored:
		name = "vectored"
	default:
		return fmt.Sprintf("ScanMode(%d)", uint32(m))
	}
	switch {
	case m&ModeSomHorizonLarge != 0:
		name += "+som-large"
	case m&ModeSomHorizonMedium != 0:
		name += "+som-medium"
	case m&ModeSomHorizonSmall != 0:
		name += "+som-small"
	}
	return name
}

// ParseScanMode parses "block", "stream" or "vectored" (case-insensitive).
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block":
		return ModeBlock, nil
	case "stream", "streaming":
		return ModeStream, nil
	case "vectored", "vector":
		return ModeVectored, nil
	default:
		return 0, fmt.Errorf("unknown scan mode %q", s)
	}
}

// parseInfoMode extracts the scan mode from an engine info string such as
// "Version: 5.4.11 Features: AVX2 Mode: STREAM".
func parseInfoMode(info string) (ScanMode, error) {
	_, rest, ok := strings.Cut(info, "Mode: ")
	if !ok {
		return 0, fmt.Errorf("no mode in database info %q", info)
	}
	if fields := strings.Fields(rest); len(fields) > 0 {
		rest = fields[0]
	}
	switch rest {
	case "BLOCK":
		return ModeBlock, nil
	case "STREAM":
		return ModeStream, nil
	case "VECTORED":
		return ModeVectored, nil
	default:
		return 0, fmt.Errorf("unknown mode %q in database info", rest)
	}
}
