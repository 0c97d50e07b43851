package matcher

import "time"

// Options contains configuration for match post-processing.
type Options struct {
	// Dedupe selects how repeated matches within one blob are collapsed.
	Dedupe DedupeMode

	// CaptureTimeout bounds capture-group extraction for a single match.
	// Default: 5 seconds (matches the regexp2 MatchTimeout)
	CaptureTimeout time.Duration

	// Tolerant keeps a match whose capture extraction failed, without
	// groups, instead of failing the scan.
	Tolerant bool
}

// DefaultOptions returns the default options for the matcher
func DefaultOptions() Options {
	return Options{
		Dedupe:         DedupeByLocation,
		CaptureTimeout: 5 * time.Second,
		Tolerant:       true,
	}
}
