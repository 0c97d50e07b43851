package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/praetorian-inc/vectorscan-go/pkg/types"
)

// DedupeMode controls how matches are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation deduplicates by exact location (rule + blob + offsets).
	// The same secret at different locations counts as separate findings.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent deduplicates by matched content (rule + secret value).
	// The same secret appearing multiple times counts as one finding.
	DedupeByContent
)

func (m DedupeMode) String() string {
	switch m {
	case DedupeByLocation:
		return "location"
	case DedupeByContent:
		return "content"
	default:
		return "unknown"
	}
}

// ParseDedupeMode parses "location" or "content".
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "location", "":
		return DedupeByLocation, nil
	case "content":
		return DedupeByContent, nil
	default:
		return 0, fmt.Errorf("unknown dedupe mode %q (want location or content)", s)
	}
}

// Deduplicator removes duplicate matches based on configurable criteria.
type Deduplicator struct {
	seen map[string]struct{}
	mode DedupeMode
}

// NewDeduplicator creates a new deduplicator with location-based deduplication.
func NewDeduplicator() *Deduplicator {
	return NewDeduplicatorWithMode(DedupeByLocation)
}

// NewContentDeduplicator creates a deduplicator that deduplicates by content.
func NewContentDeduplicator() *Deduplicator {
	return NewDeduplicatorWithMode(DedupeByContent)
}

// NewDeduplicatorWithMode creates a deduplicator for mode.
func NewDeduplicatorWithMode(mode DedupeMode) *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]struct{}),
		mode: mode,
	}
}

// Mode returns the deduplication mode.
func (d *Deduplicator) Mode() DedupeMode {
	return d.mode
}

// IsDuplicate returns true if match was already seen.
func (d *Deduplicator) IsDuplicate(m *types.Match) bool {
	_, ok := d.seen[d.computeKey(m)]
	return ok
}

// Add marks a match as seen.
func (d *Deduplicator) Add(m *types.Match) {
	d.seen[d.computeKey(m)] = struct{}{}
}

// Observe adds m and reports whether it was new.
func (d *Deduplicator) Observe(m *types.Match) bool {
	key := d.computeKey(m)
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct matches seen.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

func (d *Deduplicator) computeKey(m *types.Match) string {
	if d.mode != DedupeByContent {
		return m.StructuralID
	}

	// Capture groups hold the secret itself; without them the matched bytes
	// stand in. A match with neither can only be told apart by location.
	h := sha256.New()
	h.Write([]byte(m.RuleID))
	h.Write([]byte{0})
	switch {
	case len(m.Groups) > 0:
		for _, group := range m.Groups {
			h.Write(group)
			h.Write([]byte{0})
		}
	case len(m.Snippet.Matching) > 0:
		h.Write(m.Snippet.Matching)
	default:
		h.Write([]byte(m.StructuralID))
	}
	return hex.EncodeToString(h.Sum(nil))
}
