package types

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// Match is a single reported rule match within a blob.
type Match struct {
	BlobID       BlobID
	StructuralID string // SHA-1(rule_structural_id \0 blob_id \0 start \0 end)
	FindingID    string // SHA-1(rule_structural_id \0 json(groups))
	RuleID       string
	RuleName     string
	PatternID    uint32 // engine pattern ID the rule was compiled under
	// StartKnown is false when the rule was compiled without start-of-match
	// tracking; Location.Offset.Start is then 0 and Snippet is empty.
	StartKnown  bool
	Location    Location
	Groups      [][]byte          // positional capture groups
	NamedGroups map[string][]byte // named capture groups (?P<name>...)
	Snippet     Snippet
}

// Snippet holds the matched bytes with surrounding context lines.
type Snippet struct {
	Before   []byte
	Matching []byte
	After    []byte
}

// ComputeStructuralID identifies a match by rule, blob and byte span.
func (m *Match) ComputeStructuralID(ruleStructuralID string) string {
	h := sha1.New()
	h.Write([]byte(ruleStructuralID))
	h.Write([]byte{0})
	h.Write(m.BlobID[:])
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Location.Offset.Start, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Location.Offset.End, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeFindingID identifies a match by rule and captured content, so the
// same secret found twice yields the same ID.
func ComputeFindingID(ruleStructuralID string, groups [][]byte) string {
	h := sha1.New()
	h.Write([]byte(ruleStructuralID))
	h.Write([]byte{0})
	groupsJSON, _ := json.Marshal(groups)
	h.Write(groupsJSON)
	return hex.EncodeToString(h.Sum(nil))
}
