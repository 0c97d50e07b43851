package types

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"slices"
)

// Rule is a detection rule: one engine expression plus the metadata used to
// report and validate its matches.
type Rule struct {
	ID               string   // e.g., "vs.aws.1"
	Name             string   // human-readable name
	Pattern          string   // engine expression
	Flags            string   // compile flags in letter form, e.g. "iL"
	StructuralID     string   // SHA-1 of pattern and flags (computed)
	Description      string   // optional
	Examples         []string // inputs the pattern must match
	NegativeExamples []string // inputs the pattern must not match
	References       []string // documentation URLs
	Categories       []string // classification tags
	Keywords         []string // literal keywords gating the rule; empty = always on
}

// namedGroupRe matches named capture groups like (?P<name>...) so that naming
// a group does not change a rule's identity.
var namedGroupRe = regexp.MustCompile(`\(\?P?<[A-Za-z_][A-Za-z0-9_]*>`)

// ComputeStructuralID hashes the rule's pattern, with named groups made
// anonymous, and its flags in canonical order.
func (r *Rule) ComputeStructuralID() string {
	normalized := namedGroupRe.ReplaceAllString(r.Pattern, "(")

	flags := []byte(r.Flags)
	slices.Sort(flags)

	h := sha1.New()
	h.Write([]byte(normalized))
	if len(flags) > 0 {
		h.Write([]byte{0})
		h.Write(flags)
	}
	return hex.EncodeToString(h.Sum(nil))
}
