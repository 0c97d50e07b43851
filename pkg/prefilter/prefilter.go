package prefilter

import (
	"bytes"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
)

// Prefilter uses Aho-Corasick keyword matching to decide which rules may
// report matches in a piece of content. Rule i of the slice passed to New is
// addressed by index i throughout.
type Prefilter struct {
	rules []*types.Rule

	exact       *ahocorasick.Matcher
	exactRules  [][]int // exact keyword index -> rule indices
	folded      *ahocorasick.Matcher
	foldedRules [][]int // lowercased keyword index -> rule indices (caseless rules)

	gated      []bool // rule has keywords
	numGated   int
	maxKeyword int
}

// New creates a prefilter from rules. Keywords of rules compiled with the
// caseless flag are matched case-insensitively.
func New(rules []*types.Rule) *Prefilter {
	pf := &Prefilter{
		rules: rules,
		gated: make([]bool, len(rules)),
	}

	var exactWords, foldedWords []string
	exactIdx := make(map[string]int)
	foldedIdx := make(map[string]int)

	add := func(words *[]string, idx map[string]int, lists *[][]int, kw string, rule int) {
		i, ok := idx[kw]
		if !ok {
			i = len(*words)
			idx[kw] = i
			*words = append(*words, kw)
			*lists = append(*lists, nil)
		}
		(*lists)[i] = append((*lists)[i], rule)
	}

	for i, rule := range rules {
		caseless := strings.ContainsRune(rule.Flags, 'i')
		for _, kw := range rule.Keywords {
			if kw == "" {
				continue
			}
			pf.gated[i] = true
			if len(kw) > pf.maxKeyword {
				pf.maxKeyword = len(kw)
			}
			if caseless {
				add(&foldedWords, foldedIdx, &pf.foldedRules, strings.ToLower(kw), i)
			} else {
				add(&exactWords, exactIdx, &pf.exactRules, kw, i)
			}
		}
		if pf.gated[i] {
			pf.numGated++
		}
	}

	if len(exactWords) > 0 {
		pf.exact = ahocorasick.NewStringMatcher(exactWords)
	}
	if len(foldedWords) > 0 {
		pf.folded = ahocorasick.NewStringMatcher(foldedWords)
	}
	return pf
}

// Gated reports whether any rule carries keywords.
func (pf *Prefilter) Gated() bool {
	return pf.numGated > 0
}

// AllGated reports whether every rule carries keywords, in which case
// content without any keyword cannot produce a match.
func (pf *Prefilter) AllGated() bool {
	return len(pf.rules) > 0 && pf.numGated == len(pf.rules)
}

// Active returns, per rule index, whether the rule may report matches in
// content: it has no keywords or one of them occurs in content.
func (pf *Prefilter) Active(content []byte) []bool {
	active := make([]bool, len(pf.rules))
	for i := range active {
		active[i] = !pf.gated[i]
	}
	pf.mark(content, active)
	return active
}

// Any reports whether at least one entry of active is set.
func Any(active []bool) bool {
	for _, a := range active {
		if a {
			return true
		}
	}
	return false
}

func (pf *Prefilter) mark(content []byte, active []bool) {
	if pf.exact != nil {
		for _, hit := range pf.exact.MatchThreadSafe(content) {
			for _, r := range pf.exactRules[hit] {
				active[r] = true
			}
		}
	}
	if pf.folded != nil {
		for _, hit := range pf.folded.MatchThreadSafe(bytes.ToLower(content)) {
			for _, r := range pf.foldedRules[hit] {
				active[r] = true
			}
		}
	}
}

// Filter returns the rules that may match content (keywords found or no
// keywords defined), in their original order.
func (pf *Prefilter) Filter(content []byte) []*types.Rule {
	active := pf.Active(content)
	result := make([]*types.Rule, 0, len(pf.rules))
	for i, rule := range pf.rules {
		if active[i] {
			result = append(result, rule)
		}
	}
	return result
}

// Tracker accumulates keyword sightings across the chunks of a stream.
// Keywords split across a chunk boundary are found by rescanning the tail of
// the previous chunk.
type Tracker struct {
	pf     *Prefilter
	active []bool
	tail   []byte
}

// NewTracker starts tracking a new stream.
func (pf *Prefilter) NewTracker() *Tracker {
	t := &Tracker{pf: pf, active: make([]bool, len(pf.rules))}
	for i := range t.active {
		t.active[i] = !pf.gated[i]
	}
	return t
}

// Observe records the keywords in chunk and returns the rules active so far.
// The returned slice is owned by the tracker and updated by later calls.
func (t *Tracker) Observe(chunk []byte) []bool {
	if t.pf.numGated == 0 || len(chunk) == 0 {
		return t.active
	}

	window := chunk
	if len(t.tail) > 0 {
		window = make([]byte, 0, len(t.tail)+len(chunk))
		window = append(window, t.tail...)
		window = append(window, chunk...)
	}
	t.pf.mark(window, t.active)

	keep := t.pf.maxKeyword - 1
	if keep > len(window) {
		keep = len(window)
	}
	t.tail = append(t.tail[:0], window[len(window)-keep:]...)
	return t.active
}

// Active returns the rules active so far.
func (t *Tracker) Active() []bool {
	return t.active
}
