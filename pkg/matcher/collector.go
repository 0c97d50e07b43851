package matcher

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"go.uber.org/zap"
)

// collector turns engine match events for one blob into types.Match
// values. It sees a window of the scanned bytes: the whole blob for block
// scans, recent history plus the current write for streams.
type collector struct {
	e      *Engine
	blobID types.BlobID
	active []bool // per rule; nil means every rule is active
	dedup  *Deduplicator

	matches   []*types.Match
	reported  int
	counts    []int
	ruleErrs  []error
	err       error
	truncated bool
	duration  time.Duration

	window    []byte
	base      int64 // absolute offset of window[0]
	baseLine  int   // source position of window[0]
	baseCol   int
	newlines  []int // offsets of '\n' in window, built on demand
	indexed   bool
}

func (e *Engine) newCollector(blobID types.BlobID) *collector {
	return &collector{
		e:        e,
		blobID:   blobID,
		dedup:    NewDeduplicatorWithMode(e.opts.Dedupe),
		counts:   make([]int, len(e.rules)),
		ruleErrs: make([]error, len(e.rules)),
		baseLine: 1,
		baseCol:  1,
	}
}

// setWindow points the collector at window, whose first byte is at absolute
// offset base. base must not precede the previous window's base.
func (c *collector) setWindow(window []byte, base int64) {
	if base > c.base {
		p := c.position(base)
		c.baseLine, c.baseCol = p.Line, p.Column
	}
	c.window = window
	c.base = base
	c.newlines = c.newlines[:0]
	c.indexed = false
}

func (c *collector) index() {
	if c.indexed {
		return
	}
	for i := 0; ; {
		j := bytes.IndexByte(c.window[i:], '\n')
		if j < 0 {
			break
		}
		c.newlines = append(c.newlines, i+j)
		i += j + 1
	}
	c.indexed = true
}

// position returns the 1-based line and column of absolute offset off, or
// the zero SourcePoint when off lies outside the window.
func (c *collector) position(off int64) types.SourcePoint {
	rel := off - c.base
	if rel < 0 || rel > int64(len(c.window)) {
		return types.SourcePoint{}
	}
	c.index()
	r := int(rel)
	k := sort.SearchInts(c.newlines, r)
	if k == 0 {
		return types.SourcePoint{Line: c.baseLine, Column: c.baseCol + r}
	}
	return types.SourcePoint{Line: c.baseLine + k, Column: r - c.newlines[k-1]}
}

// slice returns the window bytes for the absolute span [from, to).
func (c *collector) slice(from, to int64) (start, end int, ok bool) {
	start, end = int(from-c.base), int(to-c.base)
	if from < c.base || start > end || end > len(c.window) {
		return 0, 0, false
	}
	return start, end, true
}

func (c *collector) onMatch(id uint32, from, to uint64, _ uint32) hs.Decision {
	if int(id) >= len(c.e.rules) {
		return hs.Continue
	}
	if c.active != nil && !c.active[id] {
		return hs.Continue
	}

	r := c.e.rules[id]
	m := &types.Match{
		BlobID:     c.blobID,
		RuleID:     r.ID,
		RuleName:   r.Name,
		PatternID:  id,
		StartKnown: c.e.som[id],
	}
	m.Location.Offset.End = int64(to)
	m.Location.Source.End = c.position(int64(to))

	if m.StartKnown {
		m.Location.Offset.Start = int64(from)
		m.Location.Source.Start = c.position(int64(from))
		if start, end, ok := c.slice(int64(from), int64(to)); ok {
			if err := c.fill(m, id, start, end); err != nil {
				c.err = err
				return hs.Terminate
			}
		}
	}

	m.StructuralID = m.ComputeStructuralID(r.StructuralID)
	m.FindingID = types.ComputeFindingID(r.StructuralID, m.Groups)
	if !c.dedup.Observe(m) {
		return hs.Continue
	}

	c.matches = append(c.matches, m)
	c.reported++
	c.counts[id]++
	c.e.metrics.recordMatch(r.ID)

	if c.e.maxMatches > 0 && c.reported >= c.e.maxMatches {
		if !c.truncated {
			c.e.metrics.recordTruncated()
		}
		c.truncated = true
		return hs.Terminate
	}
	return hs.Continue
}

// fill adds the snippet, context and capture groups of a match whose bytes
// are window[start:end].
func (c *collector) fill(m *types.Match, id uint32, start, end int) error {
	region := c.window[start:end]
	m.Snippet.Matching = bytes.Clone(region)
	if c.e.contextLines > 0 {
		m.Snippet.Before, m.Snippet.After = ExtractContext(c.window, start, end, c.e.contextLines)
	}

	capture := c.e.captures[id]
	if capture == nil {
		return nil
	}
	groups, named, err := capture.extract(region)
	if err != nil {
		if !c.e.opts.Tolerant {
			return fmt.Errorf("rule %s: capture extraction: %w", m.RuleID, err)
		}
		c.ruleErrs[id] = err
		c.e.logger.Debug("capture extraction failed",
			zap.String("rule", m.RuleID),
			zap.Int64("start", m.Location.Offset.Start),
			zap.Error(err))
		return nil
	}
	m.Groups, m.NamedGroups = groups, named
	return nil
}

// take returns the matches collected since the last call.
func (c *collector) take() []*types.Match {
	ms := c.matches
	c.matches = nil
	return ms
}

func (c *collector) result() *MatchResult {
	res := &MatchResult{
		Matches:   c.take(),
		RuleStats: make(map[string]RuleStat, len(c.e.rules)),
		Truncated: c.truncated,
		Duration:  c.duration,
	}
	if res.Matches == nil {
		res.Matches = []*types.Match{}
	}
	res.Summary.TotalRules = len(c.e.rules)

	for i, r := range c.e.rules {
		stat := RuleStat{RuleID: r.ID, Status: RuleCompleted, Matches: c.counts[i]}
		switch {
		case c.ruleErrs[i] != nil:
			stat.Status = RuleError
			stat.Error = c.ruleErrs[i]
			res.Summary.ErrorRules++
		case c.active != nil && !c.active[i]:
			stat.Status = RuleSkipped
			res.Summary.SkippedRules++
		default:
			res.Summary.CompletedRules++
		}
		// Rules sharing an ID aggregate into one entry.
		if prev, ok := res.RuleStats[r.ID]; ok {
			stat.Matches += prev.Matches
			if prev.Status > stat.Status {
				stat.Status, stat.Error = prev.Status, prev.Error
			}
		}
		res.RuleStats[r.ID] = stat
	}
	return res
}
