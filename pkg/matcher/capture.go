package matcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
)

// captureRegex re-runs a rule's expression over a located match to recover
// its capture groups, which the engine does not report.
type captureRegex struct {
	re    *regexp2.Regexp
	names []string // named groups, in group order
}

// compileCapture compiles rule.Pattern with the regexp2 options equivalent
// to the rule's engine flags. It returns nil when the pattern has no groups.
func compileCapture(rule *types.Rule, timeout time.Duration) (*captureRegex, error) {
	var opts regexp2.RegexOptions
	if strings.ContainsRune(rule.Flags, 'i') {
		opts |= regexp2.IgnoreCase
	}
	if strings.ContainsRune(rule.Flags, 's') {
		opts |= regexp2.Singleline
	}
	if strings.ContainsRune(rule.Flags, 'm') {
		opts |= regexp2.Multiline
	}

	re, err := regexp2.Compile(rule.Pattern, opts|regexp2.RE2)
	if err != nil {
		// Fallback to Perl-compatible mode
		re, err = regexp2.Compile(rule.Pattern, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q for rule %s: %w", rule.Pattern, rule.ID, err)
		}
	}
	if len(re.GetGroupNumbers()) <= 1 {
		return nil, nil
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}

	c := &captureRegex{re: re}
	for _, name := range re.GetGroupNames() {
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			continue
		}
		c.names = append(c.names, name)
	}
	return c, nil
}

// extract matches region, which is exactly the span the engine reported,
// and returns its positional and named groups.
func (c *captureRegex) extract(region []byte) ([][]byte, map[string][]byte, error) {
	m, err := c.re.FindRunesMatch([]rune(string(region)))
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, fmt.Errorf("pattern did not match at the reported location")
	}

	var groups [][]byte
	all := m.Groups()
	for i := 1; i < len(all); i++ {
		if len(all[i].Captures) > 0 {
			groups = append(groups, []byte(all[i].Captures[0].String()))
		}
	}

	var named map[string][]byte
	for _, name := range c.names {
		g := m.GroupByName(name)
		if g != nil && len(g.Captures) > 0 {
			if named == nil {
				named = make(map[string][]byte, len(c.names))
			}
			named[name] = []byte(g.Captures[0].String())
		}
	}
	return groups, named, nil
}
