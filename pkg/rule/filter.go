package rule

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/praetorian-inc/vectorscan-go/pkg/types"
)

// FilterConfig selects rules by ID and category.
type FilterConfig struct {
	Include    []string // rule ID regexes; empty keeps every rule
	Exclude    []string // rule ID regexes removed after Include
	Categories []string // keep only rules tagged with one of these; empty keeps all
}

// ParsePatterns splits a comma-separated flag value into trimmed, non-empty
// items.
func ParsePatterns(s string) []string {
	result := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Filter applies config to rules. Include is applied first, then Exclude,
// then Categories.
func Filter(rules []*types.Rule, config FilterConfig) ([]*types.Rule, error) {
	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	result := make([]*types.Rule, 0, len(rules))
	for _, r := range rules {
		if len(include) > 0 && !matchesAny(r.ID, include) {
			continue
		}
		if matchesAny(r.ID, exclude) {
			continue
		}
		if len(config.Categories) > 0 && !hasCategory(r, config.Categories) {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	regexes := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		regexes = append(regexes, re)
	}
	return regexes, nil
}

func matchesAny(ruleID string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(ruleID) {
			return true
		}
	}
	return false
}

func hasCategory(r *types.Rule, categories []string) bool {
	for _, c := range r.Categories {
		if slices.Contains(categories, c) {
			return true
		}
	}
	return false
}
