package rule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
)

// ValidateRule checks a rule's required fields and compiles it with the
// engine, then verifies that every example matches and no negative example
// does.
func ValidateRule(r *types.Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %s: name is required", r.ID)
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule %s: pattern is required", r.ID)
	}

	if expected := r.ComputeStructuralID(); r.StructuralID != "" && r.StructuralID != expected {
		return fmt.Errorf("rule %s has inconsistent StructuralID: got %s, expected %s",
			r.ID, r.StructuralID, expected)
	}

	p, err := Pattern(r, 0)
	if err != nil {
		return err
	}

	db, err := hs.Compile([]hs.Pattern{p}, hs.ModeBlock)
	if err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	defer db.Close()

	scanner, err := hs.NewBlockScanner(db)
	if err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	defer scanner.Close()

	var errs []error
	for _, example := range r.Examples {
		matched, err := matches(scanner, example)
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if !matched {
			errs = append(errs, fmt.Errorf("example %q does not match", example))
		}
	}
	for _, example := range r.NegativeExamples {
		matched, err := matches(scanner, example)
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if matched {
			errs = append(errs, fmt.Errorf("negative example %q matches", example))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("rule %s: %w", r.ID, errors.Join(errs...))
	}
	return nil
}

// matches reports whether the scanner finds anything in input, stopping at
// the first match.
func matches(scanner *hs.BlockScanner, input string) (bool, error) {
	outcome, err := scanner.Scan([]byte(input), func(uint32, uint64, uint64, uint32) hs.Decision {
		return hs.Terminate
	})
	return outcome == hs.Terminated, err
}

// ValidateRules validates every rule and rejects duplicate IDs.
func ValidateRules(rules []*types.Rule) error {
	seen := make(map[string]bool, len(rules))
	var errs []error
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("duplicate rule ID: %s", r.ID))
		}
		seen[r.ID] = true
	}
	return errors.Join(errs...)
}

// Pattern converts a rule into an engine pattern reported under id.
func Pattern(r *types.Rule, id uint32) (hs.Pattern, error) {
	flags, err := hs.ParseFlags(strings.TrimSpace(r.Flags))
	if err != nil {
		return hs.Pattern{}, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	p, err := hs.NewPatternWithID([]byte(r.Pattern), flags, id)
	if err != nil {
		return hs.Pattern{}, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return p, nil
}

// Patterns converts rules into engine patterns; pattern i carries ID i, so a
// match's pattern ID indexes rules directly.
func Patterns(rules []*types.Rule) ([]hs.Pattern, error) {
	patterns := make([]hs.Pattern, len(rules))
	for i, r := range rules {
		p, err := Pattern(r, uint32(i))
		if err != nil {
			return nil, err
		}
		patterns[i] = p
	}
	return patterns, nil
}
