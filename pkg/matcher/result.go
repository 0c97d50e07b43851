package matcher

import (
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/types"
)

// RuleStatus represents how a rule fared during one scan
type RuleStatus int

const (
	// RuleCompleted indicates the rule was evaluated by the engine
	RuleCompleted RuleStatus = iota
	// RuleSkipped indicates the keyword prefilter ruled the rule out
	RuleSkipped
	// RuleError indicates capture extraction failed for one of its matches
	RuleError
)

// String returns the string representation of RuleStatus
func (rs RuleStatus) String() string {
	switch rs {
	case RuleCompleted:
		return "completed"
	case RuleSkipped:
		return "skipped"
	case RuleError:
		return "error"
	default:
		return "unknown"
	}
}

// RuleStat contains statistics about a single rule within a scan
type RuleStat struct {
	RuleID  string     // Rule identifier
	Status  RuleStatus // Evaluation status
	Matches int        // Number of matches reported
	Error   error      // Error if Status is RuleError
}

// ResultSummary provides aggregate statistics for a scan
type ResultSummary struct {
	TotalRules     int // Total number of rules loaded
	CompletedRules int // Rules evaluated by the engine
	SkippedRules   int // Rules ruled out by the prefilter
	ErrorRules     int // Rules with capture extraction errors
}

// MatchResult contains matches and execution statistics
type MatchResult struct {
	Matches   []*types.Match      // Reported matches, in engine order
	RuleStats map[string]RuleStat // Statistics for each rule (keyed by RuleID)
	Summary   ResultSummary       // Aggregate statistics
	Truncated bool                // MaxMatchesPerBlob stopped the scan
	Duration  time.Duration       // Time spent scanning
}
