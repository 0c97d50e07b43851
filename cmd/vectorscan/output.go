package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// styles holds color formatters for human output
type styles struct {
	heading  *color.Color
	id       *color.Color
	ruleName *color.Color
	match    *color.Color
	metadata *color.Color
}

// newStyles creates color formatters; enabled=false disables all color.
func newStyles(enabled bool) *styles {
	s := &styles{
		heading:  color.New(color.Bold),
		id:       color.New(color.FgHiGreen),
		ruleName: color.New(color.Bold, color.FgHiBlue),
		match:    color.New(color.FgYellow),
		metadata: color.New(color.FgHiBlue),
	}

	if !enabled {
		s.heading.DisableColor()
		s.id.DisableColor()
		s.ruleName.DisableColor()
		s.match.DisableColor()
		s.metadata.DisableColor()
	}

	return s
}

// colorEnabled resolves --color: auto colors only a terminal stdout
// without NO_COLOR set.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

// snippetParts holds separated snippet components for colored output
type snippetParts struct {
	prefix   string // "..." if truncated at start
	before   string
	matching string
	after    string
	suffix   string // "..." if truncated at end
}

// formatSnippetWithParts centers a maxLen window on the match and splits it
// for coloring.
func formatSnippetWithParts(before, matching, after []byte, maxLen int) snippetParts {
	full := string(before) + string(matching) + string(after)

	if len(full) <= maxLen {
		return snippetParts{
			before:   string(before),
			matching: string(matching),
			after:    string(after),
		}
	}

	matchStart := len(before)
	matchEnd := matchStart + len(matching)
	matchLen := len(matching)

	if matchLen >= maxLen {
		return snippetParts{
			prefix:   "...",
			matching: string(matching[:maxLen-6]),
			suffix:   "...",
		}
	}

	// reserve 6 for "..." on each side
	halfContext := (maxLen - matchLen - 6) / 2

	start := matchStart - halfContext
	end := matchEnd + halfContext
	if start < 0 {
		end -= start
		start = 0
	}
	if end > len(full) {
		start -= end - len(full)
		if start < 0 {
			start = 0
		}
		end = len(full)
	}

	parts := snippetParts{}
	if start > 0 {
		parts.prefix = "..."
	}
	if matchStart > start {
		parts.before = full[start:matchStart]
	}
	parts.matching = full[matchStart:matchEnd]
	if matchEnd < end {
		parts.after = full[matchEnd:end]
	}
	if end < len(full) {
		parts.suffix = "..."
	}
	return parts
}

func outputHuman(cmd *cobra.Command, results []fileResult, total int) error {
	out := cmd.OutOrStdout()
	s := newStyles(colorEnabled(scanColor))

	if total == 0 {
		fmt.Fprintf(out, "No matches.\n")
		return nil
	}

	n := 0
	for _, r := range results {
		for _, m := range r.Matches {
			n++
			fmt.Fprintf(out, "%s (%s %s)\n",
				s.heading.Sprintf("Match %d/%d", n, total),
				s.heading.Sprint("id"),
				s.id.Sprint(m.FindingID))
			fmt.Fprintf(out, "%s %s (%s)\n", s.heading.Sprint("Rule:"), s.ruleName.Sprint(m.RuleName), m.RuleID)
			fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("File:"), s.metadata.Sprint(r.Path))

			loc := m.Location
			if m.StartKnown {
				fmt.Fprintf(out, "%s %d:%d-%d:%d (bytes %d-%d)\n",
					s.heading.Sprint("Lines:"),
					loc.Source.Start.Line, loc.Source.Start.Column,
					loc.Source.End.Line, loc.Source.End.Column,
					loc.Offset.Start, loc.Offset.End)
			} else {
				fmt.Fprintf(out, "%s ends at %d:%d (byte %d)\n",
					s.heading.Sprint("Lines:"),
					loc.Source.End.Line, loc.Source.End.Column, loc.Offset.End)
			}

			for j, group := range m.Groups {
				fmt.Fprintf(out, "%s %s\n", s.heading.Sprintf("Group %d:", j+1), s.match.Sprint(string(group)))
			}

			parts := formatSnippetWithParts(m.Snippet.Before, m.Snippet.Matching, m.Snippet.After, 500)
			if parts != (snippetParts{}) {
				fmt.Fprintf(out, "\n    %s%s%s%s%s\n",
					parts.prefix,
					parts.before,
					s.match.Sprint(parts.matching),
					parts.after,
					parts.suffix)
			}
			fmt.Fprintln(out)
		}
	}

	fmt.Fprintf(out, "Scan complete: %d matches in %d files\n", total, len(results))
	return nil
}
