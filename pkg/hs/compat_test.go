package hs_test

import (
	"testing"

	"github.com/flier/gohs/hyperscan"
	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gohsEvents scans input with the gohs binding, which wraps the same native
// library, and returns its events in our representation.
func gohsEvents(t *testing.T, exprs []string, flags []hyperscan.CompileFlag, input []byte) []hs.MatchEvent {
	t.Helper()
	patterns := make([]*hyperscan.Pattern, len(exprs))
	for i, expr := range exprs {
		p := hyperscan.NewPattern(expr, flags[i])
		p.Id = i
		patterns[i] = p
	}

	db, err := hyperscan.NewBlockDatabase(patterns...)
	require.NoError(t, err)
	defer db.Close()

	scratch, err := hyperscan.NewScratch(db)
	require.NoError(t, err)
	defer scratch.Free()

	var events []hs.MatchEvent
	err = db.Scan(input, scratch, func(id uint, from, to uint64, _ uint, _ interface{}) error {
		events = append(events, hs.MatchEvent{ID: uint32(id), From: from, To: to})
		return nil
	}, nil)
	require.NoError(t, err)
	return events
}

func TestCompat_MatchesGohs(t *testing.T) {
	tests := []struct {
		name  string
		exprs []string
		ours  []hs.Flag
		gohs  []hyperscan.CompileFlag
		input string
	}{
		{
			name:  "literals",
			exprs: []string{"test", "pattern"},
			ours:  []hs.Flag{0, 0},
			gohs:  []hyperscan.CompileFlag{0, 0},
			input: "test pattern test pattern",
		},
		{
			name:  "caseless with start of match",
			exprs: []string{`w[o0]rld`, `hello`},
			ours:  []hs.Flag{hs.Caseless | hs.SomLeftMost, hs.Caseless},
			gohs:  []hyperscan.CompileFlag{hyperscan.Caseless | hyperscan.SomLeftMost, hyperscan.Caseless},
			input: "Hello W0RLD, hello world",
		},
		{
			name:  "multiline anchors",
			exprs: []string{`^key=\w+$`},
			ours:  []hs.Flag{hs.MultiLine | hs.SomLeftMost},
			gohs:  []hyperscan.CompileFlag{hyperscan.MultiLine | hyperscan.SomLeftMost},
			input: "a=1\nkey=abc\nkey=def",
		},
		{
			name:  "dotall spans newlines",
			exprs: []string{`BEGIN.+END`},
			ours:  []hs.Flag{hs.DotAll | hs.SingleMatch},
			gohs:  []hyperscan.CompileFlag{hyperscan.DotAll | hyperscan.SingleMatch},
			input: "BEGIN\nbody\nEND END",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patterns := make([]hs.Pattern, len(tt.exprs))
			for i, expr := range tt.exprs {
				patterns[i] = hs.MustPattern(expr, tt.ours[i], uint32(i))
			}
			db, err := hs.Compile(patterns, hs.ModeBlock)
			require.NoError(t, err)
			defer db.Close()

			scanner, err := hs.NewBlockScanner(db)
			require.NoError(t, err)
			defer scanner.Close()

			var ours []hs.MatchEvent
			_, err = scanner.Scan([]byte(tt.input), hs.Collect(&ours))
			require.NoError(t, err)

			theirs := gohsEvents(t, tt.exprs, tt.gohs, []byte(tt.input))
			assert.NotEmpty(t, ours)
			// Same engine, same database inputs: order must match too.
			assert.Equal(t, theirs, ours)
		})
	}
}

func TestCompat_FlagValuesMatchGohs(t *testing.T) {
	assert.Equal(t, uint(hyperscan.Caseless), uint(hs.Caseless))
	assert.Equal(t, uint(hyperscan.DotAll), uint(hs.DotAll))
	assert.Equal(t, uint(hyperscan.MultiLine), uint(hs.MultiLine))
	assert.Equal(t, uint(hyperscan.SingleMatch), uint(hs.SingleMatch))
	assert.Equal(t, uint(hyperscan.SomLeftMost), uint(hs.SomLeftMost))
}
