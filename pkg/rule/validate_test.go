package rule

import (
	"testing"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule() *types.Rule {
	r := &types.Rule{
		ID:               "test.1",
		Name:             "Test Key",
		Pattern:          `key_[0-9]{4}\b`,
		Flags:            "L",
		Examples:         []string{"key_1234", "prefix key_9999 suffix"},
		NegativeExamples: []string{"key_12", "KEY_1234"},
	}
	r.StructuralID = r.ComputeStructuralID()
	return r
}

func TestValidateRule_Valid(t *testing.T) {
	require.NoError(t, ValidateRule(validRule()))
}

func TestValidateRule_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *types.Rule)
		errMsg string
	}{
		{"missing id", func(r *types.Rule) { r.ID = "" }, "rule ID is required"},
		{"missing name", func(r *types.Rule) { r.Name = "" }, "name is required"},
		{"missing pattern", func(r *types.Rule) { r.Pattern = ""; r.StructuralID = "" }, "pattern is required"},
		{"stale structural id", func(r *types.Rule) { r.StructuralID = "0000" }, "inconsistent StructuralID"},
		{"bad flags", func(r *types.Rule) { r.Flags = "Lz"; r.StructuralID = "" }, "unknown pattern flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(r)
			assert.ErrorContains(t, ValidateRule(r), tt.errMsg)
		})
	}

	assert.ErrorContains(t, ValidateRule(nil), "rule is nil")
}

func TestValidateRule_CompileError(t *testing.T) {
	r := validRule()
	r.Pattern = `key_(`
	r.StructuralID = ""

	err := ValidateRule(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, hs.ErrCompiler)
	assert.Contains(t, err.Error(), "test.1")
}

func TestValidateRule_NulByte(t *testing.T) {
	r := validRule()
	r.Pattern = "key\x00"
	r.StructuralID = ""
	assert.ErrorIs(t, ValidateRule(r), hs.ErrNulByte)
}

func TestValidateRule_Examples(t *testing.T) {
	r := validRule()
	r.Examples = append(r.Examples, "no key here")
	r.NegativeExamples = append(r.NegativeExamples, "key_0000")

	err := ValidateRule(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `example "no key here" does not match`)
	assert.Contains(t, err.Error(), `negative example "key_0000" matches`)
}

func TestValidateRules_DuplicateID(t *testing.T) {
	err := ValidateRules([]*types.Rule{validRule(), validRule()})
	assert.ErrorContains(t, err, "duplicate rule ID: test.1")

	assert.NoError(t, ValidateRules([]*types.Rule{validRule()}))
}

func TestValidateRules_Builtin(t *testing.T) {
	rules, err := NewLoader().LoadBuiltinRules()
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	assert.NoError(t, ValidateRules(rules))
}

func TestPatterns(t *testing.T) {
	rules := []*types.Rule{
		{ID: "a", Pattern: "foo", Flags: "i"},
		{ID: "b", Pattern: "bar", Flags: "sL"},
	}

	patterns, err := Patterns(rules)
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	for i, p := range patterns {
		id, ok := p.ID()
		assert.True(t, ok)
		assert.Equal(t, uint32(i), id)
	}
	assert.Equal(t, hs.Caseless, patterns[0].Flags())
	assert.Equal(t, hs.DotAll|hs.SomLeftMost, patterns[1].Flags())
	assert.Equal(t, "1:/bar/sL", patterns[1].String())

	_, err = Patterns([]*types.Rule{{ID: "bad", Pattern: "x", Flags: "?"}})
	assert.ErrorContains(t, err, "rule bad")
}
