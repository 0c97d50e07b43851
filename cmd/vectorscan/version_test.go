package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunVersion(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := runVersion(cmd, []string{})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "vectorscan v")
	assert.Contains(t, output, "Commit:")
	assert.Contains(t, output, "Engine:")
	assert.Contains(t, output, "Platform: supported")
	assert.Contains(t, output, "Go version:")
	assert.Contains(t, output, "OS/Arch:")
}

func TestNewLogger(t *testing.T) {
	for _, tt := range []struct {
		name           string
		verbose, quiet bool
		debug, info    bool
	}{
		{"default", false, false, false, true},
		{"verbose", true, false, true, true},
		{"quiet", false, true, false, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			l, err := newLogger(tt.verbose, tt.quiet)
			require.NoError(t, err)
			assert.Equal(t, tt.debug, l.Core().Enabled(-1))
			assert.Equal(t, tt.info, l.Core().Enabled(0))
		})
	}
}
