package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCompileFlags(t *testing.T) {
	t.Helper()
	compileRulesPath = ""
	compileMode = "block"
	compileOutput = filepath.Join(t.TempDir(), "rules.db")
	compileCachePath = ""
	compileWatch = false
}

func TestRunCompileAndInfo(t *testing.T) {
	for _, mode := range []string{"block", "stream", "vectored"} {
		t.Run(mode, func(t *testing.T) {
			resetCompileFlags(t)
			compileRulesPath = writeTestRules(t)
			compileMode = mode

			var buf bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&buf)

			require.NoError(t, runCompile(cmd, []string{}))
			assert.Contains(t, buf.String(), "Compiled 2 rules")

			data, err := os.ReadFile(compileOutput)
			require.NoError(t, err)
			db, err := hs.UnmarshalDatabase(data)
			require.NoError(t, err)
			defer db.Close()
			assert.Equal(t, mode, db.Mode().Base().String())

			buf.Reset()
			require.NoError(t, runInfo(cmd, []string{compileOutput}))
			assert.Contains(t, buf.String(), "Mode: "+mode)
			assert.Contains(t, buf.String(), "Deserialized size:")
			if mode == "stream" {
				assert.Contains(t, buf.String(), "Stream state size:")
			}
		})
	}
}

func TestRunCompileInvalidMode(t *testing.T) {
	resetCompileFlags(t)
	compileMode = "batch"

	err := runCompile(&cobra.Command{}, []string{})
	assert.Error(t, err)
}

func TestRunCompileWatchRequiresRules(t *testing.T) {
	resetCompileFlags(t)
	compileWatch = true

	err := runCompile(&cobra.Command{}, []string{})
	assert.ErrorContains(t, err, "--watch requires --rules")
}

func TestRunCompileWithCache(t *testing.T) {
	resetCompileFlags(t)
	compileCachePath = filepath.Join(t.TempDir(), "cache.db")

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runCompile(cmd, []string{}))
	first, err := os.ReadFile(compileOutput)
	require.NoError(t, err)

	// second run is served from the cache
	require.NoError(t, runCompile(cmd, []string{}))
	second, err := os.ReadFile(compileOutput)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cachePath = compileCachePath
	require.NoError(t, runCacheList(cmd, []string{}))
	assert.Contains(t, buf.String(), "block")
}

func TestRunInfoGarbage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.db", "not a database")
	err := runInfo(&cobra.Command{}, []string{path})
	assert.Error(t, err)
}

func TestStreamModeFor(t *testing.T) {
	plain := []hs.Pattern{hs.MustPattern("abc", 0, 0)}
	som := []hs.Pattern{hs.MustPattern("abc", 0, 0), hs.MustPattern("def", hs.SomLeftMost, 1)}

	assert.Equal(t, hs.ModeBlock, streamModeFor(hs.ModeBlock, som))
	assert.Equal(t, hs.ModeStream, streamModeFor(hs.ModeStream, plain))
	assert.Equal(t, hs.ModeStream|hs.ModeSomHorizonLarge, streamModeFor(hs.ModeStream, som))
}
