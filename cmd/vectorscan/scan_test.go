package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetScanFlags() {
	scanRulesPath = ""
	scanRulesInclude = ""
	scanRulesExclude = ""
	scanOutputFormat = "human"
	scanStream = false
	scanDBPath = ""
	scanCachePath = ""
	scanMaxMatches = 0
	scanMaxFileSize = 10 * 1024 * 1024
	scanIncludeHidden = false
	scanIncludeBinary = false
	scanContextLines = 3
	scanColor = "never"
}

// scanFixture creates a directory with one matching and one clean file.
func scanFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "config.env", "line one\ntoken = "+testToken+"\nfind the needle\n")
	writeFile(t, dir, "clean.txt", "nothing to see here\n")
	return dir
}

func runScanJSON(t *testing.T, target string) []fileResult {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	scanOutputFormat = "json"
	require.NoError(t, runScan(cmd, []string{target}))

	var results []fileResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &results))
	return results
}

func TestRunScanHuman(t *testing.T) {
	resetScanFlags()
	scanRulesPath = writeTestRules(t)
	dir := scanFixture(t)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runScan(cmd, []string{dir}))

	output := buf.String()
	assert.Contains(t, output, "Rule: Test Token (test.token.1)")
	assert.Contains(t, output, "File: "+filepath.Join(dir, "config.env"))
	assert.Contains(t, output, "Lines: 2:9-2:49 (bytes 17-57)")
	assert.Contains(t, output, "Scan complete: 2 matches in 1 files")
}

func TestRunScanNoMatches(t *testing.T) {
	resetScanFlags()
	scanRulesPath = writeTestRules(t)
	dir := t.TempDir()
	writeFile(t, dir, "clean.txt", "nothing to see here\n")

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runScan(cmd, []string{dir}))
	assert.Equal(t, "No matches.\n", buf.String())

	resetScanFlags()
	scanRulesPath = writeTestRules(t)
	results := runScanJSON(t, dir)
	assert.Empty(t, results)
}

func TestRunScanJSON(t *testing.T) {
	resetScanFlags()
	scanRulesPath = writeTestRules(t)
	dir := scanFixture(t)

	results := runScanJSON(t, dir)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(dir, "config.env"), results[0].Path)
	require.Len(t, results[0].Matches, 2)

	ids := []string{results[0].Matches[0].RuleID, results[0].Matches[1].RuleID}
	assert.ElementsMatch(t, []string{"test.token.1", "test.word.1"}, ids)
}

func TestRunScanStreamMatchesBlock(t *testing.T) {
	resetScanFlags()
	scanRulesPath = writeTestRules(t)
	dir := scanFixture(t)

	block := runScanJSON(t, dir)

	scanStream = true
	streamed := runScanJSON(t, dir)

	require.Len(t, streamed, 1)
	require.Len(t, block, 1)
	assert.Equal(t, block[0].Path, streamed[0].Path)
	require.Len(t, streamed[0].Matches, len(block[0].Matches))
	for i := range block[0].Matches {
		assert.Equal(t, block[0].Matches[i].RuleID, streamed[0].Matches[i].RuleID)
		assert.Equal(t, block[0].Matches[i].Location.Offset.End, streamed[0].Matches[i].Location.Offset.End)
	}
}

func TestRunScanStdin(t *testing.T) {
	resetScanFlags()
	scanRulesPath = writeTestRules(t)
	scanOutputFormat = "json"

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetIn(strings.NewReader("piped " + testToken))

	require.NoError(t, runScan(cmd, []string{"-"}))

	var results []fileResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "stdin", results[0].Path)
	require.Len(t, results[0].Matches, 1)
	assert.Equal(t, int64(6), results[0].Matches[0].Location.Offset.Start)
}

func TestRunScanSARIF(t *testing.T) {
	resetScanFlags()
	scanRulesPath = writeTestRules(t)
	scanOutputFormat = "sarif"
	dir := scanFixture(t)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, runScan(cmd, []string{dir}))

	var report map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "2.1.0", report["version"])
	runs := report["runs"].([]any)
	require.Len(t, runs, 1)
	results := runs[0].(map[string]any)["results"].([]any)
	assert.Len(t, results, 2)
}

func TestRunScanWithPrecompiledDB(t *testing.T) {
	resetCompileFlags(t)
	compileRulesPath = writeTestRules(t)
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runCompile(cmd, []string{}))

	resetScanFlags()
	scanRulesPath = compileRulesPath
	scanDBPath = compileOutput
	dir := scanFixture(t)

	results := runScanJSON(t, dir)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Matches, 2)
}

func TestRunScanStreamWithPrecompiledDB(t *testing.T) {
	resetCompileFlags(t)
	compileRulesPath = writeTestRules(t)
	compileMode = "stream"
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runCompile(cmd, []string{}))

	resetScanFlags()
	scanRulesPath = compileRulesPath
	scanDBPath = compileOutput
	scanStream = true
	dir := scanFixture(t)

	results := runScanJSON(t, dir)
	require.Len(t, results, 1)
	require.Len(t, results[0].Matches, 2)
	assert.Equal(t, int64(17), results[0].Matches[0].Location.Offset.Start)
}

func TestRunScanMaxMatches(t *testing.T) {
	resetScanFlags()
	scanRulesPath = writeTestRules(t)
	scanMaxMatches = 1
	dir := scanFixture(t)

	results := runScanJSON(t, dir)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Matches, 1)
}

func TestRunScanInvalidTarget(t *testing.T) {
	resetScanFlags()
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runScan(cmd, []string{"/nonexistent/path/that/does/not/exist"})
	assert.ErrorContains(t, err, "target does not exist")
}

func TestRunScanUnknownFormat(t *testing.T) {
	resetScanFlags()
	scanOutputFormat = "xml"

	err := runScan(&cobra.Command{}, []string{t.TempDir()})
	assert.ErrorContains(t, err, "unknown output format")
}
