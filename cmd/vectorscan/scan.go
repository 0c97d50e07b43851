package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/praetorian-inc/vectorscan-go/pkg/enum"
	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/matcher"
	"github.com/praetorian-inc/vectorscan-go/pkg/sarif"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scanRulesPath     string
	scanRulesInclude  string
	scanRulesExclude  string
	scanOutputFormat  string
	scanStream        bool
	scanDBPath        string
	scanCachePath     string
	scanMaxMatches    int
	scanMaxFileSize   int64
	scanIncludeHidden bool
	scanIncludeBinary bool
	scanContextLines  int
	scanColor         string
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a file or directory",
	Long: `Scan a file or directory with detection rules. Files are block scanned
whole, or read through a stream with --stream. A target of "-" streams
standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRulesPath, "rules", "", "Path to custom rules file, pattern list or directory")
	scanCmd.Flags().StringVar(&scanRulesInclude, "rules-include", "", "Include rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanRulesExclude, "rules-exclude", "", "Exclude rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: human, json, sarif")
	scanCmd.Flags().BoolVar(&scanStream, "stream", false, "Read files through a stream instead of loading them whole")
	scanCmd.Flags().StringVar(&scanDBPath, "db", "", "Precompiled database for the selected rules (see compile)")
	scanCmd.Flags().StringVar(&scanCachePath, "cache", "", "Compiled database cache (SQLite file)")
	scanCmd.Flags().IntVar(&scanMaxMatches, "max-matches", 0, "Maximum matches reported per file (0 = unlimited)")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes, 0 = unlimited)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().BoolVar(&scanIncludeBinary, "include-binary", false, "Scan files that look binary")
	scanCmd.Flags().IntVar(&scanContextLines, "context-lines", 3, "Lines of context before/after matches (0 to disable)")
	scanCmd.Flags().StringVar(&scanColor, "color", "auto", "Color output: auto, always, never")
}

// fileResult holds the matches found in one scanned source.
type fileResult struct {
	Path    string         `json:"path"`
	BlobID  types.BlobID   `json:"blob_id"`
	Matches []*types.Match `json:"matches"`
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	stdin := target == "-"

	if !stdin {
		if _, err := os.Stat(target); err != nil {
			return fmt.Errorf("target does not exist: %s", target)
		}
	}
	switch scanOutputFormat {
	case "human", "json", "sarif":
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}

	rules, err := loadRules(scanRulesPath, scanRulesInclude, scanRulesExclude)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	compiler, closeCompiler, err := openCompiler(scanCachePath)
	if err != nil {
		return err
	}
	defer closeCompiler()

	var pre *precompiled
	if scanDBPath != "" {
		pre, err = loadPrecompiled(scanDBPath, compiler)
		if err != nil {
			return err
		}
		compiler = pre
	}

	engine, err := matcher.New(matcher.Config{
		Rules:             rules,
		ContextLines:      scanContextLines,
		MaxMatchesPerBlob: scanMaxMatches,
		Compiler:          compiler,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer engine.Close()
	if pre != nil && !pre.Used() {
		logger.Warn("precompiled database matched no compile request", zap.String("path", scanDBPath))
	}
	logger.Debug("engine ready", zap.String("info", engine.Info()))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var results []fileResult
	switch {
	case stdin:
		results, err = scanReader(ctx, engine, "stdin", cmd.InOrStdin())
	case scanStream:
		results, err = scanStreaming(ctx, engine, target)
	default:
		results, err = scanBlocks(ctx, engine, target)
	}
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	total := 0
	for _, r := range results {
		total += len(r.Matches)
	}
	logger.Info("scan complete", zap.Int("matches", total), zap.Int("files", len(results)))

	switch scanOutputFormat {
	case "json":
		return outputMatchesJSON(cmd, results)
	case "sarif":
		return outputSARIF(cmd, rules, results)
	default:
		return outputHuman(cmd, results, total)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func newEnumerator(target string) *enum.FilesystemEnumerator {
	return enum.NewFilesystemEnumerator(enum.Config{
		Root:          target,
		IncludeHidden: scanIncludeHidden,
		IncludeBinary: scanIncludeBinary,
		MaxFileSize:   scanMaxFileSize,
		Logger:        logger,
	})
}

// scanBlocks reads files whole and block scans them in parallel.
func scanBlocks(ctx context.Context, engine *matcher.Engine, target string) ([]fileResult, error) {
	var mu sync.Mutex
	var results []fileResult

	err := newEnumerator(target).Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		matches, err := engine.MatchWithBlobID(content, blobID)
		if err != nil {
			return fmt.Errorf("%s: %w", prov.Path(), err)
		}
		if len(matches) == 0 {
			return nil
		}
		mu.Lock()
		results = append(results, fileResult{Path: prov.Path(), BlobID: blobID, Matches: matches})
		mu.Unlock()
		return nil
	})
	return results, err
}

// scanStreaming feeds each file through its own stream, one file at a time.
func scanStreaming(ctx context.Context, engine *matcher.Engine, target string) ([]fileResult, error) {
	paths, err := newEnumerator(target).Paths(ctx)
	if err != nil {
		return nil, err
	}

	var results []fileResult
	for _, path := range paths {
		if !scanIncludeBinary {
			binary, err := enum.IsBinaryFile(path)
			if err != nil {
				return nil, err
			}
			if binary {
				logger.Debug("skipping binary file", zap.String("path", path))
				continue
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r, err := scanReader(ctx, engine, path, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		results = append(results, r...)
	}
	return results, nil
}

func scanReader(ctx context.Context, engine *matcher.Engine, name string, r io.Reader) ([]fileResult, error) {
	matches, err := engine.MatchReader(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return []fileResult{{Path: name, BlobID: matches[0].BlobID, Matches: matches}}, nil
}

// precompiled hands a database loaded from disk to the first compile of the
// same base mode and compiles everything else with the fallback.
type precompiled struct {
	mu       sync.Mutex
	data     []byte
	base     hs.ScanMode
	fallback matcher.Compiler
}

func loadPrecompiled(path string, fallback matcher.Compiler) (*precompiled, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	db, err := hs.UnmarshalDatabase(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	base := db.Mode()
	db.Close()
	logger.Debug("loaded precompiled database", zap.String("path", path), zap.Stringer("mode", base))
	return &precompiled{data: data, base: base, fallback: fallback}, nil
}

// Compile deserializes the loaded database with the full requested mode, so
// horizon bits the file does not record are kept.
func (p *precompiled) Compile(patterns []hs.Pattern, mode hs.ScanMode) (*hs.Database, error) {
	p.mu.Lock()
	if p.data != nil && p.base == mode.Base() {
		data := p.data
		p.data = nil
		p.mu.Unlock()
		return hs.UnmarshalDatabaseAs(data, mode)
	}
	p.mu.Unlock()
	return p.fallback.Compile(patterns, mode)
}

// Used reports whether a compile claimed the loaded database.
func (p *precompiled) Used() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data == nil
}

func outputMatchesJSON(cmd *cobra.Command, results []fileResult) error {
	if results == nil {
		results = []fileResult{}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// outputSARIF outputs matches in SARIF 2.1.0 format
func outputSARIF(cmd *cobra.Command, rules []*types.Rule, results []fileResult) error {
	sarif.ToolVersion = version
	report := sarif.NewReport()
	report.AddRules(rules)

	for _, r := range results {
		for _, m := range r.Matches {
			report.AddResult(m, r.Path)
		}
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}
