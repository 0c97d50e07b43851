package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/matcher"
	"github.com/praetorian-inc/vectorscan-go/pkg/rule"
	"github.com/praetorian-inc/vectorscan-go/pkg/store"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	compileRulesPath string
	compileMode      string
	compileOutput    string
	compileCachePath string
	compileWatch     bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile rules into a serialized database",
	Long: `Compile rules into a serialized Vectorscan database that scan --db and
other tools can load without recompiling.

With --watch the rules path is watched and the database rewritten after
every change until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileRulesPath, "rules", "", "Path to custom rules file, pattern list or directory")
	compileCmd.Flags().StringVar(&compileMode, "mode", "block", "Database mode: block, stream, vectored")
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "rules.db", "Output database path")
	compileCmd.Flags().StringVar(&compileCachePath, "cache", "", "Compiled database cache (SQLite file)")
	compileCmd.Flags().BoolVar(&compileWatch, "watch", false, "Recompile when the rules change")
}

func runCompile(cmd *cobra.Command, args []string) error {
	mode, err := hs.ParseScanMode(compileMode)
	if err != nil {
		return err
	}
	if compileWatch && compileRulesPath == "" {
		return errors.New("--watch requires --rules")
	}

	compiler, closeCompiler, err := openCompiler(compileCachePath)
	if err != nil {
		return err
	}
	defer closeCompiler()

	build := func() error {
		rules, err := loadRules(compileRulesPath, "", "")
		if err != nil {
			return err
		}
		size, err := compileToFile(compiler, rules, mode, compileOutput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d rules (%s) into %s (%d bytes)\n",
			len(rules), mode, compileOutput, size)
		return nil
	}

	if err := build(); err != nil {
		return err
	}
	if !compileWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := rule.NewWatcher(rule.WatcherConfig{
		Path:   compileRulesPath,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	return watcher.Watch(ctx, build)
}

// streamModeFor adds the large start-of-match horizon to stream mode when a
// pattern tracks match starts.
func streamModeFor(mode hs.ScanMode, patterns []hs.Pattern) hs.ScanMode {
	if mode.Base() != hs.ModeStream {
		return mode
	}
	for _, p := range patterns {
		if p.Flags().Has(hs.SomLeftMost) {
			return mode | hs.ModeSomHorizonLarge
		}
	}
	return mode
}

// compileToFile compiles rules for mode and writes the serialized database,
// returning its length.
func compileToFile(compiler matcher.Compiler, rules []*types.Rule, mode hs.ScanMode, path string) (int, error) {
	patterns, err := rule.Patterns(rules)
	if err != nil {
		return 0, err
	}
	mode = streamModeFor(mode, patterns)

	start := time.Now()
	db, err := compiler.Compile(patterns, mode)
	if err != nil {
		return 0, fmt.Errorf("compiling: %w", err)
	}
	defer db.Close()

	data, err := db.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("serializing: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}

	logger.Info("compiled database",
		zap.String("output", path),
		zap.Stringer("mode", mode),
		zap.Int("patterns", len(patterns)),
		zap.Duration("elapsed", time.Since(start)))
	return len(data), nil
}

// openCompiler returns the cache-backed compiler for cachePath, or the
// direct compiler when cachePath is empty.
func openCompiler(cachePath string) (matcher.Compiler, func(), error) {
	if cachePath == "" {
		return matcher.DirectCompiler, func() {}, nil
	}
	s, err := store.New(store.Config{Path: cachePath})
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}
	closer := func() {
		if err := s.Close(); err != nil {
			logger.Warn("closing cache", zap.Error(err))
		}
	}
	return store.NewCache(s, logger), closer, nil
}
