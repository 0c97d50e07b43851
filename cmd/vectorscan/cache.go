package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/store"
	"github.com/spf13/cobra"
)

var (
	cachePath   string
	mergeOutput string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the compiled database cache",
	Long:  "Commands for inspecting, pruning and merging compiled database caches",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached databases",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove databases built by another engine version",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

var cacheMergeCmd = &cobra.Command{
	Use:   "merge <source1.db> [source2.db...]",
	Short: "Merge cache files",
	Long: `Merge cache files into one output cache. Entries already present in the
output are kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCacheMerge,
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheMergeCmd)
	cacheListCmd.Flags().StringVar(&cachePath, "cache", "vectorscan-cache.db", "Cache file")
	cachePruneCmd.Flags().StringVar(&cachePath, "cache", "vectorscan-cache.db", "Cache file")
	cacheMergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "vectorscan-cache.db", "Output cache path")
}

func runCacheList(cmd *cobra.Command, args []string) error {
	s, err := store.NewSQLite(cachePath)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Key\tMode\tPatterns\tSize\tEngine\tCreated\n")
	fmt.Fprintf(w, "---\t----\t--------\t----\t------\t-------\n")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			e.Key[:12], e.Mode, e.PatternCount, e.Size, e.EngineVersion, e.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	s, err := store.NewSQLite(cachePath)
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := store.Prune(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale databases\n", removed)
	return nil
}

func runCacheMerge(cmd *cobra.Command, args []string) error {
	stats, err := store.Merge(store.MergeConfig{
		SourcePaths: args,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merge complete:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Sources processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(cmd.OutOrStdout(), "  Entries merged: %d\n", stats.EntriesMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Entries skipped: %d\n", stats.EntriesSkipped)
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", mergeOutput)
	return nil
}
