package store

import (
	"errors"
	"fmt"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the cache files to merge from.
	SourcePaths []string
	// DestPath is the destination cache file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	EntriesMerged    int
	EntriesSkipped   int
	SourcesProcessed int
}

// Merge combines several cache files into one. Entries already present in
// the destination are kept.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	dest, err := New(Config{Path: cfg.DestPath})
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer dest.Close()

	stats := &MergeStats{}
	for _, sourcePath := range cfg.SourcePaths {
		src, err := NewSQLite(sourcePath)
		if err != nil {
			return stats, fmt.Errorf("opening %s: %w", sourcePath, err)
		}
		err = MergeStores(dest, src, stats)
		src.Close()
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
	}
	return stats, nil
}

// MergeStores copies every entry of src missing from dest and adds the
// counts to stats.
func MergeStores(dest, src Store, stats *MergeStats) error {
	entries, err := src.List()
	if err != nil {
		return err
	}
	for _, meta := range entries {
		_, err := dest.Get(meta.Key)
		if err == nil {
			stats.EntriesSkipped++
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		e, err := src.Get(meta.Key)
		if err != nil {
			return err
		}
		if err := dest.Put(e); err != nil {
			return err
		}
		stats.EntriesMerged++
	}
	stats.SourcesProcessed++
	return nil
}
