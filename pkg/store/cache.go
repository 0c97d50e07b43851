package store

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"go.uber.org/zap"
)

// Cache compiles databases through a Store, so an unchanged pattern set is
// deserialized instead of recompiled. It satisfies matcher.Compiler.
type Cache struct {
	Store  Store
	Logger *zap.Logger
}

// NewCache wraps s. A nil logger discards output.
func NewCache(s Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{Store: s, Logger: logger}
}

// Key identifies a compiled database: engine version, mode, then each
// pattern's id, flags and expression in order.
func Key(patterns []hs.Pattern, mode hs.ScanMode) string {
	h := sha1.New()
	h.Write([]byte(hs.Version()))
	h.Write([]byte{0})

	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(mode))
	h.Write(buf[:4])
	for _, p := range patterns {
		id, _ := p.ID()
		binary.BigEndian.PutUint32(buf[:4], id)
		binary.BigEndian.PutUint32(buf[4:], uint32(p.Flags()))
		h.Write(buf[:])
		expr := p.Expression()
		binary.BigEndian.PutUint32(buf[:4], uint32(len(expr)))
		h.Write(buf[:4])
		h.Write(expr)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Compile returns the cached database for patterns and mode, compiling and
// storing it on a miss. Store failures degrade to a plain compile.
func (c *Cache) Compile(patterns []hs.Pattern, mode hs.ScanMode) (*hs.Database, error) {
	log := c.logger()
	key := Key(patterns, mode)

	if db, ok := c.load(key, mode, len(patterns)); ok {
		log.Debug("database cache hit", zap.String("key", key), zap.Stringer("mode", mode))
		return db, nil
	}

	start := time.Now()
	db, err := hs.Compile(patterns, mode)
	if err != nil {
		return nil, err
	}
	log.Debug("compiled database",
		zap.String("key", key),
		zap.Stringer("mode", mode),
		zap.Int("patterns", len(patterns)),
		zap.Duration("elapsed", time.Since(start)))

	if err := c.save(key, db, len(patterns)); err != nil {
		log.Warn("failed to cache database", zap.String("key", key), zap.Error(err))
	}
	return db, nil
}

func (c *Cache) load(key string, mode hs.ScanMode, count int) (*hs.Database, bool) {
	log := c.logger()
	e, err := c.Store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		log.Warn("database cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if e.EngineVersion != hs.Version() || e.Mode != mode || e.PatternCount != count {
		log.Debug("discarding stale cached database",
			zap.String("key", key),
			zap.String("engine_version", e.EngineVersion))
		c.evict(key)
		return nil, false
	}

	db, err := hs.UnmarshalDatabaseAs(e.Data, mode)
	if err != nil {
		log.Warn("cached database is unusable", zap.String("key", key), zap.Error(err))
		c.evict(key)
		return nil, false
	}
	return db, true
}

func (c *Cache) save(key string, db *hs.Database, count int) error {
	data, err := db.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serializing: %w", err)
	}
	size, err := db.Size()
	if err != nil {
		return err
	}
	return c.Store.Put(&Entry{
		Key:           key,
		Mode:          db.Mode(),
		EngineVersion: hs.Version(),
		PatternCount:  count,
		Size:          size,
		Data:          data,
		CreatedAt:     time.Now(),
	})
}

func (c *Cache) evict(key string) {
	if err := c.Store.Delete(key); err != nil {
		c.logger().Warn("failed to evict cached database", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Prune deletes entries compiled by an engine version other than the
// running one and returns how many were removed.
func Prune(s Store) (int, error) {
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.EngineVersion == hs.Version() {
			continue
		}
		if err := s.Delete(e.Key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
