package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/praetorian-inc/vectorscan-go/pkg/matcher"
	"github.com/praetorian-inc/vectorscan-go/pkg/rule"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"go.uber.org/zap"
)

var (
	// ErrUnknownStream is returned for stream IDs that were never opened or
	// are already closed.
	ErrUnknownStream = errors.New("scanner: unknown stream")

	// ErrClosed is returned by operations on a closed Core.
	ErrClosed = errors.New("scanner: closed")
)

var (
	// cachedBuiltinRules holds builtin rules loaded once per process
	cachedBuiltinRules []*types.Rule
	cachedRulesErr     error
	cacheOnce          sync.Once
)

// loadBuiltinRulesCached loads builtin rules once and caches them
func loadBuiltinRulesCached() ([]*types.Rule, error) {
	cacheOnce.Do(func() {
		loader := rule.NewLoader()
		cachedBuiltinRules, cachedRulesErr = loader.LoadBuiltinRules()
	})
	return cachedBuiltinRules, cachedRulesErr
}

// GetBuiltinRules returns the built-in rules (cached)
func GetBuiltinRules() ([]*types.Rule, error) {
	return loadBuiltinRulesCached()
}

// ParseRules interprets a rules argument:
// - "" or "builtin" loads builtin rules (cached)
// - anything else is a JSON array of rules
func ParseRules(rulesJSON string) ([]*types.Rule, error) {
	if rulesJSON == "" || rulesJSON == "builtin" {
		return loadBuiltinRulesCached()
	}
	var rules []*types.Rule
	if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	for _, r := range rules {
		if r != nil && r.StructuralID == "" {
			r.StructuralID = r.ComputeStructuralID()
		}
	}
	if err := rule.ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Config configures a Core.
type Config struct {
	// Rules to scan with. Empty means the builtin rules.
	Rules []*types.Rule

	ContextLines      int
	MaxMatchesPerBlob int
	Compiler          matcher.Compiler
	Logger            *zap.Logger
	Metrics           *matcher.Metrics
}

// Core wraps the matcher and a registry of open streams.
type Core struct {
	engine *matcher.Engine
	logger *zap.Logger

	mu      sync.Mutex
	streams map[string]*matcher.Stream
	closed  bool
}

// NewCore creates a new Core scanner.
func NewCore(cfg Config) (*Core, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rules := cfg.Rules
	if len(rules) == 0 {
		var err error
		rules, err = loadBuiltinRulesCached()
		if err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
		logger.Debug("using builtin rules", zap.Int("rules", len(rules)))
	}

	engine, err := matcher.New(matcher.Config{
		Rules:             rules,
		ContextLines:      cfg.ContextLines,
		MaxMatchesPerBlob: cfg.MaxMatchesPerBlob,
		Compiler:          cfg.Compiler,
		Logger:            logger,
		Metrics:           cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("scanner ready", zap.Int("rules", len(rules)))

	return &Core{
		engine:  engine,
		logger:  logger,
		streams: make(map[string]*matcher.Stream),
	}, nil
}

// Engine returns the underlying matcher.
func (c *Core) Engine() *matcher.Engine {
	return c.engine
}

// Scan scans a single content string
func (c *Core) Scan(content, source string) (*ScanResult, error) {
	data := []byte(content)
	blobID := types.ComputeBlobID(data)
	matches, err := c.engine.MatchWithBlobID(data, blobID)
	if err != nil {
		return nil, err
	}
	return &ScanResult{
		Source:  source,
		BlobID:  blobID,
		Matches: nonNil(matches),
	}, nil
}

// ScanBatch scans multiple content items. Items that fail are reported in
// Failed and do not abort the batch.
func (c *Core) ScanBatch(items []ContentItem) (*BatchScanResult, error) {
	result := &BatchScanResult{Results: []ScanResult{}}
	for _, item := range items {
		r, err := c.Scan(item.Content, item.Source)
		if errors.Is(err, matcher.ErrClosed) {
			return nil, ErrClosed
		}
		if err != nil {
			c.logger.Warn("batch item failed", zap.String("source", item.Source), zap.Error(err))
			result.Failed = append(result.Failed, ItemError{Source: item.Source, Error: err.Error()})
			continue
		}
		result.Results = append(result.Results, *r)
		result.Total += len(r.Matches)
	}
	return result, nil
}

// OpenStream opens a stream and returns its ID.
func (c *Core) OpenStream() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}

	s, err := c.engine.OpenStream()
	if err != nil {
		return "", err
	}
	c.streams[s.ID()] = s
	c.logger.Debug("stream opened", zap.String("stream_id", s.ID()))
	return s.ID(), nil
}

// WriteStream scans content as the next piece of stream id.
func (c *Core) WriteStream(id, content string) (*StreamResult, error) {
	s, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	matches, err := s.Write([]byte(content))
	if err != nil {
		return nil, err
	}
	return streamResult(s, matches), nil
}

// CloseStream closes stream id, returning matches that complete at end of
// data. The ID is forgotten even when closing fails.
func (c *Core) CloseStream(id string) (*StreamResult, error) {
	c.mu.Lock()
	s, ok := c.streams[id]
	delete(c.streams, id)
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStream, id)
	}

	matches, err := s.Close()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("stream closed", zap.String("stream_id", id), zap.Int64("written", s.Written()))
	return streamResult(s, matches), nil
}

// Streams returns the IDs of the open streams, sorted.
func (c *Core) Streams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Core) lookup(id string) (*matcher.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	s, ok := c.streams[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStream, id)
	}
	return s, nil
}

// Close aborts every open stream, then releases the matcher. Calling Close
// again is a no-op.
func (c *Core) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := c.streams
	c.streams = make(map[string]*matcher.Stream)
	c.mu.Unlock()

	var errs []error
	for id, s := range streams {
		if err := s.Abort(); err != nil && !errors.Is(err, matcher.ErrStreamClosed) {
			errs = append(errs, fmt.Errorf("stream %s: %w", id, err))
		}
	}
	if len(streams) > 0 {
		c.logger.Debug("aborted open streams", zap.Int("streams", len(streams)))
	}
	if err := c.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func streamResult(s *matcher.Stream, matches []*types.Match) *StreamResult {
	return &StreamResult{
		StreamID: s.ID(),
		BlobID:   s.BlobID(),
		Written:  s.Written(),
		Matches:  nonNil(matches),
	}
}

func nonNil(matches []*types.Match) []*types.Match {
	if matches == nil {
		return []*types.Match{}
	}
	return matches
}
