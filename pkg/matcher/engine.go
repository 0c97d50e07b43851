package matcher

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/prefilter"
	"github.com/praetorian-inc/vectorscan-go/pkg/rule"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"go.uber.org/zap"
)

// Engine implements Matcher on the native engine. All rules are compiled
// into one block database and, unless disabled, one stream database.
//
// The databases are immutable and shared. Each concurrent scan borrows a
// scanner clone, with its own scratch, from a pool, so Match is safe for
// concurrent use.
type Engine struct {
	rules     []*types.Rule
	som       []bool          // rule was compiled with SomLeftMost
	captures  []*captureRegex // nil when the rule has no groups
	prefilter *prefilter.Prefilter

	contextLines int
	maxMatches   int
	chunk        ChunkConfig
	opts         Options
	logger       *zap.Logger
	metrics      *Metrics

	mu       sync.RWMutex
	closed   bool
	blockDB  *hs.Database
	streamDB *hs.Database
	block    *hs.BlockScanner  // template for blockPool
	stream   *hs.StreamScanner // template for streamPool

	blockPool  *scannerPool[*hs.BlockScanner]
	streamPool *scannerPool[*hs.StreamScanner]
}

// NewEngine compiles cfg.Rules and allocates the template scanners.
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("no rules provided")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	compiler := cfg.Compiler
	if compiler == nil {
		compiler = DirectCompiler
	}
	opts := cfg.Options
	if opts == (Options{}) {
		opts = DefaultOptions()
	}

	e := &Engine{
		rules:        cfg.Rules,
		som:          make([]bool, len(cfg.Rules)),
		captures:     make([]*captureRegex, len(cfg.Rules)),
		prefilter:    prefilter.New(cfg.Rules),
		contextLines: cfg.ContextLines,
		maxMatches:   cfg.MaxMatchesPerBlob,
		chunk:        cfg.Chunk.withDefaults(),
		opts:         opts,
		logger:       logger,
		metrics:      cfg.Metrics,
	}

	patterns, err := rule.Patterns(cfg.Rules)
	if err != nil {
		return nil, err
	}
	anySOM := false
	for i, r := range cfg.Rules {
		e.som[i] = patterns[i].Flags().Has(hs.SomLeftMost)
		anySOM = anySOM || e.som[i]
		if !e.som[i] {
			continue
		}
		c, err := compileCapture(r, opts.CaptureTimeout)
		if err != nil {
			// The engine accepts constructs regexp2 rejects; such rules
			// report matches without groups.
			logger.Debug("capture extraction unavailable", zap.String("rule", r.ID), zap.Error(err))
			continue
		}
		e.captures[i] = c
	}

	start := time.Now()
	e.blockDB, err = compileMode(compiler, patterns, hs.ModeBlock)
	if err != nil {
		return nil, fmt.Errorf("compile block database: %w", err)
	}
	if !cfg.DisableStreaming {
		mode := hs.ModeStream
		if anySOM {
			mode |= hs.ModeSomHorizonLarge
		}
		e.streamDB, err = compileMode(compiler, patterns, mode)
		if err != nil {
			e.blockDB.Close()
			return nil, fmt.Errorf("compile stream database: %w", err)
		}
	}

	if err := e.allocate(); err != nil {
		e.closeDatabases()
		return nil, err
	}

	logger.Debug("compiled rules",
		zap.Int("rules", len(cfg.Rules)),
		zap.Bool("streaming", e.streamDB != nil),
		zap.Duration("elapsed", time.Since(start)))
	return e, nil
}

func compileMode(c Compiler, patterns []hs.Pattern, mode hs.ScanMode) (*hs.Database, error) {
	db, err := c.Compile(patterns, mode)
	if err != nil {
		return nil, err
	}
	if db.Mode().Base() != mode.Base() {
		db.Close()
		return nil, fmt.Errorf("%w: compiler returned a %s database for %s", hs.ErrModeMismatch, db.Mode(), mode)
	}
	return db, nil
}

func (e *Engine) allocate() error {
	var err error
	e.block, err = hs.NewBlockScanner(e.blockDB)
	if err != nil {
		return fmt.Errorf("allocate scratch: %w", err)
	}
	e.blockPool = newScannerPool(e.block.Clone)
	if e.streamDB != nil {
		e.stream, err = hs.NewStreamScanner(e.streamDB)
		if err != nil {
			e.block.Close()
			return fmt.Errorf("allocate stream scratch: %w", err)
		}
		e.streamPool = newScannerPool(e.stream.Clone)
	}
	return nil
}

// Rules returns the rules in pattern-ID order.
func (e *Engine) Rules() []*types.Rule {
	return e.rules
}

// BlockDatabase returns the compiled block database. It stays owned by the
// engine.
func (e *Engine) BlockDatabase() *hs.Database {
	return e.blockDB
}

// StreamDatabase returns the compiled stream database, or nil when
// streaming is disabled.
func (e *Engine) StreamDatabase() *hs.Database {
	return e.streamDB
}

func (e *Engine) getBlock() (*hs.BlockScanner, error) {
	return e.blockPool.Get()
}

func (e *Engine) getStream() (*hs.StreamScanner, error) {
	return e.streamPool.Get()
}

// Match scans content against all loaded rules.
func (e *Engine) Match(content []byte) ([]*types.Match, error) {
	return e.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (e *Engine) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	result, err := e.MatchDetailed(content, blobID)
	if err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// MatchDetailed scans content and reports per-rule statistics alongside
// the matches. Blobs larger than the configured MaxBlockSize are fed through
// a stream in ReadSize pieces.
func (e *Engine) MatchDetailed(content []byte, blobID types.BlobID) (*MatchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	c := e.newCollector(blobID)
	c.setWindow(content, 0)

	if e.prefilter.Gated() {
		c.active = e.prefilter.Active(content)
		if e.prefilter.AllGated() && !prefilter.Any(c.active) {
			e.metrics.recordPrefilterSkip()
			return c.result(), nil
		}
	}

	var err error
	if len(content) > e.chunk.MaxBlockSize && e.stream != nil {
		err = e.scanChunked(c, content)
	} else {
		err = e.scanBlock(c, content)
	}
	if err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.result(), nil
}

func (e *Engine) scanBlock(c *collector, content []byte) error {
	scanner, err := e.getBlock()
	if err != nil {
		return fmt.Errorf("allocate scratch: %w", err)
	}
	defer e.blockPool.Put(scanner)

	start := time.Now()
	outcome, err := scanner.Scan(content, c.onMatch)
	c.duration += time.Since(start)
	e.metrics.recordScan("block", outcome.String(), len(content), time.Since(start))
	if err != nil {
		return fmt.Errorf("block scan: %w", err)
	}
	return nil
}

// scanChunked streams content, which is fully in memory, so the collector
// window covers everything scanned so far.
func (e *Engine) scanChunked(c *collector, content []byte) error {
	scanner, err := e.getStream()
	if err != nil {
		return fmt.Errorf("allocate stream scratch: %w", err)
	}
	defer e.streamPool.Put(scanner)

	st, err := scanner.Open()
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	start := time.Now()
	outcome := hs.Completed
	for _, chunk := range ChunkContent(content, e.chunk.ReadSize) {
		outcome, err = st.Scan(chunk.Content, c.onMatch)
		if err != nil || outcome == hs.Terminated {
			break
		}
	}
	if err != nil || outcome == hs.Terminated {
		st.Close(nil)
	} else {
		outcome, err = st.Close(c.onMatch)
	}
	c.duration += time.Since(start)
	e.metrics.recordScan("stream", outcome.String(), len(content), time.Since(start))
	if err != nil {
		return fmt.Errorf("stream scan: %w", err)
	}
	return nil
}

// Close releases all resources associated with the matcher, including every
// pooled scanner clone. Streams still open fail with ErrClosed afterwards
// and must still be closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []string
	if err := e.blockPool.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("free pooled scratch: %v", err))
	}
	if e.streamPool != nil {
		if err := e.streamPool.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("free pooled stream scratch: %v", err))
		}
	}
	if err := e.block.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("free scratch: %v", err))
	}
	if e.stream != nil {
		if err := e.stream.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("free stream scratch: %v", err))
		}
	}
	if err := e.closeDatabases(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close engine: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (e *Engine) closeDatabases() error {
	if err := e.blockDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	if e.streamDB != nil {
		if err := e.streamDB.Close(); err != nil {
			return fmt.Errorf("close stream database: %w", err)
		}
	}
	return nil
}

// Info describes the engine build and the compiled databases.
func (e *Engine) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "engine %s, %d rules", hs.Version(), len(e.rules))
	if size, err := e.blockDB.Size(); err == nil {
		fmt.Fprintf(&b, ", block database %d bytes", size)
	}
	if e.streamDB != nil {
		if size, err := e.streamDB.StreamSize(); err == nil {
			fmt.Fprintf(&b, ", stream state %d bytes", size)
		}
	}
	return b.String()
}
