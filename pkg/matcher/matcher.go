package matcher

import (
	"errors"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"go.uber.org/zap"
)

// Matcher scans content for rule matches.
type Matcher interface {
	// Match scans content against all loaded rules.
	// Returns matches with offsets and capture groups.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content with a known BlobID.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// Close releases the compiled databases and scratch space.
	Close() error
}

// Compiler builds engine databases. It lets callers substitute a cache or a
// precompiled database for a fresh compile.
type Compiler interface {
	Compile(patterns []hs.Pattern, mode hs.ScanMode) (*hs.Database, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(patterns []hs.Pattern, mode hs.ScanMode) (*hs.Database, error)

func (f CompilerFunc) Compile(patterns []hs.Pattern, mode hs.ScanMode) (*hs.Database, error) {
	return f(patterns, mode)
}

// DirectCompiler compiles with the engine on every call.
var DirectCompiler Compiler = CompilerFunc(hs.Compile)

var (
	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = errors.New("matcher: engine closed")

	// ErrStreamClosed is returned by operations on a closed Stream.
	ErrStreamClosed = hs.ErrStreamClosed

	// ErrStreamingDisabled is returned by OpenStream when the engine was
	// built without a stream database.
	ErrStreamingDisabled = errors.New("matcher: streaming disabled")
)

// Config for matcher initialization.
type Config struct {
	// Rules to compile; rule i is compiled as engine pattern i.
	Rules []*types.Rule

	// ContextLines is how many lines before and after a match to capture.
	ContextLines int

	// MaxMatchesPerBlob limits matches returned per blob (0 = unlimited)
	MaxMatchesPerBlob int

	Chunk   ChunkConfig
	Options Options

	// Compiler builds the databases (default: DirectCompiler).
	Compiler Compiler

	// DisableStreaming skips the stream database. OpenStream then fails and
	// blobs larger than Chunk.MaxBlockSize are block scanned whole.
	DisableStreaming bool

	Logger  *zap.Logger
	Metrics *Metrics
}

// New creates an Engine with the given config.
func New(cfg Config) (*Engine, error) {
	return NewEngine(cfg)
}

var _ Matcher = (*Engine)(nil)
