package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/praetorian-inc/vectorscan-go/pkg/prefilter"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
)

// Stream scans one logical blob delivered in pieces. Matches spanning
// writes are found. Snippets and context are cut from the bytes still held
// in the stream's history; after-context only covers bytes already written.
//
// A Stream is safe for use from one goroutine at a time; its methods
// serialize internally.
type Stream struct {
	e       *Engine
	id      string
	scanner *hs.StreamScanner
	st      *hs.Stream
	c       *collector
	tracker *prefilter.Tracker

	mu      sync.Mutex
	written int64
	history []byte
	stopped bool // the match limit was reached
	closed  bool
}

// OpenStream starts a new stream. Its blob ID is derived from a fresh UUID.
func (e *Engine) OpenStream() (*Stream, error) {
	return e.OpenStreamWithID(uuid.NewString())
}

// OpenStreamWithID starts a new stream named id.
func (e *Engine) OpenStreamWithID(id string) (*Stream, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.stream == nil {
		return nil, ErrStreamingDisabled
	}

	scanner, err := e.getStream()
	if err != nil {
		return nil, fmt.Errorf("allocate stream scratch: %w", err)
	}
	st, err := scanner.Open()
	if err != nil {
		e.streamPool.Put(scanner)
		return nil, fmt.Errorf("open stream: %w", err)
	}

	s := &Stream{
		e:       e,
		id:      id,
		scanner: scanner,
		st:      st,
		c:       e.newCollector(types.StreamBlobID(id)),
	}
	if e.prefilter.Gated() {
		s.tracker = e.prefilter.NewTracker()
		s.c.active = s.tracker.Active()
	}
	e.metrics.streamOpened()
	return s, nil
}

// ID returns the stream's identifier.
func (s *Stream) ID() string {
	return s.id
}

// BlobID returns the blob ID reported on the stream's matches.
func (s *Stream) BlobID() types.BlobID {
	return s.c.blobID
}

// Written returns the number of bytes written so far.
func (s *Stream) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Write scans the next piece of the stream and returns the matches that
// ended inside it. Once MaxMatchesPerBlob is reached further writes are
// accepted but not scanned.
func (s *Stream) Write(p []byte) ([]*types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}

	s.e.mu.RLock()
	defer s.e.mu.RUnlock()
	if s.e.closed {
		return nil, ErrClosed
	}

	if s.stopped {
		s.written += int64(len(p))
		return nil, nil
	}

	window := make([]byte, 0, len(s.history)+len(p))
	window = append(window, s.history...)
	window = append(window, p...)
	s.c.setWindow(window, s.written-int64(len(s.history)))
	if s.tracker != nil {
		s.c.active = s.tracker.Observe(p)
	}

	start := time.Now()
	outcome, err := s.st.Scan(p, s.c.onMatch)
	s.e.metrics.recordScan("stream", outcome.String(), len(p), time.Since(start))
	s.written += int64(len(p))

	keep := min(s.e.chunk.HistorySize, len(window))
	s.history = window[len(window)-keep:]

	if err != nil {
		return nil, fmt.Errorf("stream scan: %w", err)
	}
	if s.c.err != nil {
		return nil, s.c.err
	}
	if outcome == hs.Terminated {
		s.stopped = true
	}
	return s.c.take(), nil
}

// Close reports matches that complete at end of data and releases the
// stream.
func (s *Stream) Close() ([]*types.Match, error) {
	return s.finish(true)
}

// Abort releases the stream without reporting end-of-data matches.
func (s *Stream) Abort() error {
	_, err := s.finish(false)
	return err
}

func (s *Stream) finish(report bool) ([]*types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	s.closed = true

	s.e.mu.RLock()
	defer s.e.mu.RUnlock()
	defer s.e.metrics.streamClosed()

	var handler hs.MatchHandler
	if report && !s.stopped {
		s.c.setWindow(s.history, s.written-int64(len(s.history)))
		handler = s.c.onMatch
	}
	_, err := s.st.Close(handler)
	if !s.e.closed {
		s.e.streamPool.Put(s.scanner)
	}
	s.scanner = nil
	s.history = nil

	if err != nil {
		if errors.Is(err, hs.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("close stream: %w", err)
	}
	if s.c.err != nil {
		return nil, s.c.err
	}
	return s.c.take(), nil
}

// MatchReader scans r through a stream, reading ChunkConfig.ReadSize bytes
// at a time. ctx is checked between reads; on cancellation the stream is
// abandoned and ctx's error returned.
func (e *Engine) MatchReader(ctx context.Context, r io.Reader) ([]*types.Match, error) {
	s, err := e.OpenStream()
	if err != nil {
		return nil, err
	}

	var all []*types.Match
	buf := make([]byte, e.chunk.ReadSize)
	for {
		if err := ctx.Err(); err != nil {
			s.Abort()
			return nil, err
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			ms, err := s.Write(buf[:n])
			if err != nil {
				s.Abort()
				return nil, err
			}
			all = append(all, ms...)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			s.Abort()
			return nil, fmt.Errorf("read: %w", rerr)
		}
	}

	ms, err := s.Close()
	if err != nil {
		return nil, err
	}
	return append(all, ms...), nil
}
