package matcher

import (
	"errors"
	"sync"
)

// scannerPool hands out scanner clones for concurrent scans. Unlike
// sync.Pool it remembers every clone it created so Close can free their
// scratch instead of leaving it to the garbage collector.
type scannerPool[T interface{ Close() error }] struct {
	mu     sync.Mutex
	newFn  func() (T, error)
	free   []T
	all    []T
	closed bool
}

func newScannerPool[T interface{ Close() error }](newFn func() (T, error)) *scannerPool[T] {
	return &scannerPool[T]{newFn: newFn}
}

func (p *scannerPool[T]) Get() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s, nil
	}
	s, err := p.newFn()
	if err != nil {
		return s, err
	}
	p.all = append(p.all, s)
	return s, nil
}

// Put returns s for reuse. After Close it is a no-op.
func (p *scannerPool[T]) Put(s T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.free = append(p.free, s)
	}
}

// Size reports how many clones the pool has created.
func (p *scannerPool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Close frees every clone the pool created, including those still
// borrowed.
func (p *scannerPool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for _, s := range p.all {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.all = nil
	p.free = nil
	return errors.Join(errs...)
}
