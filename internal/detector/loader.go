package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

// ErrNotLoaded is returned by Loader.Model callers when no model is available.
var ErrNotLoaded = errors.New("detector not loaded")

// Loader owns the single detector handle. Construction is guarded so that
// concurrent callers share one in-flight load instead of starting their own.
type Loader struct {
	backend Backend
	opts    Options
	timeout time.Duration

	mu       sync.RWMutex
	model    Model
	inflight chan struct{} // non-nil while a load is running, closed when it finishes
	lastErr  error
}

// NewLoader creates a loader for the given backend. A zero timeout disables the load deadline.
func NewLoader(backend Backend, opts Options, timeout time.Duration) *Loader {
	return &Loader{
		backend: backend,
		opts:    opts,
		timeout: timeout,
	}
}

// Backend returns the backend name.
func (l *Loader) Backend() string {
	return l.backend.Name()
}

// Model returns the loaded model or nil.
func (l *Loader) Model() Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model
}

// Loaded reports whether a model handle exists.
func (l *Loader) Loaded() bool {
	return l.Model() != nil
}

// Loading reports whether a load is in flight.
func (l *Loader) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inflight != nil
}

// LastError returns the error of the most recent failed load, if any.
func (l *Loader) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Load returns the model, constructing it if needed. If another goroutine is
// already loading, Load waits for that attempt and returns its outcome.
func (l *Loader) Load(ctx context.Context) (Model, error) {
	l.mu.Lock()
	if l.model != nil {
		m := l.model
		l.mu.Unlock()
		return m, nil
	}
	if wait := l.inflight; wait != nil {
		l.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		l.mu.RLock()
		defer l.mu.RUnlock()
		if l.model != nil {
			return l.model, nil
		}
		return nil, l.lastErr
	}
	done := make(chan struct{})
	l.inflight = done
	l.mu.Unlock()

	m, err := l.construct(ctx)

	l.mu.Lock()
	if err == nil {
		l.model = m
		l.lastErr = nil
	} else {
		l.lastErr = err
	}
	l.inflight = nil
	l.mu.Unlock()
	close(done)

	return m, err
}

// construct builds the model detached from the caller's cancellation so that a
// disconnecting client does not abort a load other callers are waiting on.
func (l *Loader) construct(ctx context.Context) (Model, error) {
	ctx = context.WithoutCancel(ctx)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	m, err := l.backend.Create(ctx, l.opts)
	if err != nil {
		return nil, fmt.Errorf("creating %s detector: %w", l.backend.Name(), err)
	}
	if m == nil {
		return nil, fmt.Errorf("creating %s detector: %w", l.backend.Name(), ErrNotLoaded)
	}
	log.Printf("Face detector %s loaded in %s", m.Name(), time.Since(start).Round(time.Millisecond))
	return m, nil
}

// Close releases the model if it holds resources.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.model.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("closing detector: %w", err)
		}
	}
	l.model = nil
	return nil
}
