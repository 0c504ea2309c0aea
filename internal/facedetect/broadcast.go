package facedetect

import (
	"sync"

	"github.com/kozaktomas/face-check/internal/constants"
)

// broadcaster fans snapshots out to subscribers. Slow subscribers miss events
// instead of blocking the publisher.
type broadcaster struct {
	listeners []chan Snapshot
	mu        sync.RWMutex
}

func (b *broadcaster) add() chan Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Snapshot, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

func (b *broadcaster) remove(ch <-chan Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(listener)
			return
		}
	}
}

func (b *broadcaster) send(s Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- s:
		default:
			// Listener buffer full, skip.
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}

func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
