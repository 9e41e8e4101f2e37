package userstate

import (
	"context"
	"sync"
)

// keyGuard serializes work per key. Callers for the same key are admitted
// in arrival order; different keys never block each other.
type keyGuard struct {
	mu sync.Mutex
	// A key is present while held. Its slice is the queue of waiters, each
	// woken by closing its channel.
	queues map[string][]chan struct{}
}

func newKeyGuard() *keyGuard {
	return &keyGuard{queues: make(map[string][]chan struct{})}
}

// acquire blocks until key is free or ctx is done. The returned release
// must be called exactly once; extra calls are ignored.
func (g *keyGuard) acquire(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	queue, held := g.queues[key]
	if !held {
		g.queues[key] = nil
		g.mu.Unlock()
		return g.releaser(key), nil
	}
	ready := make(chan struct{})
	g.queues[key] = append(queue, ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return g.releaser(key), nil
	case <-ctx.Done():
	}

	g.mu.Lock()
	queue = g.queues[key]
	for i, w := range queue {
		if w == ready {
			g.queues[key] = append(queue[:i:i], queue[i+1:]...)
			g.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	g.mu.Unlock()
	// Ownership was handed over while ctx was being cancelled; pass it on.
	g.release(key)
	return nil, ctx.Err()
}

func (g *keyGuard) releaser(key string) func() {
	var once sync.Once
	return func() { once.Do(func() { g.release(key) }) }
}

func (g *keyGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	queue := g.queues[key]
	if len(queue) == 0 {
		delete(g.queues, key)
		return
	}
	next := queue[0]
	g.queues[key] = queue[1:]
	close(next)
}

// held reports whether key is currently owned.
func (g *keyGuard) held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.queues[key]
	return ok
}
