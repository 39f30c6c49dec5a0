package service

import (
	"sync"
)

// productLocks serializes mutations and runs per product id while letting
// different products proceed in parallel. Locks are never released from the
// map; the key space is bounded by the product registry.
type productLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a product id, creating it on first use, and
// returns the unlock function.
func (p *productLocks) Lock(productID string) func() {
	p.mu.Lock()
	l, ok := p.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[productID] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}
