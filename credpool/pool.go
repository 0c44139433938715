// Package credpool implements a round-robin allocator over per-user
// credential triples, so concurrent analyses spread their rate-limit budget
// across several upstream accounts. See spec.md §4.4.
package credpool

import (
	"context"
	"sync"

	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/upstream"
)

// Pool round-robins over a fixed list of credentials.
type Pool struct {
	baseURL string
	creds   []upstream.Credential

	mu   sync.Mutex
	next int
}

// New builds a pool over creds. Pooling an empty list is valid (Next always
// errors) so callers don't need to special-case "no credentials configured".
func New(baseURL string, creds []upstream.Credential) *Pool {
	return &Pool{baseURL: baseURL, creds: creds}
}

// Len reports how many credentials the pool cycles over.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Next increments the round-robin index and returns a freshly connected
// Upstream Client for the credential at that slot.
func (p *Pool) Next(ctx context.Context) (*upstream.Client, error) {
	p.mu.Lock()
	if len(p.creds) == 0 {
		p.mu.Unlock()
		return nil, errors.New("credpool: no credentials configured")
	}
	cred := p.creds[p.next]
	p.next = (p.next + 1) % len(p.creds)
	p.mu.Unlock()

	client, err := upstream.Connect(ctx, p.baseURL, cred)
	if err != nil {
		return nil, errors.Wrapf(err, "credpool: failed to connect credential %s", cred.ID)
	}
	return client, nil
}
