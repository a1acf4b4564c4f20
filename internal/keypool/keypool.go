// Package keypool hands out API credentials in round-robin order.
package keypool

import (
	"errors"
	"strings"
	"sync/atomic"
)

// ErrNoKeys is returned when a pool holds no credentials.
var ErrNoKeys = errors.New("no api keys configured")

// Pool rotates through a fixed set of keys. It is safe for concurrent use.
type Pool struct {
	keys []string
	next atomic.Uint64
}

// New builds a pool from keys, dropping blanks and duplicates while keeping order.
func New(keys []string) *Pool {
	seen := make(map[string]struct{}, len(keys))
	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, key)
	}
	return &Pool{keys: cleaned}
}

// Acquire returns the next key in rotation.
func (p *Pool) Acquire() (string, error) {
	if p == nil || len(p.keys) == 0 {
		return "", ErrNoKeys
	}
	n := p.next.Add(1) - 1
	return p.keys[n%uint64(len(p.keys))], nil
}

// Len reports how many keys the pool holds.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns a copy of the pooled keys.
func (p *Pool) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}
