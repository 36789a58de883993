// Package cachetest fournit un cache.KV en mémoire pour les tests.
package cachetest

import (
	"context"
	"sync"
	"time"

	"marketplace_back_end/internal/cache"
)

type memEntry struct {
	value   string
	set     []string
	expires time.Time
}

var _ cache.KV = (*MemKV)(nil)

// MemKV est un KV en mémoire avec horloge contrôlée.
type MemKV struct {
	mu   sync.Mutex
	now  time.Time
	data map[string]*memEntry
}

func NewMemKV() *MemKV {
	return &MemKV{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), data: map[string]*memEntry{}}
}

// Advance avance l'horloge du KV.
func (m *MemKV) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *MemKV) live(key string) (*memEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now.Before(e.expires) {
		delete(m.data, key)
		return nil, false
	}
	return e, true
}

func (m *MemKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &memEntry{value: value, expires: m.now.Add(ttl)}
	return nil
}

func (m *MemKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", cache.ErrNotFound
	}
	return e.value, nil
}

func (m *MemKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *MemKV) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return 0, nil
	}
	return e.expires.Sub(m.now), nil
}

func (m *MemKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemKV) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil, nil
	}
	return append([]string(nil), e.set...), nil
}

func (m *MemKV) ReplaceSet(_ context.Context, key, member string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &memEntry{set: []string{member}, expires: m.now.Add(ttl)}
	return nil
}
