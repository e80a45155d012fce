package dedupe

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	id         string
	processed  bool
	at         time.Time // processed_at for records, claimed_at for claims
	leaseUntil time.Time
	token      string        // claim token, empty once processed
	elem       *list.Element // position in Memory.order, processed records only
}

// Memory is an in-process Store bounded by both retention and MaxEntries.
// Processed records are evicted oldest first.
type Memory struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*memoryEntry
	order   *list.List
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:    opts.withDefaults(),
		entries: make(map[string]*memoryEntry),
		order:   list.New(),
	}
}

func (m *Memory) IsDuplicate(_ context.Context, id string) (bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || !e.processed {
		return false, nil
	}
	if m.expiredLocked(e, m.opts.now()) {
		m.removeLocked(e)
		return false, nil
	}
	return true, nil
}

func (m *Memory) MarkProcessed(_ context.Context, id, token string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	e, ok := m.entries[id]
	if ok && !m.expiredLocked(e, now) {
		if e.processed {
			return nil
		}
		if e.token != token {
			return ErrClaimLost
		}
	}
	if ok {
		m.removeLocked(e)
	}

	e = &memoryEntry{id: id, processed: true, at: now}
	e.elem = m.order.PushBack(e)
	m.entries[id] = e

	for m.order.Len() > m.opts.MaxEntries {
		m.removeLocked(m.order.Front().Value.(*memoryEntry))
	}
	return nil
}

func (m *Memory) Claim(_ context.Context, id string) (string, bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	if e, ok := m.entries[id]; ok {
		if !m.expiredLocked(e, now) {
			return "", false, nil
		}
		m.removeLocked(e)
	}

	token := newToken()
	m.entries[id] = &memoryEntry{
		id:         id,
		at:         now,
		leaseUntil: now.Add(m.opts.ClaimLease),
		token:      token,
	}
	return token, true, nil
}

func (m *Memory) Release(_ context.Context, id, token string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok && !e.processed && e.token == token {
		m.removeLocked(e)
	}
	return nil
}

func (m *Memory) Lease() time.Duration { return m.opts.ClaimLease }

func (m *Memory) Prune(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	removed := 0
	for _, e := range m.entries {
		if m.expiredLocked(e, now) {
			m.removeLocked(e)
			removed++
		}
	}
	return removed, nil
}

// Entries returns the number of processed records currently held.
func (m *Memory) Entries(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len(), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) expiredLocked(e *memoryEntry, now time.Time) bool {
	if e.processed {
		return !now.Before(e.at.Add(m.opts.Retention))
	}
	return !now.Before(e.leaseUntil)
}

func (m *Memory) removeLocked(e *memoryEntry) {
	if e.elem != nil {
		m.order.Remove(e.elem)
		e.elem = nil
	}
	delete(m.entries, e.id)
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyID
	}
	return id, nil
}
