package chess

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the persisted form of the live session.
type Snapshot struct {
	SessionUUID string    `json:"session_uuid"`
	BaseFEN     string    `json:"base_fen"`
	Moves       []string  `json:"moves"`
	Level       int       `json:"level"`
	EngineColor string    `json:"engine_color"`
	Archived    bool      `json:"archived,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store keeps the latest snapshot of the session so it survives restarts.
// Load returns nil, nil when nothing is stored.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Close() error
}

type memoryStore struct {
	mu   sync.Mutex
	snap *Snapshot
}

func NewMemoryStore() Store {
	return &memoryStore{}
}

func (m *memoryStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	c := *snap
	c.Moves = append([]string(nil), snap.Moves...)
	m.mu.Lock()
	m.snap = &c
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, nil
	}
	c := *m.snap
	c.Moves = append([]string(nil), m.snap.Moves...)
	return &c, nil
}

func (m *memoryStore) Close() error { return nil }
