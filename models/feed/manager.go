package feed

import (
	"sync"

	"github.com/Shiftline/shiftline-notify/store"
	"github.com/Shiftline/shiftline-notify/types"
)

// Manager hands out one Engine per user, created lazily on first use.
// Engines are cheap (the heavy state is the fetched snapshot) and are kept
// for the process lifetime; per-user durable state lives in the read-state
// store, so an engine evicted by a restart loses nothing but its cache.
type Manager struct {
	source    FeedSource
	readStore store.ReadStateStore
	publisher types.CounterPublisher

	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewManager creates an engine manager over the shared dependencies.
func NewManager(source FeedSource, readStore store.ReadStateStore, publisher types.CounterPublisher) *Manager {
	return &Manager{
		source:    source,
		readStore: readStore,
		publisher: publisher,
		engines:   make(map[string]*Engine),
	}
}

// Engine returns the engine for userID, creating it if needed.
func (m *Manager) Engine(userID string) *Engine {
	m.mu.RLock()
	eng, ok := m.engines[userID]
	m.mu.RUnlock()
	if ok {
		return eng
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if eng, ok := m.engines[userID]; ok {
		return eng
	}
	eng = NewEngine(userID, m.source, m.readStore, m.publisher)
	m.engines[userID] = eng
	return eng
}

// ActiveEngines returns the engines created so far. Used by the background
// refresh service to re-fetch feeds for users it already knows about.
func (m *Manager) ActiveEngines() map[string]*Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Engine, len(m.engines))
	for userID, eng := range m.engines {
		out[userID] = eng
	}
	return out
}
