// Package session keeps one uploaded dataset per browser session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "schedview/internal/log"
	"schedview/internal/model"
)

// Store is the state of one session: the active dataset and the date last
// opened in the detail panel.
type Store struct {
	mu       sync.RWMutex
	dataset  *model.Dataset
	source   string
	loadedAt time.Time
	selected *model.Date
	lastSeen time.Time
}

// Replace swaps the dataset wholesale and clears the selected date.
func (s *Store) Replace(ds *model.Dataset, source string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = ds
	s.source = source
	s.loadedAt = now
	s.selected = nil
}

// Dataset returns the active dataset, or nil before the first upload.
func (s *Store) Dataset() *model.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Source returns the name of the file the dataset came from.
func (s *Store) Source() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source, s.loadedAt
}

func (s *Store) Select(d model.Date) {
	s.mu.Lock()
	s.selected = &d
	s.mu.Unlock()
}

// Selected returns the date last opened in the detail panel.
func (s *Store) Selected() (model.Date, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return model.Date{}, false
	}
	return *s.selected, true
}

// Manager hands out stores by session id and drops idle ones.
type Manager struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	stores map[string]*Store
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		ttl:    ttl,
		now:    time.Now,
		stores: make(map[string]*Store),
	}
}

// Get returns the store for id, creating a new session when id is empty,
// unknown or expired. The returned id is the one to hand back to the client.
func (m *Manager) Get(id string) (string, *Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if s, ok := m.stores[id]; ok && id != "" {
		if now.Sub(s.lastSeen) <= m.ttl {
			s.lastSeen = now
			return id, s
		}
		delete(m.stores, id)
	}

	id = uuid.NewString()
	s := &Store{lastSeen: now}
	m.stores[id] = s
	return id, s
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for id, s := range m.stores {
		if now.Sub(s.lastSeen) > m.ttl {
			delete(m.stores, id)
			dropped++
		}
	}
	if dropped > 0 {
		appLog.Debug("sessions expired", "dropped", dropped, "active", len(m.stores))
	}
	return dropped
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}
