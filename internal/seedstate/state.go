// Package seedstate persists per-facade seeding progress so restarts
// resume incremental polling instead of re-reading whole collections.
package seedstate

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Status describes where a facade's seeding currently stands
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// FacadeState is the seed state for a single facade
type FacadeState struct {
	Facade        string    `json:"facade"`
	Collection    string    `json:"collection"`
	LastPollTime  time.Time `json:"lastPollTime"`
	LastSeedTime  time.Time `json:"lastSeedTime"`
	RecordsSeeded int64     `json:"recordsSeeded"`
	Status        Status    `json:"status"`
	Progress      string    `json:"progress,omitempty"`
}

type state struct {
	Facades   map[string]*FacadeState `json:"facades"`
	LastSaved time.Time               `json:"lastSaved"`
}

// Manager handles loading and saving seed state
type Manager struct {
	filePath string
	state    *state
	mutex    sync.RWMutex
}

// NewManager creates a seed state manager persisting to filePath
func NewManager(filePath string) *Manager {
	return &Manager{
		filePath: filePath,
		state: &state{
			Facades: make(map[string]*FacadeState),
		},
	}
}

// Load loads the seed state from disk. A missing file is a fresh start
func (m *Manager) Load() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, err := os.Stat(m.filePath); os.IsNotExist(err) {
		log.Printf("Seed state file not found, starting fresh: %s", m.filePath)
		return nil
	}

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		return fmt.Errorf("failed to read seed state file: %w", err)
	}

	if err := json.Unmarshal(data, m.state); err != nil {
		return fmt.Errorf("failed to parse seed state file: %w", err)
	}

	log.Printf("Loaded seed state for %d facades from %s", len(m.state.Facades), m.filePath)
	return nil
}

// Save writes the current seed state to disk atomically
func (m *Manager) Save() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.state.LastSaved = time.Now()

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal seed state: %w", err)
	}

	// Write to temporary file first, then atomic move
	tempFile := m.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp seed state file: %w", err)
	}
	if err := os.Rename(tempFile, m.filePath); err != nil {
		return fmt.Errorf("failed to move seed state file: %w", err)
	}

	return nil
}

// Get returns a copy of the state for a facade, or nil when unknown
func (m *Manager) Get(facadeName string) *FacadeState {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if s, exists := m.state.Facades[facadeName]; exists {
		copied := *s
		return &copied
	}
	return nil
}

// ensure returns the live entry for a facade, creating it when absent.
// Callers must hold the write lock.
func (m *Manager) ensure(facadeName string) *FacadeState {
	s, exists := m.state.Facades[facadeName]
	if !exists {
		s = &FacadeState{Facade: facadeName, Status: StatusIdle}
		m.state.Facades[facadeName] = s
	}
	return s
}

// SetCollection records which collection seeds the facade
func (m *Manager) SetCollection(facadeName, collection string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ensure(facadeName).Collection = collection
}

// SetStatus updates the seeding status for a facade
func (m *Manager) SetStatus(facadeName string, status Status) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ensure(facadeName).Status = status
}

// SetProgress updates the human-readable progress for a facade
func (m *Manager) SetProgress(facadeName, progress string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ensure(facadeName).Progress = progress
}

// SetLastPollTime updates the last poll time for a facade
func (m *Manager) SetLastPollTime(facadeName string, pollTime time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ensure(facadeName).LastPollTime = pollTime
}

// RecordSeeded adds to the seeded record counter and stamps the seed time
func (m *Manager) RecordSeeded(facadeName string, count int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s := m.ensure(facadeName)
	s.RecordsSeeded += count
	s.LastSeedTime = time.Now()
}

// StartPeriodicSave saves the state at the given interval until stopCh
// closes. Runs as a goroutine managed by the caller's WaitGroup.
func (m *Manager) StartPeriodicSave(interval time.Duration, stopCh <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Save(); err != nil {
				log.Printf("Failed to save seed state: %v", err)
			}
		case <-stopCh:
			return
		}
	}
}
