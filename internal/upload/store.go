package upload

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process SessionStore used in tests and single-node
// deployments. All writes for a session are serialized behind one mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists: %s", session.ID)
	}
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, errSessionNotFound(id)
	}
	copied := *session
	return &copied, nil
}

func (m *MemoryStore) SetTransferID(ctx context.Context, id, transferID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return errSessionNotFound(id)
	}
	session.TransferID = transferID
	session.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) AdvanceProgress(ctx context.Context, id string, progress int, status Status) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, errSessionNotFound(id)
	}
	if !session.Status.Terminal() {
		if progress > session.Progress {
			session.Progress = progress
		}
		if status.rank() > session.Status.rank() {
			session.Status = status
		}
		session.UpdatedAt = m.now()
	}
	copied := *session
	return &copied, nil
}

func (m *MemoryStore) MarkCompleted(ctx context.Context, id, finalURL string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, errSessionNotFound(id)
	}
	if session.Status.Terminal() {
		return nil, errInvalidState(fmt.Sprintf("session already %s", session.Status))
	}
	session.Status = StatusCompleted
	session.Progress = 100
	session.FinalURL = finalURL
	session.UpdatedAt = m.now()
	copied := *session
	return &copied, nil
}

func (m *MemoryStore) MarkFailed(ctx context.Context, id, message string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, errSessionNotFound(id)
	}
	// Terminal states are final; a completed session can never flip to
	// failed. The stored row comes back unchanged, as with AdvanceProgress.
	if !session.Status.Terminal() {
		session.Status = StatusFailed
		session.ErrorMessage = message
		session.UpdatedAt = m.now()
	}
	copied := *session
	return &copied, nil
}
