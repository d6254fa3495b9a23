// Package session tracks negotiation sessions across their lifetime: an
// in-memory registry the host application uses to submit, observe, and
// cancel negotiations. The engine owns each running session's state; the
// manager only holds handles and hands out snapshots.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/pkg/engine"
	"github.com/parley-ai/parley/pkg/models"
)

// managed pairs a session with the cancel func of its run context.
type managed struct {
	sess   *models.NegotiationSession
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager is the in-memory session registry. Safe for concurrent use.
type Manager struct {
	engine *engine.Engine

	mu       sync.RWMutex
	sessions map[string]*managed
}

// NewManager creates a manager driving sessions on the given engine.
// Panics if eng is nil.
func NewManager(eng *engine.Engine) *Manager {
	if eng == nil {
		panic("session.NewManager: engine must not be nil")
	}
	return &Manager{
		engine:   eng,
		sessions: make(map[string]*managed),
	}
}

// Create registers a new session in CREATED state and returns its snapshot.
func (m *Manager) Create(requester, rawDemand string) models.NegotiationSession {
	sess := models.NewSession(uuid.New().String(), requester, rawDemand)
	m.mu.Lock()
	m.sessions[sess.ID] = &managed{sess: sess, done: make(chan struct{})}
	m.mu.Unlock()
	return sess.Snapshot()
}

// Start launches the engine on a created session. It returns immediately;
// the run proceeds in its own goroutine until the terminal event. Starting
// an unknown or already-started session is an error.
func (m *Manager) Start(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if entry.cancel != nil {
		m.mu.Unlock()
		return fmt.Errorf("session already started: %s", sessionID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	entry.cancel = cancel
	m.mu.Unlock()

	go func() {
		defer cancel()
		defer close(entry.done)
		m.engine.Run(runCtx, entry.sess)
	}()
	return nil
}

// Run drives a created session synchronously, blocking until the terminal
// event, and returns the final snapshot.
func (m *Manager) Run(ctx context.Context, sessionID string) (models.NegotiationSession, error) {
	if err := m.Start(ctx, sessionID); err != nil {
		return models.NegotiationSession{}, err
	}
	m.mu.RLock()
	entry := m.sessions[sessionID]
	m.mu.RUnlock()
	<-entry.done
	return entry.sess.Snapshot(), nil
}

// Cancel requests cancellation of a running session. The flag is set first
// so the engine classifies the resulting unwind as cancellation, then the
// run context is cancelled to interrupt in-flight agent and coordinator
// calls.
func (m *Manager) Cancel(sessionID string) error {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	entry.sess.Cancel()
	if entry.cancel != nil {
		entry.cancel()
	}
	return nil
}

// Get returns a read-only snapshot of one session.
func (m *Manager) Get(sessionID string) (models.NegotiationSession, error) {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return models.NegotiationSession{}, fmt.Errorf("session not found: %s", sessionID)
	}
	return entry.sess.Snapshot(), nil
}

// List returns snapshots of all known sessions.
func (m *Manager) List() []models.NegotiationSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.NegotiationSession, 0, len(m.sessions))
	for _, entry := range m.sessions {
		out = append(out, entry.sess.Snapshot())
	}
	return out
}

// Wait blocks until the session's run has finished. Returns immediately for
// sessions that never started.
func (m *Manager) Wait(sessionID string) error {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if entry.cancel == nil {
		return nil
	}
	<-entry.done
	return nil
}

// Remove drops a finished session from the registry. Running sessions are
// cancelled first.
func (m *Manager) Remove(sessionID string) error {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	entry.sess.Cancel()
	if entry.cancel != nil {
		entry.cancel()
	}
	return nil
}
