package client

import (
	"sync"
	"time"

	"nostrium.dev/utils/context"
	"nostrium.dev/utils/log"
)

// Manager owns the registry of relay sessions keyed by SessionKey, per
// spec.md's client-side ownership model: the manager exclusively owns the
// registry, each relay session exclusively owns its transport.
type Manager struct {
	mu       sync.Mutex
	sessions map[SessionKey]*RelayWorker

	// restartBackoff is the delay before a transiently-failed worker is
	// respawned. Exposed for tests.
	restartBackoff time.Duration
}

// NewManager builds an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions:       map[SessionKey]*RelayWorker{},
		restartBackoff: 2 * time.Second,
	}
}

// GetOrStartSession normalizes relayURL/opts.Pubkey into a Session Key and
// returns the live worker for it, spawning one under a supervisor if none
// exists yet. The supervisor restarts a worker that stops abnormally
// (transport or decode error); it does not restart one stopped via
// Shutdown.
func (m *Manager) GetOrStartSession(ctx context.T, relayURL string, opts Options) (*RelayWorker, error) {
	key, err := NewSessionKey(relayURL, opts.Pubkey)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.sessions[key]; ok && w.Phase() != Disconnected {
		return w, nil
	}

	w := newRelayWorker(key, opts)
	m.sessions[key] = w
	go m.supervise(ctx, w)
	return w, nil
}

// supervise runs w and, on an abnormal stop, respawns a fresh worker under
// the same key after a backoff. A normal Shutdown (StopErr nil) ends the
// supervision.
func (m *Manager) supervise(ctx context.T, w *RelayWorker) {
	for {
		w.run(ctx)
		if ctx.Err() != nil {
			return
		}
		if w.StopErr() == nil {
			return
		}
		log.W.F("relay worker %s stopped (%v), restarting", w.key.URL, w.StopErr())
		select {
		case <-time.After(m.restartBackoff):
		case <-ctx.Done():
			return
		}
		next := newRelayWorker(w.key, w.opts)
		m.mu.Lock()
		m.sessions[w.key] = next
		m.mu.Unlock()
		w = next
	}
}

// Session returns the live worker for key, if any.
func (m *Manager) Session(key SessionKey) (*RelayWorker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.sessions[key]
	return w, ok
}

// Shutdown stops every managed worker.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.sessions {
		w.Shutdown()
	}
}
