// Package token issues serial-numbered read tokens. A reader holds a
// token for the duration of one lock-free observation of published
// state; deferred reclamation waits until every token issued before a
// publication has been retired.
package token

import (
	"context"
	"errors"
	"sync"
)

// ErrShutdown is returned when requesting a token after Shutdown.
var ErrShutdown = errors.New("token: manager is shut down")

// Token is a cheap read-phase handle. Close retires it; Close is
// idempotent and must be called exactly when the observation ends.
type Token struct {
	sn   uint64
	m    *Manager
	once sync.Once
}

// Serial returns the token's serial number.
func (t *Token) Serial() uint64 {
	return t.sn
}

// Close retires the token, releasing any reclamation waiting on it.
func (t *Token) Close() error {
	t.once.Do(func() {
		t.m.retire(t.sn)
	})
	return nil
}

// Manager tracks outstanding tokens by serial number.
type Manager struct {
	mu          sync.Mutex
	next        uint64
	outstanding map[uint64]chan struct{}
	shutdown    bool
}

// NewManager creates a Manager.
func NewManager() *Manager {
	return &Manager{
		outstanding: make(map[uint64]chan struct{}),
	}
}

// RequestToken issues a new token. Fails after Shutdown.
func (m *Manager) RequestToken() (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil, ErrShutdown
	}
	sn := m.next
	m.next++
	m.outstanding[sn] = make(chan struct{})
	return &Token{sn: sn, m: m}, nil
}

// NextSerial returns the serial number the next token would receive.
// All currently outstanding tokens have serials below it.
func (m *Manager) NextSerial() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

func (m *Manager) retire(sn uint64) {
	m.mu.Lock()
	done, ok := m.outstanding[sn]
	if ok {
		delete(m.outstanding, sn)
	}
	m.mu.Unlock()
	if ok {
		close(done)
	}
}

// WaitUntilAllPriorRetired blocks until every token with a serial
// number below sn has been retired, or ctx is canceled. Tokens issued
// at or after sn never block the wait.
func (m *Manager) WaitUntilAllPriorRetired(ctx context.Context, sn uint64) error {
	m.mu.Lock()
	waits := make([]chan struct{}, 0, len(m.outstanding))
	for s, done := range m.outstanding {
		if s < sn {
			waits = append(waits, done)
		}
	}
	m.mu.Unlock()

	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown stops issuing tokens and drains the outstanding ones.
// Blocks until every token issued so far has been retired.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	sn := m.next
	m.mu.Unlock()
	return m.WaitUntilAllPriorRetired(ctx, sn)
}
