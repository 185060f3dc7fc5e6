package worker

import (
	"log"
	"os"
	"sync"
	"time"
)

const (
	teardownAttempts = 3
	teardownTimeout  = 2 * time.Second
)

// Job is anything the manager can run on behalf of a session: an OCR
// worker or a blur render. Stop must be idempotent; Done closes when
// the job has fully exited.
type Job interface {
	Stop()
	Done() <-chan struct{}
}

// Manager enforces the one-active-job-per-session rule. Launching a
// job for a session synchronously tears down the previous one first,
// while a per-session lock keeps concurrent start/stop requests for
// the same session serialized without blocking other sessions.
type Manager struct {
	registryMu sync.Mutex
	jobs       map[string]Job
	locks      map[string]*sync.Mutex
}

func NewManager() *Manager {
	return &Manager{
		jobs:  make(map[string]Job),
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	if l, ok := m.locks[sessionID]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[sessionID] = l
	return l
}

// Launch registers job for the session and runs start in a new
// goroutine. Any previous job of the session is stopped and awaited
// first. staleOutputs are removed before the job starts so a rerun
// never serves a predecessor's artifact.
func (m *Manager) Launch(sessionID string, job Job, start func(), staleOutputs ...string) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.stopLocked(sessionID)

	for _, path := range staleOutputs {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[SessionManager] remove stale artifact %s: %v", path, err)
		}
	}

	m.registryMu.Lock()
	m.jobs[sessionID] = job
	m.registryMu.Unlock()

	go func() {
		start()
		// Self-unregister, but only if this job is still the
		// session's current one.
		m.registryMu.Lock()
		if m.jobs[sessionID] == job {
			delete(m.jobs, sessionID)
		}
		m.registryMu.Unlock()
	}()
}

// Stop cancels the session's active job, if any, and waits for it to
// exit. Returns whether a job was found.
func (m *Manager) Stop(sessionID string) bool {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return m.stopLocked(sessionID)
}

// stopLocked must run under the session lock. It waits in bounded
// attempts; a job that refuses to die is abandoned with a critical
// log instead of wedging the session forever.
func (m *Manager) stopLocked(sessionID string) bool {
	m.registryMu.Lock()
	job, ok := m.jobs[sessionID]
	if ok {
		delete(m.jobs, sessionID)
	}
	m.registryMu.Unlock()
	if !ok {
		return false
	}

	job.Stop()
	for attempt := 0; attempt < teardownAttempts; attempt++ {
		select {
		case <-job.Done():
			return true
		case <-time.After(teardownTimeout):
		}
	}
	log.Printf("[SessionManager] CRITICAL: job for session %s failed to terminate after %s",
		sessionID, time.Duration(teardownAttempts)*teardownTimeout)
	return true
}

// Active reports whether the session currently has a job.
func (m *Manager) Active(sessionID string) bool {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	_, ok := m.jobs[sessionID]
	return ok
}
