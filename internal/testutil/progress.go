package testutil

import "sync"

// MockProgressTracker is a mock implementation of ProgressTracker for testing.
// Update is called from upload workers, so all fields are guarded.
type MockProgressTracker struct {
	mu sync.Mutex

	updates   []ProgressUpdate
	completed bool
	lastErr   error
}

// ProgressUpdate represents a single progress update event.
type ProgressUpdate struct {
	Transferred int64
	Total       int64
}

// Update records a progress update.
func (m *MockProgressTracker) Update(bytesTransferred, totalBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, ProgressUpdate{
		Transferred: bytesTransferred,
		Total:       totalBytes,
	})
}

// Complete marks the operation as complete.
func (m *MockProgressTracker) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = true
}

// Error records an error.
func (m *MockProgressTracker) Error(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

// Updates returns the recorded updates in call order.
func (m *MockProgressTracker) Updates() []ProgressUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProgressUpdate(nil), m.updates...)
}

// Completed reports whether Complete was called.
func (m *MockProgressTracker) Completed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// LastError returns the error passed to Error, if any.
func (m *MockProgressTracker) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
