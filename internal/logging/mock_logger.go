package logging

import "sync"

// MockLogger records every call made to it, for tests that assert on log
// output instead of scraping stdout. No test in this module uses it.
type MockLogger struct {
	mu    sync.Mutex
	Calls []MockCall
}

type MockCall struct {
	Level Level
	Msg   string
	Args  []any
}

func NewMockLogger() *MockLogger { return &MockLogger{} }

func (m *MockLogger) record(level Level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Level: level, Msg: msg, Args: args})
}

func (m *MockLogger) Debug(msg string, args ...any) { m.record(LevelDebug, msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.record(LevelInfo, msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.record(LevelWarn, msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.record(LevelError, msg, args) }
func (m *MockLogger) With(...any) Logger            { return m }
