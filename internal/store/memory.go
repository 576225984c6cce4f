package store

import (
	"context"
	"sync"
)

// MemoryLog is a process-local Log used when no durable backend is configured
// and in tests. Nothing survives a restart.
type MemoryLog struct {
	mu    sync.RWMutex
	lines []string
}

func NewMemoryLog(seed ...string) *MemoryLog {
	return &MemoryLog{lines: append([]string(nil), seed...)}
}

func (m *MemoryLog) Load(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.lines...), nil
}

func (m *MemoryLog) Append(ctx context.Context, line string) error {
	if err := validateLine(line); err != nil {
		return err
	}
	m.mu.Lock()
	m.lines = append(m.lines, line)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) Close() error { return nil }

// Lines is a snapshot for assertions.
func (m *MemoryLog) Lines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.lines...)
}
