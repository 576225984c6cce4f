// Package ledger remembers which games have already been announced.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/park285/BusyBee-chess-bot/internal/store"
	"go.uber.org/zap"
)

// Ledger is a durable set of game ids. Entries never expire.
type Ledger struct {
	mu     sync.RWMutex
	writeM sync.Mutex
	seen   map[string]struct{}
	log    store.Log
	logger *zap.Logger
}

func Load(ctx context.Context, log store.Log, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lines, err := log.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load posted games: %w", err)
	}
	l := &Ledger{seen: make(map[string]struct{}, len(lines)), log: log, logger: logger}
	for i, line := range lines {
		id := strings.TrimSpace(line)
		if !validID(id) {
			return nil, fmt.Errorf("posted games record %d %q: %w", i+1, line, store.ErrCorrupt)
		}
		l.seen[id] = struct{}{}
	}
	logger.Info("ledger_loaded", zap.Int("games", len(l.seen)))
	return l, nil
}

func (l *Ledger) Exists(gameID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[gameID]
	return ok
}

// Record marks gameID as announced. Repeat calls are no-ops and do not write.
func (l *Ledger) Record(ctx context.Context, gameID string) error {
	gameID = strings.TrimSpace(gameID)
	if !validID(gameID) {
		return fmt.Errorf("invalid game id %q", gameID)
	}

	l.writeM.Lock()
	defer l.writeM.Unlock()

	if l.Exists(gameID) {
		return nil
	}
	if err := l.log.Append(ctx, gameID); err != nil {
		return fmt.Errorf("persist game %s: %w", gameID, err)
	}
	l.mu.Lock()
	l.seen[gameID] = struct{}{}
	l.mu.Unlock()
	return nil
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

func validID(id string) bool {
	return id != "" && !strings.ContainsRune(id, ',') && strings.IndexFunc(id, unicode.IsSpace) < 0
}
