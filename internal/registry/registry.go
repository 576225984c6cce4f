// Package registry keeps the roster of watched lichess usernames and the chat
// accounts they are linked to.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/park285/BusyBee-chess-bot/internal/store"
	"go.uber.org/zap"
)

var ErrInvalidUsername = errors.New("invalid username")

// Entry is one watched account. OwnerID is empty for followed-only users.
type Entry struct {
	Username string
	OwnerID  string
}

func (e Entry) Linked() bool { return e.OwnerID != "" }

// Registry is safe for concurrent use. Add is serialised so the backing log sees
// one writer at a time.
type Registry struct {
	mu     sync.RWMutex
	writeM sync.Mutex
	users  map[string]string
	log    store.Log
	logger *zap.Logger
}

// Load replays every persisted record. A record with the wrong shape fails the load.
func Load(ctx context.Context, log store.Log, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lines, err := log.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	r := &Registry{users: make(map[string]string, len(lines)), log: log, logger: logger}
	for i, line := range lines {
		e, err := decode(line)
		if err != nil {
			return nil, fmt.Errorf("users record %d %q: %w", i+1, line, err)
		}
		// first registration wins, matching Add
		if _, ok := r.users[e.Username]; !ok {
			r.users[e.Username] = e.OwnerID
		}
	}
	logger.Info("registry_loaded", zap.Int("users", len(r.users)))
	return r, nil
}

// Add registers username. It reports false without writing when the username is
// already present; the existing owner is kept.
func (r *Registry) Add(ctx context.Context, username, ownerID string) (bool, error) {
	username = strings.TrimSpace(username)
	ownerID = strings.TrimSpace(ownerID)
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	if strings.ContainsAny(ownerID, ",\r\n") {
		return false, fmt.Errorf("invalid owner id %q", ownerID)
	}

	r.writeM.Lock()
	defer r.writeM.Unlock()

	r.mu.RLock()
	_, exists := r.users[username]
	r.mu.RUnlock()
	if exists {
		return false, nil
	}

	if err := r.log.Append(ctx, encode(Entry{Username: username, OwnerID: ownerID})); err != nil {
		return false, fmt.Errorf("persist user %s: %w", username, err)
	}

	r.mu.Lock()
	r.users[username] = ownerID
	r.mu.Unlock()

	r.logger.Info("registry_add", zap.String("username", username), zap.Bool("linked", ownerID != ""))
	return true, nil
}

// Usernames returns all usernames sorted lexicographically.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.users))
	for u := range r.users {
		out = append(out, u)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Entries() []Entry {
	names := r.Usernames()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		out = append(out, Entry{Username: n, OwnerID: r.users[n]})
	}
	return out
}

// OwnerFor reports the linked owner of username, if any.
func (r *Registry) OwnerFor(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.users[username]
	if !ok || owner == "" {
		return "", false
	}
	return owner, true
}

// UsernameForOwner is a linear reverse lookup; the roster stays small.
// When an owner linked several usernames the lexicographically first one is returned.
func (r *Registry) UsernameForOwner(ownerID string) (string, bool) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", false
	}
	for _, e := range r.Entries() {
		if e.OwnerID == ownerID {
			return e.Username, true
		}
	}
	return "", false
}

func (r *Registry) Contains(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[username]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ValidateUsername rejects names that cannot be stored as a single csv field.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if strings.ContainsRune(username, ',') || strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	return nil
}

func encode(e Entry) string { return e.Username + "," + e.OwnerID }

func decode(line string) (Entry, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return Entry{}, fmt.Errorf("%w: expected USERNAME,OWNER_ID", store.ErrCorrupt)
	}
	e := Entry{Username: strings.TrimSpace(parts[0]), OwnerID: strings.TrimSpace(parts[1])}
	if ValidateUsername(e.Username) != nil {
		return Entry{}, fmt.Errorf("%w: bad username", store.ErrCorrupt)
	}
	return e, nil
}
