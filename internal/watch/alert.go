package watch

import (
	"context"
	"fmt"
	"strings"

	"github.com/park285/BusyBee-chess-bot/internal/lichess"
)

// Roster is the read side of the user registry.
type Roster interface {
	Usernames() []string
	OwnerFor(username string) (string, bool)
}

type StatusSource interface {
	FetchPlaying(ctx context.Context, usernames []string) ([]lichess.PlayingUserStatus, error)
}

// Ledger remembers game ids that were already announced.
type Ledger interface {
	Exists(gameID string) bool
	Record(ctx context.Context, gameID string) error
}

// Notifier delivers one formatted message. A nil error means the hand-off succeeded.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type Formatter interface {
	Format(a Alert) (string, error)
}

// Alert is one slow game that has not been announced yet.
type Alert struct {
	Username     string
	OwnerID      string
	GameID       string
	Clock        string
	TotalMinutes float64
	URL          string
}

func (a Alert) Linked() bool { return strings.TrimSpace(a.OwnerID) != "" }

// PlainFormatter renders the classic one-line announcement.
type PlainFormatter struct{}

func (PlainFormatter) Format(a Alert) (string, error) {
	if a.Username == "" || a.URL == "" {
		return "", fmt.Errorf("incomplete alert for game %q", a.GameID)
	}
	return fmt.Sprintf("%s is playing a slower game (%s) on Lichess, watch here: %s", a.Username, a.Clock, a.URL), nil
}

// Renderer is satisfied by *msgcat.Catalog.
type Renderer interface {
	Render(key string, data any) (string, error)
}

// CatalogFormatter renders alerts from the message catalog and falls back to
// PlainFormatter when the template is missing or fails.
type CatalogFormatter struct {
	Catalog Renderer
	Key     string
}

const DefaultAlertKey = "watch.slow_game"

func (f CatalogFormatter) Format(a Alert) (string, error) {
	key := f.Key
	if key == "" {
		key = DefaultAlertKey
	}
	if f.Catalog != nil {
		out, err := f.Catalog.Render(key, map[string]any{
			"Name":   a.Username,
			"Owner":  a.OwnerID,
			"Linked": a.Linked(),
			"Clock":  a.Clock,
			"Total":  fmt.Sprintf("%.1f", a.TotalMinutes),
			"URL":    a.URL,
			"GameID": a.GameID,
		})
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out), nil
		}
	}
	return PlainFormatter{}.Format(a)
}
