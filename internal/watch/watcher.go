// Package watch runs the periodic slow-game poll.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/BusyBee-chess-bot/internal/lichess"
	"github.com/park285/BusyBee-chess-bot/internal/slowgame"
	"go.uber.org/zap"
)

const DefaultInterval = 60 * time.Second

var (
	ErrAlreadyRunning = errors.New("watcher already running")
	ErrNotConfigured  = errors.New("watcher missing collaborator")
)

type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

type Config struct {
	Interval    time.Duration
	Classifier  slowgame.Classifier
	GameBaseURL string
	Formatter   Formatter
	Logger      *zap.Logger
}

// TickResult summarises one poll.
type TickResult struct {
	TickID   string
	Queried  int
	Playing  int
	Slow     int
	Known    int
	Notified int
	Failed   int
	Alerts   []Alert
}

type Watcher struct {
	roster     Roster
	source     StatusSource
	ledger     Ledger
	notifier   Notifier
	format     Formatter
	classifier slowgame.Classifier
	interval   time.Duration
	baseURL    string
	logger     *zap.Logger

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	// done is closed when the current loop has exited.
	done chan struct{}

	// tickMu keeps ticks from overlapping, including manual Tick calls.
	tickMu sync.Mutex
}

func New(roster Roster, source StatusSource, ledger Ledger, notifier Notifier, cfg Config) (*Watcher, error) {
	if roster == nil || source == nil || ledger == nil || notifier == nil {
		return nil, ErrNotConfigured
	}
	w := &Watcher{
		roster:     roster,
		source:     source,
		ledger:     ledger,
		notifier:   notifier,
		format:     cfg.Formatter,
		classifier: cfg.Classifier,
		interval:   cfg.Interval,
		baseURL:    cfg.GameBaseURL,
		logger:     cfg.Logger,
	}
	if w.format == nil {
		w.format = PlainFormatter{}
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if w.baseURL == "" {
		w.baseURL = lichess.DefaultBaseURL
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w, nil
}

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start fires a tick immediately and then every interval until Stop or ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateRunning {
		return ErrAlreadyRunning
	}
	w.state = StateRunning
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(ctx, w.stopCh, w.done)
	w.logger.Info("watch_started", zap.Duration("interval", w.interval), zap.Float64("threshold_minutes", w.classifier.ThresholdMinutes))
	return nil
}

// Stop returns once the loop has exited. A tick in flight is allowed to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return
	}
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("watch_stopped")
}

// finish returns the watcher to idle when the loop that owns done exits,
// whether through Stop or through cancellation of the Start context.
func (w *Watcher) finish(done chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != done {
		return
	}
	w.state = StateIdle
	w.stopCh = nil
}

func (w *Watcher) loop(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer w.finish(done)
	tickCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runTick(tickCtx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			w.runTick(tickCtx)
		}
	}
}

func (w *Watcher) runTick(ctx context.Context) {
	res, err := w.Tick(ctx)
	if err != nil {
		w.logger.Warn("watch_tick_failed", zap.String("tick_id", res.TickID), zap.Error(err))
		return
	}
	w.logger.Debug("watch_tick",
		zap.String("tick_id", res.TickID),
		zap.Int("queried", res.Queried),
		zap.Int("playing", res.Playing),
		zap.Int("slow", res.Slow),
		zap.Int("notified", res.Notified),
		zap.Int("failed", res.Failed))
}

// Tick polls once and announces every new slow game. A game id is recorded only
// after its notification succeeded; a failed one is tried again next tick.
func (w *Watcher) Tick(ctx context.Context) (TickResult, error) {
	return w.tick(ctx, true)
}

// Check polls once and reports the alerts a tick would send, without sending or recording.
func (w *Watcher) Check(ctx context.Context) (TickResult, error) {
	return w.tick(ctx, false)
}

func (w *Watcher) tick(ctx context.Context, deliver bool) (TickResult, error) {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	res := TickResult{TickID: uuid.NewString()}
	logger := w.logger.With(zap.String("tick_id", res.TickID))

	names := w.roster.Usernames()
	res.Queried = len(names)
	if len(names) == 0 {
		return res, nil
	}

	playing, err := w.source.FetchPlaying(ctx, names)
	if err != nil {
		return res, fmt.Errorf("fetch statuses: %w", err)
	}
	res.Playing = len(playing)

	var recordErrs []error
	seen := make(map[string]struct{}, len(playing))
	for _, p := range playing {
		if p.GameID == "" || !p.IsSlow(w.classifier) {
			continue
		}
		// both players of one game can be on the roster
		if _, dup := seen[p.GameID]; dup {
			continue
		}
		seen[p.GameID] = struct{}{}
		res.Slow++
		if w.ledger.Exists(p.GameID) {
			res.Known++
			continue
		}

		alert := w.alertFor(p)
		res.Alerts = append(res.Alerts, alert)
		if !deliver {
			continue
		}

		msg, err := w.format.Format(alert)
		if err != nil {
			res.Failed++
			logger.Warn("watch_format_failed", zap.String("game_id", p.GameID), zap.Error(err))
			continue
		}
		if err := w.notifier.Notify(ctx, msg); err != nil {
			res.Failed++
			logger.Warn("watch_notify_failed", zap.String("username", p.Name), zap.String("game_id", p.GameID), zap.Error(err))
			continue
		}
		res.Notified++
		logger.Info("watch_alert_sent", zap.String("username", p.Name), zap.String("game_id", p.GameID), zap.String("clock", alert.Clock))

		if err := w.ledger.Record(ctx, p.GameID); err != nil {
			recordErrs = append(recordErrs, fmt.Errorf("record %s: %w", p.GameID, err))
		}
	}
	if len(recordErrs) > 0 {
		return res, errors.Join(recordErrs...)
	}
	return res, nil
}

func (w *Watcher) alertFor(p lichess.PlayingUserStatus) Alert {
	owner, _ := w.roster.OwnerFor(p.Name)
	return Alert{
		Username:     p.Name,
		OwnerID:      owner,
		GameID:       p.GameID,
		Clock:        p.Clock.String(),
		TotalMinutes: p.TotalMinutes(),
		URL:          p.GameURL(w.baseURL),
	}
}
