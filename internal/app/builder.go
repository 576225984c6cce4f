// Package app wires configuration into the stores, clients and workers the
// commands in cmd/busybee run.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/BusyBee-chess-bot/internal/command"
	"github.com/park285/BusyBee-chess-bot/internal/config"
	"github.com/park285/BusyBee-chess-bot/internal/endgame"
	"github.com/park285/BusyBee-chess-bot/internal/fenimg"
	"github.com/park285/BusyBee-chess-bot/internal/irisfast"
	"github.com/park285/BusyBee-chess-bot/internal/ledger"
	"github.com/park285/BusyBee-chess-bot/internal/lichess"
	"github.com/park285/BusyBee-chess-bot/internal/msgcat"
	"github.com/park285/BusyBee-chess-bot/internal/notify"
	"github.com/park285/BusyBee-chess-bot/internal/registry"
	"github.com/park285/BusyBee-chess-bot/internal/slowgame"
	"github.com/park285/BusyBee-chess-bot/internal/store"
	"github.com/park285/BusyBee-chess-bot/internal/watch"
	"go.uber.org/zap"
)

// Store keys.
const (
	KeyUsers       = "users"
	KeyPostedGames = "posted_games"
	KeyEndgames    = "endgames"
)

// Deps holds the long-lived components. Iris fields stay nil until WithIris.
type Deps struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Stores   *store.Opener
	Users    *registry.Registry
	Games    *ledger.Ledger
	Endgames *endgame.Linker
	Lichess  *lichess.Client
	Catalog  *msgcat.Catalog

	Iris   *irisfast.Client
	WS     *irisfast.WebSocket
	Egress irisfast.Egress

	logs []store.Log
}

// New opens the configured store and loads the registry and ledger. Load errors
// (a corrupt record included) fail startup.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := store.ParseBackend(cfg.StoreBackend)
	if err != nil {
		return nil, err
	}
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opener, err := store.NewOpener(octx, backend, store.Options{
		DataDir:     cfg.DataDir,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	d := &Deps{Config: cfg, Logger: logger, Stores: opener}

	fail := func(err error) (*Deps, error) {
		_ = d.Close()
		return nil, err
	}

	usersLog, err := d.open(octx, KeyUsers)
	if err != nil {
		return fail(err)
	}
	if d.Users, err = registry.Load(octx, usersLog, logger.Named("registry")); err != nil {
		return fail(err)
	}
	gamesLog, err := d.open(octx, KeyPostedGames)
	if err != nil {
		return fail(err)
	}
	if d.Games, err = ledger.Load(octx, gamesLog, logger.Named("ledger")); err != nil {
		return fail(err)
	}
	endLog, err := d.open(octx, KeyEndgames)
	if err != nil {
		return fail(err)
	}
	d.Endgames = endgame.NewLinker(cfg.EndgameTrainerURL, endLog, logger.Named("endgame"))

	d.Lichess = lichess.NewClient(cfg.LichessBaseURL, lichess.Credential{Token: cfg.LichessToken},
		lichess.WithTimeout(cfg.LichessTimeout),
		lichess.WithBatchCap(cfg.LichessBatchCap),
		lichess.WithRateLimit(cfg.LichessRatePerMin),
		lichess.WithLogger(logger.Named("lichess")),
	)

	if d.Catalog, err = msgcat.New(cfg.MessagesDir); err != nil {
		return fail(fmt.Errorf("messages: %w", err))
	}

	logger.Info("app_ready",
		zap.String("store", string(opener.Backend())),
		zap.Int("users", d.Users.Len()),
		zap.Int("posted_games", d.Games.Len()),
	)
	return d, nil
}

func (d *Deps) open(ctx context.Context, key string) (store.Log, error) {
	l, err := d.Stores.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	d.logs = append(d.logs, l)
	return l, nil
}

// WithIris builds the Iris HTTP client, the WebSocket (when IRIS_WS_URL is set)
// and the egress. dryrun makes the egress log replies instead of sending them.
func (d *Deps) WithIris(dryrun bool) error {
	cfg := d.Config
	if strings.TrimSpace(cfg.IrisBaseURL) == "" {
		return errors.New("IRIS_BASE_URL is required")
	}
	headers := irisfast.Identity{UserID: cfg.XUserID, UserEmail: cfg.XUserEmail, SessionID: cfg.XSessionID}.Headers()
	d.Iris = irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))
	if cfg.IrisWSURL != "" {
		d.WS = irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
		d.WS.SetHeaderProvider(headers)
		d.WS.SetLogger(d.Logger.Named("iris_ws"))
	}
	d.Egress = irisfast.NewEgress(cfg.IrisEgress, dryrun, d.Iris, d.WS, d.Logger.Named("egress"))
	return nil
}

// Notifier builds the alert targets named by NOTIFIER. dryrun replaces them all
// with a log-only notifier.
func (d *Deps) Notifier(dryrun bool) (watch.Notifier, error) {
	if dryrun {
		return notify.NewLog(d.Logger.Named("alerts")), nil
	}
	if err := d.Config.ValidateAlerts(); err != nil {
		return nil, err
	}
	var targets []notify.Notifier
	for _, name := range d.Config.Notifiers {
		switch name {
		case "iris":
			if d.Egress == nil {
				return nil, errors.New("IRIS_BASE_URL is required for NOTIFIER=iris")
			}
			n, err := notify.NewIris(d.Egress, d.Config.AlertRoom)
			if err != nil {
				return nil, err
			}
			targets = append(targets, n)
		case "discord":
			s, err := notify.NewDiscordSession(d.Config.DiscordToken)
			if err != nil {
				return nil, err
			}
			n, err := notify.NewDiscord(s, d.Config.DiscordChannelID)
			if err != nil {
				return nil, err
			}
			targets = append(targets, n)
		case "log":
			targets = append(targets, notify.NewLog(d.Logger.Named("alerts")))
		default:
			return nil, fmt.Errorf("NOTIFIER: unknown notifier %q", name)
		}
	}
	switch len(targets) {
	case 0:
		return nil, errors.New("NOTIFIER: no alert target configured")
	case 1:
		return targets[0], nil
	}
	return notify.NewMulti(d.Logger.Named("alerts"), targets...), nil
}

func (d *Deps) Watcher(n watch.Notifier) (*watch.Watcher, error) {
	return watch.New(d.Users, d.Lichess, d.Games, n, watch.Config{
		Interval:    d.Config.PollInterval,
		Classifier:  slowgame.New(d.Config.SlowThresholdMinutes),
		GameBaseURL: d.Config.LichessBaseURL,
		Formatter:   watch.CatalogFormatter{Catalog: d.Catalog},
		Logger:      d.Logger.Named("watch"),
	})
}

// Commands builds the chat handler. WithIris must have run.
func (d *Deps) Commands() (*command.Handler, error) {
	if d.Egress == nil {
		return nil, errors.New("commands need the Iris egress")
	}
	render := func(ctx context.Context, fen string) ([]byte, error) {
		return fenimg.RenderFEN(ctx, fen, fenimg.Options{})
	}
	presenter := command.NewPresenter(d.Egress, d.Catalog, d.Config.BotPrefix)
	return command.New(command.Config{
		Prefix:       d.Config.BotPrefix,
		AllowedRooms: d.Config.AllowedRooms,
		Logger:       d.Logger.Named("command"),
	}, d.Users, d.Lichess, d.Endgames, render, presenter)
}

// Close releases the WebSocket, every opened log and the store connection.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.WS != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, d.WS.Close(ctx))
		cancel()
	}
	for _, l := range d.logs {
		errs = append(errs, l.Close())
	}
	errs = append(errs, d.Stores.Close())
	return errors.Join(errs...)
}
