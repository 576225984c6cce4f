// Package command is the chat front end: it reads prefixed KakaoTalk messages
// from Iris and answers them.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/BusyBee-chess-bot/internal/irisfast"
	"github.com/park285/BusyBee-chess-bot/internal/registry"
	"github.com/park285/BusyBee-chess-bot/internal/util"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

// Roster is the registry surface commands need.
type Roster interface {
	Add(ctx context.Context, username, ownerID string) (bool, error)
	Contains(username string) bool
	Entries() []registry.Entry
	UsernameForOwner(ownerID string) (string, bool)
}

type UserChecker interface {
	UserExists(ctx context.Context, username string) (bool, error)
}

type EndgameLinker interface {
	Link(ctx context.Context, arg string) (string, error)
}

// BoardRenderer draws fen as a PNG.
type BoardRenderer func(ctx context.Context, fen string) ([]byte, error)

type Config struct {
	Prefix       string
	AllowedRooms []string
	// Timeout bounds one command including its replies.
	Timeout time.Duration
	Logger  *zap.Logger
}

type Handler struct {
	cfg       Config
	roster    Roster
	users     UserChecker
	endgames  EndgameLinker
	render    BoardRenderer
	presenter *Presenter
	logger    *zap.Logger
}

func New(cfg Config, roster Roster, users UserChecker, endgames EndgameLinker, render BoardRenderer, presenter *Presenter) (*Handler, error) {
	if roster == nil || users == nil || endgames == nil || render == nil || presenter == nil {
		return nil, errors.New("command: missing collaborator")
	}
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" {
		return nil, errors.New("command: empty prefix")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:       cfg,
		roster:    roster,
		users:     users,
		endgames:  endgames,
		render:    render,
		presenter: presenter,
		logger:    logger,
	}, nil
}

// Attach registers the handler on ws. Each command runs on its own goroutine so
// the read loop is never blocked.
func (h *Handler) Attach(ws irisfast.WSClient) int {
	return ws.OnMessage(func(msg *irisfast.Message) {
		if !h.Accepts(msg) {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
			defer cancel()
			if err := h.Handle(ctx, msg); err != nil {
				h.logger.Warn("command_reply_failed", zap.String("room", msg.Room), zap.Error(err))
			}
		}()
	})
}

// Accepts reports whether msg is a command from an allowed room.
func (h *Handler) Accepts(msg *irisfast.Message) bool {
	if msg == nil || strings.TrimSpace(msg.Msg) == "" {
		return false
	}
	if !h.roomAllowed(msg.Room) {
		h.logger.Debug("command_room_ignored", zap.String("room", msg.Room))
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(msg.Msg), h.cfg.Prefix)
}

func (h *Handler) roomAllowed(room string) bool {
	if len(h.cfg.AllowedRooms) == 0 {
		return true
	}
	for _, r := range h.cfg.AllowedRooms {
		if r == room {
			return true
		}
	}
	return false
}

// Handle runs one command and returns the error from sending its reply.
func (h *Handler) Handle(ctx context.Context, msg *irisfast.Message) error {
	if !h.Accepts(msg) {
		return nil
	}
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Msg), h.cfg.Prefix))
	if raw == "" {
		return h.presenter.Say(ctx, msg.Room, "command.help", nil)
	}
	name := strings.Fields(raw)[0]
	arg := strings.TrimSpace(raw[len(name):])
	name = strings.ToLower(name)

	h.logger.Info("command_received",
		zap.String("command", name),
		zap.String("room", msg.Room),
		zap.String("sender", msg.SenderID()),
	)

	switch name {
	case "help":
		return h.presenter.Say(ctx, msg.Room, "command.help", nil)
	case "link":
		return h.register(ctx, msg, name, arg, true)
	case "follow":
		return h.register(ctx, msg, name, arg, false)
	case "users":
		return h.listUsers(ctx, msg)
	case "whoami":
		return h.whoami(ctx, msg)
	case "fen":
		return h.fen(ctx, msg, arg)
	case "endgame":
		return h.endgame(ctx, msg, arg)
	default:
		return h.presenter.Say(ctx, msg.Room, "command.unknown", nil)
	}
}

func (h *Handler) register(ctx context.Context, msg *irisfast.Message, name, arg string, link bool) error {
	fields := strings.Fields(arg)
	if len(fields) != 1 {
		return h.presenter.Say(ctx, msg.Room, "register.usage", map[string]any{"Command": name})
	}
	username := fields[0]
	data := map[string]any{"Username": username, "Sender": msg.SenderName()}
	if err := registry.ValidateUsername(username); err != nil {
		return h.presenter.Say(ctx, msg.Room, "register.invalid", data)
	}

	owner := ""
	if link {
		owner = msg.SenderID()
		if owner == "" {
			return h.presenter.Say(ctx, msg.Room, "command.error", map[string]any{"Error": "cannot identify sender"})
		}
		if data["Sender"] == "" {
			data["Sender"] = owner
		}
	}

	if h.roster.Contains(username) {
		return h.presenter.Say(ctx, msg.Room, "register.already", data)
	}
	exists, err := h.users.UserExists(ctx, username)
	if err != nil {
		h.logger.Warn("command_user_lookup_failed", zap.String("username", username), zap.Error(err))
		return h.presenter.Say(ctx, msg.Room, "register.lookup_failed", data)
	}
	if !exists {
		return h.presenter.Say(ctx, msg.Room, "register.not_found", data)
	}

	added, err := h.roster.Add(ctx, username, owner)
	if err != nil {
		h.logger.Error("command_user_save_failed", zap.String("username", username), zap.Error(err))
		return h.presenter.Say(ctx, msg.Room, "register.save_failed", data)
	}
	if !added {
		return h.presenter.Say(ctx, msg.Room, "register.already", data)
	}
	if link {
		return h.presenter.Say(ctx, msg.Room, "register.linked", data)
	}
	return h.presenter.Say(ctx, msg.Room, "register.followed", data)
}

func (h *Handler) listUsers(ctx context.Context, msg *irisfast.Message) error {
	entries := h.roster.Entries()
	if len(entries) == 0 {
		return h.presenter.Say(ctx, msg.Room, "users.empty", nil)
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Linked() {
			lines = append(lines, h.presenter.Render("users.linked_line", map[string]any{"Username": e.Username}))
			continue
		}
		lines = append(lines, e.Username)
	}
	header := h.presenter.Render("users.header", map[string]any{"Count": len(entries)})
	return h.presenter.Text(ctx, msg.Room, util.FoldLines(header, lines))
}

func (h *Handler) whoami(ctx context.Context, msg *irisfast.Message) error {
	if username, ok := h.roster.UsernameForOwner(msg.SenderID()); ok {
		return h.presenter.Say(ctx, msg.Room, "whoami.linked", map[string]any{"Username": username})
	}
	return h.presenter.Say(ctx, msg.Room, "whoami.none", nil)
}

func (h *Handler) fen(ctx context.Context, msg *irisfast.Message, arg string) error {
	if arg == "" {
		return h.presenter.Say(ctx, msg.Room, "fen.usage", nil)
	}
	png, err := h.render(ctx, arg)
	if err != nil {
		h.logger.Info("command_fen_invalid", zap.String("fen", arg), zap.Error(err))
		return h.presenter.Say(ctx, msg.Room, "fen.invalid", map[string]any{"Error": err.Error()})
	}
	caption := h.presenter.Render("fen.caption", nil)
	if err := h.presenter.Board(ctx, msg.Room, caption, png); err != nil {
		h.logger.Warn("command_fen_send_failed", zap.Error(err))
		// the image leg failed; tell the room over the same egress
		if serr := h.presenter.Say(ctx, msg.Room, "fen.failed", map[string]any{"Error": err.Error()}); serr != nil {
			return fmt.Errorf("send fen image: %w", errors.Join(err, serr))
		}
	}
	return nil
}

func (h *Handler) endgame(ctx context.Context, msg *irisfast.Message, arg string) error {
	if arg == "" {
		return h.presenter.Say(ctx, msg.Room, "endgame.usage", nil)
	}
	u, err := h.endgames.Link(ctx, arg)
	if err != nil {
		return h.presenter.Say(ctx, msg.Room, "endgame.problem", map[string]any{"Error": err.Error()})
	}
	return h.presenter.Say(ctx, msg.Room, "endgame.link", map[string]any{"URL": u})
}
