// Package notify delivers formatted alerts to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/park285/BusyBee-chess-bot/internal/irisfast"
	"go.uber.org/zap"
)

var ErrNoTarget = errors.New("notifier has no target")

// Iris posts to one KakaoTalk room through the Iris egress.
type Iris struct {
	egress irisfast.Egress
	room   string
}

func NewIris(egress irisfast.Egress, room string) (*Iris, error) {
	if egress == nil || strings.TrimSpace(room) == "" {
		return nil, fmt.Errorf("iris notifier: %w", ErrNoTarget)
	}
	return &Iris{egress: egress, room: strings.TrimSpace(room)}, nil
}

func (n *Iris) Notify(ctx context.Context, message string) error {
	if err := n.egress.SendText(ctx, n.room, message); err != nil {
		return fmt.Errorf("iris send to %s: %w", n.room, err)
	}
	return nil
}

// ChannelSender is the part of *discordgo.Session used for alerts.
type ChannelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts to a channel or thread over the REST API; no gateway session is needed.
type Discord struct {
	sender    ChannelSender
	channelID string
}

// NewDiscordSession builds a REST-only session for a bot token.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("DISCORD_TOKEN is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return s, nil
}

func NewDiscord(sender ChannelSender, channelID string) (*Discord, error) {
	if sender == nil || strings.TrimSpace(channelID) == "" {
		return nil, fmt.Errorf("discord notifier: %w", ErrNoTarget)
	}
	return &Discord{sender: sender, channelID: strings.TrimSpace(channelID)}, nil
}

func (n *Discord) Notify(ctx context.Context, message string) error {
	if _, err := n.sender.ChannelMessageSend(n.channelID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send to %s: %w", n.channelID, err)
	}
	return nil
}

// Log only writes the alert to the logger. Used for dry runs.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (n *Log) Notify(ctx context.Context, message string) error {
	n.logger.Info("alert", zap.String("message", message))
	return nil
}

// Notifier is implemented by every target in this package.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Multi sends to every target. It succeeds when at least one target did, so a
// dead secondary channel does not cause repeats on the primary one.
type Multi struct {
	targets []Notifier
	logger  *zap.Logger
}

func NewMulti(logger *zap.Logger, targets ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Multi{logger: logger}
	for _, t := range targets {
		if t != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

func (m *Multi) Len() int { return len(m.targets) }

func (m *Multi) Notify(ctx context.Context, message string) error {
	if len(m.targets) == 0 {
		return ErrNoTarget
	}
	var errs []error
	delivered := 0
	for i, t := range m.targets {
		if err := t.Notify(ctx, message); err != nil {
			m.logger.Warn("notify_target_failed", zap.Int("target", i), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}
