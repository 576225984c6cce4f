package irisfast

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Egress sends replies over HTTP, the WebSocket, or whichever is up.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

const (
	ModeHTTP = "http"
	ModeWS   = "ws"
	ModeAuto = "auto"
)

// frameWriter is the slice of WebSocket that egress needs.
type frameWriter interface {
	State() WebSocketState
	WriteJSON(ctx context.Context, v any) error
}

// NewEgress picks a transport by mode. auto prefers a connected WebSocket and
// falls back to HTTP once per message. dryrun logs instead of sending.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	var w frameWriter
	if ws != nil {
		w = ws
	}
	httpE := &httpEgress{c: c, dryrun: dryrun, logger: logger}
	wsE := &wsEgress{ws: w, dryrun: dryrun, logger: logger}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeWS:
		return wsE
	case ModeAuto:
		return &autoEgress{ws: wsE, http: httpE, logger: logger}
	default:
		return httpE
	}
}

type httpEgress struct {
	c      *Client
	dryrun bool
	logger *zap.Logger
}

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
	return h.send(ctx, ReplyRequest{Type: ReplyText, Room: room, Data: message})
}

func (h *httpEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	return h.send(ctx, ReplyRequest{Type: ReplyImage, Room: room, Data: imageBase64})
}

func (h *httpEgress) send(ctx context.Context, req ReplyRequest) error {
	if h.c == nil {
		return errors.New("http egress not available")
	}
	if h.dryrun {
		h.logger.Info("egress_dryrun", zap.String("via", ModeHTTP), zap.String("type", req.Type), zap.String("room", req.Room))
		return nil
	}
	return h.c.Reply(ctx, req)
}

type wsEgress struct {
	ws     frameWriter
	dryrun bool
	logger *zap.Logger
}

func (w *wsEgress) ready() bool {
	return w.ws != nil && w.ws.State() == WSStateConnected
}

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
	return w.send(ctx, ReplyRequest{Type: ReplyText, Room: room, Data: message})
}

func (w *wsEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	return w.send(ctx, ReplyRequest{Type: ReplyImage, Room: room, Data: imageBase64})
}

func (w *wsEgress) send(ctx context.Context, req ReplyRequest) error {
	if w.ws == nil {
		return errors.New("ws egress not available")
	}
	if strings.TrimSpace(req.Room) == "" {
		return ErrEmptyRoom
	}
	if w.dryrun {
		w.logger.Info("egress_dryrun", zap.String("via", ModeWS), zap.String("type", req.Type), zap.String("room", req.Room))
		return nil
	}
	return w.ws.WriteJSON(ctx, &req)
}

type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
	if a.ws.ready() {
		if err := a.ws.SendText(ctx, room, message); err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", ReplyText), zap.String("room", room))
	}
	return a.http.SendText(ctx, room, message)
}

func (a *autoEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if a.ws.ready() {
		if err := a.ws.SendImage(ctx, room, imageBase64); err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", ReplyImage), zap.String("room", room))
	}
	return a.http.SendImage(ctx, room, imageBase64)
}
