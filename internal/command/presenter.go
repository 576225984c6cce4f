package command

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/park285/BusyBee-chess-bot/internal/irisfast"
	"github.com/park285/BusyBee-chess-bot/internal/msgcat"
)

// Presenter renders catalog messages and delivers them, with optional board images,
// to a chat room.
type Presenter struct {
	egress  irisfast.Egress
	catalog *msgcat.Catalog
	prefix  string
}

func NewPresenter(egress irisfast.Egress, catalog *msgcat.Catalog, prefix string) *Presenter {
	return &Presenter{egress: egress, catalog: catalog, prefix: strings.TrimSpace(prefix)}
}

func (p *Presenter) Prefix() string { return p.prefix }

// Render fills key with data plus Prefix. A broken template degrades to the key
// itself so the user still gets an answer.
func (p *Presenter) Render(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Prefix"]; !ok {
		data["Prefix"] = p.prefix
	}
	if p.catalog == nil {
		return key
	}
	return p.catalog.Text(key, data, key)
}

func (p *Presenter) Say(ctx context.Context, room, key string, data map[string]any) error {
	return p.Text(ctx, room, p.Render(key, data))
}

func (p *Presenter) Text(ctx context.Context, room, message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return p.egress.SendText(ctx, room, message)
}

// Board sends caption first, then the PNG.
func (p *Presenter) Board(ctx context.Context, room, caption string, png []byte) error {
	if err := p.Text(ctx, room, caption); err != nil {
		return err
	}
	if len(png) == 0 {
		return nil
	}
	return p.egress.SendImage(ctx, room, base64.StdEncoding.EncodeToString(png))
}
