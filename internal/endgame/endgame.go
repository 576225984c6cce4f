// Package endgame turns "<FEN> [white|black] [win|draw]" into an Endgame Trainer link.
package endgame

import (
	"context"
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/BusyBee-chess-bot/internal/store"
	"go.uber.org/zap"
)

const DefaultTrainerURL = "https://chess-endgame-trainer.mooo.com"

var (
	ErrBothSides   = errors.New("You can specify either 'white' or 'black', not both")
	ErrBothTargets = errors.New("You can specify either 'win' or 'draw', not both")
	ErrInvalidFEN  = errors.New("You have to specify a valid FEN of the position")
	ErrEmpty       = errors.New("missing FEN")
)

type Side int

const (
	SideAny Side = iota
	SideWhite
	SideBlack
)

// Request is a parsed command. Draw false means the goal is to win.
type Request struct {
	FEN  string
	Side Side
	Draw bool
}

// ParseError lists every problem found in one command.
type ParseError struct {
	Problems []error
}

func (e *ParseError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Error()
	}
	return strings.Join(parts, ". ")
}

func (e *ParseError) Unwrap() []error { return e.Problems }

// Parse pulls the keywords out of arg (case-insensitive, anywhere) and validates
// what is left as a FEN.
func Parse(arg string) (Request, error) {
	var white, black, win, draw bool
	var rest []string
	for _, tok := range strings.Fields(arg) {
		switch strings.ToLower(tok) {
		case "white":
			white = true
		case "black":
			black = true
		case "win":
			win = true
		case "draw":
			draw = true
		default:
			rest = append(rest, tok)
		}
	}
	fen := strings.Join(rest, " ")
	if fen == "" && !white && !black && !win && !draw {
		return Request{}, ErrEmpty
	}

	var problems []error
	if white && black {
		problems = append(problems, ErrBothSides)
	}
	if win && draw {
		problems = append(problems, ErrBothTargets)
	}
	if err := validateFEN(fen); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return Request{}, &ParseError{Problems: problems}
	}

	req := Request{FEN: fen, Draw: draw}
	switch {
	case white:
		req.Side = SideWhite
	case black:
		req.Side = SideBlack
	}
	return req, nil
}

func validateFEN(fen string) error {
	if fen == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	if _, err := nchess.FEN(fen); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nil
}

// BuildURL renders <base>/fen/<FEN>[/draw][?player=w|b], percent-encoded with ":/?=" kept.
func BuildURL(base string, req Request) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultTrainerURL
	}
	u := strings.TrimRight(base, "/") + "/fen/" + req.FEN
	if req.Draw {
		u += "/draw"
	}
	switch req.Side {
	case SideWhite:
		u += "?player=w"
	case SideBlack:
		u += "?player=b"
	}
	return quote(u)
}

const upperhex = "0123456789ABCDEF"

// quote escapes every byte outside [A-Za-z0-9_.~-] and ":/?=".
// net/url has no escaper with a caller-chosen safe set.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func keep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("_.-~:/?=", c) >= 0
}

// Linker builds links and keeps a log of every link handed out.
type Linker struct {
	base   string
	log    store.Log
	logger *zap.Logger
}

func NewLinker(base string, log store.Log, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{base: base, log: log, logger: logger}
}

// Link parses arg and returns the trainer URL. A failed history write is logged
// and does not fail the command.
func (l *Linker) Link(ctx context.Context, arg string) (string, error) {
	req, err := Parse(arg)
	if err != nil {
		return "", err
	}
	u := BuildURL(l.base, req)
	if l.log != nil {
		if err := l.log.Append(ctx, u); err != nil {
			l.logger.Warn("endgame_log_failed", zap.String("url", u), zap.Error(err))
		}
	}
	l.logger.Info("endgame_link", zap.String("url", u))
	return u, nil
}

// History returns every link handed out so far, oldest first.
func (l *Linker) History(ctx context.Context) ([]string, error) {
	if l.log == nil {
		return nil, nil
	}
	return l.log.Load(ctx)
}
