// Package lichess queries lichess.org for the live game status of watched users.
package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/park285/BusyBee-chess-bot/internal/obslog"
	"github.com/park285/BusyBee-chess-bot/internal/util"
	"github.com/park285/BusyBee-chess-bot/pkg/lichessdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://lichess.org"
	// MaxBatch is the service's own limit on ids per status request.
	MaxBatch = 100
)

// ErrTransport marks network and HTTP failures. Callers skip the work on it.
var ErrTransport = errors.New("lichess transport failure")

// StatusError is a non-2xx answer. It matches ErrTransport with errors.Is.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lichess api error: status=%d body=%s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// Credential is the personal API token sent as a bearer header. An empty token
// sends anonymous requests.
type Credential struct {
	Token string
}

func (c Credential) apply(req *fasthttp.Request) {
	if t := strings.TrimSpace(c.Token); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
}

type Client struct {
	baseURL  string
	http     *fasthttp.Client
	cred     Credential
	limiter  *rate.Limiter
	timeout  time.Duration
	batchCap int
	logger   *zap.Logger
}

type Option func(*Client)

// WithTimeout bounds every request; a stalled call cannot hold a tick forever.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithBatchCap(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= MaxBatch {
			c.batchCap = n
		}
	}
}

// WithRateLimit spaces requests to perMinute; zero or less disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, cred Credential, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		cred:     cred,
		timeout:  10 * time.Second,
		batchCap: MaxBatch,
		logger:   obslog.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchBatch asks for the status of up to the batch cap of usernames in one request.
// Names past the cap are not queried; that is accepted, not an error.
func (c *Client) FetchBatch(ctx context.Context, usernames []string) ([]lichessdto.UserStatus, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	if len(usernames) > c.batchCap {
		c.logger.Warn("lichess_batch_truncated", zap.Int("requested", len(usernames)), zap.Int("cap", c.batchCap))
		usernames = usernames[:c.batchCap]
	}
	q := url.Values{}
	q.Set("ids", strings.Join(usernames, ","))
	q.Set("withGameMetas", "true")

	var out []lichessdto.UserStatus
	if _, err := c.getJSON(ctx, "/api/users/status", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchPlaying returns the users from the batch who are in a game with a known clock.
// Users the batch flags as playing without clock metadata are looked up one by one;
// a failed lookup drops that user for this call only.
func (c *Client) FetchPlaying(ctx context.Context, usernames []string) ([]PlayingUserStatus, error) {
	statuses, err := c.FetchBatch(ctx, usernames)
	if err != nil {
		return nil, err
	}

	// lichess ids are lowercase; every registered spelling of a name gets its own status
	requested := make(map[string][]string, len(usernames))
	for _, u := range usernames {
		k := strings.ToLower(u)
		requested[k] = append(requested[k], u)
	}

	var out []PlayingUserStatus
	for _, s := range statuses {
		if !s.IsPlaying() {
			continue
		}
		names := requested[strings.ToLower(s.ID)]
		if len(names) == 0 {
			names = requested[strings.ToLower(s.DisplayName())]
		}
		if len(names) == 0 {
			names = []string{s.DisplayName()}
		}

		if meta, ok := s.PlayingMeta(); ok && strings.TrimSpace(meta.Clock) != "" {
			for _, name := range names {
				if st, ok := statusFromMeta(name, meta.ID, meta.Clock); ok {
					out = append(out, st)
				} else {
					c.logger.Debug("lichess_clock_unparsed", zap.String("username", name), zap.String("clock", meta.Clock))
				}
			}
			continue
		}

		c.logger.Info("lichess_status_degraded", zap.String("username", names[0]), zap.ByteString("playing", s.Playing))
		st, ok, err := c.FetchCurrentGame(ctx, names[0])
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.logger.Warn("lichess_fallback_failed", zap.String("username", names[0]), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		for _, name := range names {
			st.Name = name
			out = append(out, st)
		}
	}
	return out, nil
}

// FetchCurrentGame looks up one user's ongoing game. ok is false when the user is
// not in a started game or the answer lacks a clock or id.
func (c *Client) FetchCurrentGame(ctx context.Context, username string) (PlayingUserStatus, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return PlayingUserStatus{}, false, nil
	}
	q := url.Values{}
	q.Set("moves", "false")
	q.Set("pgnInJson", "false")

	var g lichessdto.CurrentGame
	status, err := c.getJSON(ctx, "/api/user/"+url.PathEscape(username)+"/current-game", q, &g)
	if status == fasthttp.StatusNotFound {
		return PlayingUserStatus{}, false, nil
	}
	if err != nil {
		return PlayingUserStatus{}, false, err
	}
	if g.Status != lichessdto.StatusStarted || g.Clock == nil || strings.TrimSpace(g.ID) == "" {
		return PlayingUserStatus{}, false, nil
	}
	if g.Clock.Initial < 0 || g.Clock.Increment < 0 {
		return PlayingUserStatus{}, false, nil
	}
	return PlayingUserStatus{
		Name:   username,
		GameID: g.ID,
		Clock:  ClockFromSeconds(g.Clock.Initial, g.Clock.Increment),
	}, true, nil
}

// UserExists probes the public profile endpoint.
func (c *Client) UserExists(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, nil
	}
	status, err := c.getJSON(ctx, "/api/user/"+url.PathEscape(username), nil, nil)
	if status == fasthttp.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// getJSON returns the HTTP status (0 when no response arrived) with the error.
// A failed request is not retried; the next tick asks again.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (int, error) {
	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(uri)
	req.Header.Set("Accept", "application/json")
	c.cred.apply(req)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, util.Deadline(ctx, c.timeout)); err != nil {
		return 0, fmt.Errorf("%w: GET %s: %v", ErrTransport, path, err)
	}

	status := resp.StatusCode()
	c.logger.Debug("lichess_request", zap.String("path", path), zap.Int("status", status), zap.Duration("took", time.Since(start)))
	if status < 200 || status >= 300 {
		return status, &StatusError{Code: status, Body: errorBody(resp.Body())}
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return status, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return status, nil
}

// errorBody prefers the {"error": "..."} message lichess sends over the raw body.
func errorBody(body []byte) string {
	var e lichessdto.Error
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return util.Truncate(e.Error(), 256)
	}
	return util.Truncate(string(body), 256)
}
