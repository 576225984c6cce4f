package lichess

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/BusyBee-chess-bot/internal/slowgame"
)

func TestParseClock(t *testing.T) {
	c, ok := ParseClock("20+10")
	if !ok || c.StartingMinutes != 20 || c.IncrementSeconds != 10 {
		t.Fatalf("ParseClock(20+10)=%+v ok=%v", c, ok)
	}
	if math.Abs(c.TotalMinutes()-26.67) > 0.01 {
		t.Fatalf("total=%v", c.TotalMinutes())
	}
	for _, bad := range []string{"unknown", "", "+", "20+", "+5", "1.5+2", "-1+0", "3+-2"} {
		if _, ok := ParseClock(bad); ok {
			t.Fatalf("ParseClock(%q) should fail", bad)
		}
	}
	if c.String() != "20+10" {
		t.Fatalf("String()=%q", c.String())
	}
}

func TestGameURL(t *testing.T) {
	p := PlayingUserStatus{Name: "bob", GameID: "g99", Clock: Clock{20, 15}}
	if got := p.GameURL("https://lichess.org/"); got != "https://lichess.org/g99" {
		t.Fatalf("GameURL=%q", got)
	}
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithTimeout(2 * time.Second), WithRateLimit(0)}, opts...)
	return NewClient(srv.URL, Credential{Token: "tok"}, opts...)
}

func TestFetchBatchQueriesFirstHundred(t *testing.T) {
	var gotIDs []string
	var auth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/status" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if r.URL.Query().Get("withGameMetas") != "true" {
			t.Errorf("withGameMetas missing: %s", r.URL.RawQuery)
		}
		gotIDs = strings.Split(r.URL.Query().Get("ids"), ",")
		_, _ = w.Write([]byte("[]"))
	}))

	names := make([]string, 150)
	for i := range names {
		names[i] = fmt.Sprintf("user%03d", i)
	}
	sort.Strings(names)
	if _, err := c.FetchBatch(context.Background(), names); err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(gotIDs) != 100 {
		t.Fatalf("queried %d ids, want 100", len(gotIDs))
	}
	for i, id := range gotIDs {
		if id != names[i] {
			t.Fatalf("id[%d]=%q want %q", i, id, names[i])
		}
	}
	if auth != "Bearer tok" {
		t.Fatalf("authorization header=%q", auth)
	}
}

func TestFetchPlayingClassifiesAndFallsBack(t *testing.T) {
	var fallbackCalls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/status":
			_, _ = w.Write([]byte(`[
				{"id":"bob","name":"Bob","playing":{"id":"g99","clock":"20+15","variant":"standard"}},
				{"id":"carol","name":"carol","playing":true},
				{"id":"dave","name":"dave","playing":{"id":"g3","clock":"unknown"}},
				{"id":"erin","name":"erin"}
			]`))
		case "/api/user/carol/current-game":
			atomic.AddInt32(&fallbackCalls, 1)
			_, _ = w.Write([]byte(`{"id":"g42","status":"started","clock":{"initial":1800,"increment":20}}`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	got, err := c.FetchPlaying(context.Background(), []string{"bob", "carol", "dave", "erin"})
	if err != nil {
		t.Fatalf("FetchPlaying: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d statuses: %+v", len(got), got)
	}
	if got[0].Name != "bob" || got[0].GameID != "g99" || got[0].Clock != (Clock{20, 15}) {
		t.Fatalf("bob status=%+v", got[0])
	}
	if got[1].Name != "carol" || got[1].GameID != "g42" || got[1].Clock != (Clock{30, 20}) {
		t.Fatalf("carol status=%+v", got[1])
	}
	if n := atomic.LoadInt32(&fallbackCalls); n != 1 {
		t.Fatalf("fallback calls=%d want 1", n)
	}
}

func TestFetchPlayingSkipsFailedFallback(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/status":
			_, _ = w.Write([]byte(`[{"id":"carol","playing":true},{"id":"bob","playing":{"id":"g1","clock":"15+0"}}]`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	got, err := c.FetchPlaying(context.Background(), []string{"bob", "carol"})
	if err != nil {
		t.Fatalf("FetchPlaying: %v", err)
	}
	if len(got) != 1 || got[0].Name != "bob" {
		t.Fatalf("got %+v", got)
	}
}

func TestFetchCurrentGameAbsent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user/ended/current-game":
			_, _ = w.Write([]byte(`{"id":"g5","status":"mate","clock":{"initial":600,"increment":0}}`))
		case "/api/user/noclock/current-game":
			_, _ = w.Write([]byte(`{"id":"g6","status":"started"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	for _, name := range []string{"ended", "noclock", "ghost"} {
		_, ok, err := c.FetchCurrentGame(context.Background(), name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if ok {
			t.Fatalf("%s: expected absent", name)
		}
	}
}

func TestUserExists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user/alice":
			_, _ = w.Write([]byte(`{"id":"alice"}`))
		case "/api/user/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()
	if ok, err := c.UserExists(ctx, "alice"); err != nil || !ok {
		t.Fatalf("alice: ok=%v err=%v", ok, err)
	}
	if ok, err := c.UserExists(ctx, "nobody"); err != nil || ok {
		t.Fatalf("nobody: ok=%v err=%v", ok, err)
	}
	_, err := c.UserExists(ctx, "broken")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("broken: err=%v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("status error should match ErrTransport: %v", err)
	}
}

func TestTransportFailureIsDistinguishable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(base, Credential{}, WithTimeout(500*time.Millisecond), WithRateLimit(0))
	_, err := c.FetchBatch(context.Background(), []string{"bob"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-time.After(5 * time.Second):
		}
	}), WithTimeout(200*time.Millisecond))

	start := time.Now()
	_, err := c.FetchBatch(context.Background(), []string{"bob"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("want ErrTransport on timeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("request was not bounded: %v", time.Since(start))
	}
}

func TestFailedRequestIsNotRepeated(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	_, err := c.FetchBatch(context.Background(), []string{"bob"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("err=%v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls=%d want 1", n)
	}
}

func TestStatusErrorCarriesLichessMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad ids"}`))
	}))
	_, err := c.FetchBatch(context.Background(), []string{"bob"})
	var se *StatusError
	if !errors.As(err, &se) || se.Body != "bad ids" {
		t.Fatalf("err=%v", err)
	}
}

func TestFallbackKeepsFractionalMinutes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/status":
			_, _ = w.Write([]byte(`[{"id":"carol","playing":true}]`))
		case "/api/user/carol/current-game":
			_, _ = w.Write([]byte(`{"id":"g7","status":"started","clock":{"initial":870,"increment":1}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	got, err := c.FetchPlaying(context.Background(), []string{"carol"})
	if err != nil {
		t.Fatalf("FetchPlaying: %v", err)
	}
	if len(got) != 1 || got[0].Clock.StartingMinutes != 14.5 || got[0].Clock.String() != "14.5+1" {
		t.Fatalf("got %+v", got)
	}
	if !got[0].IsSlow(slowgame.New(15)) {
		t.Fatalf("14.5+1 totals %.2f and should reach 15", got[0].TotalMinutes())
	}
}

func TestFetchPlayingKeepsEverySpelling(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/status":
			_, _ = w.Write([]byte(`[{"id":"alice","name":"Alice","playing":{"id":"g1","clock":"30+0"}},{"id":"carol","playing":true}]`))
		case "/api/user/Carol/current-game":
			_, _ = w.Write([]byte(`{"id":"g2","status":"started","clock":{"initial":1800,"increment":0}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	got, err := c.FetchPlaying(context.Background(), []string{"Alice", "alice", "Carol", "CAROL"})
	if err != nil {
		t.Fatalf("FetchPlaying: %v", err)
	}
	var names []string
	for _, s := range got {
		names = append(names, s.Name+"/"+s.GameID)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "Alice/g1,CAROL/g2,Carol/g2,alice/g1" {
		t.Fatalf("names=%v", names)
	}
}
