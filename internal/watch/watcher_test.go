package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/BusyBee-chess-bot/internal/ledger"
	"github.com/park285/BusyBee-chess-bot/internal/lichess"
	"github.com/park285/BusyBee-chess-bot/internal/registry"
	"github.com/park285/BusyBee-chess-bot/internal/slowgame"
	"github.com/park285/BusyBee-chess-bot/internal/store"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   int
	asked   [][]string
	results []lichess.PlayingUserStatus
	err     error
}

func (f *fakeSource) FetchPlaying(ctx context.Context, usernames []string) ([]lichess.PlayingUserStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.asked = append(f.asked, append([]string(nil), usernames...))
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	fail int
}

func (n *fakeNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail > 0 {
		n.fail--
		return errors.New("channel unavailable")
	}
	n.sent = append(n.sent, message)
	return nil
}

func (n *fakeNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func newFixture(t *testing.T, users ...string) (*registry.Registry, *ledger.Ledger, *store.MemoryLog) {
	t.Helper()
	ctx := context.Background()
	reg, err := registry.Load(ctx, store.NewMemoryLog(), nil)
	if err != nil { t.Fatalf("registry.Load: %v", err) }
	for _, u := range users {
		if _, err := reg.Add(ctx, u, ""); err != nil { t.Fatalf("Add(%s): %v", u, err) }
	}
	posted := store.NewMemoryLog()
	led, err := ledger.Load(ctx, posted, nil)
	if err != nil { t.Fatalf("ledger.Load: %v", err) }
	return reg, led, posted
}

func TestTickAlertsOncePerGame(t *testing.T) {
	reg, led, posted := newFixture(t, "bob")
	src := &fakeSource{results: []lichess.PlayingUserStatus{{Name: "bob", GameID: "g99", Clock: lichess.Clock{StartingMinutes: 20, IncrementSeconds: 15}}}}
	n := &fakeNotifier{}
	w, err := New(reg, src, led, n, Config{Classifier: slowgame.New(15), GameBaseURL: "https://lichess.org"})
	if err != nil { t.Fatalf("New: %v", err) }

	ctx := context.Background()
	res, err := w.Tick(ctx)
	if err != nil { t.Fatalf("Tick#1: %v", err) }
	if res.Notified != 1 { t.Fatalf("notified=%d want 1", res.Notified) }
	sent := n.Sent()
	if len(sent) != 1 || !strings.Contains(sent[0], "bob") || !strings.Contains(sent[0], "g99") {
		t.Fatalf("unexpected messages: %q", sent)
	}
	if want := "bob is playing a slower game (20+15) on Lichess, watch here: https://lichess.org/g99"; sent[0] != want {
		t.Fatalf("message=%q want %q", sent[0], want)
	}
	if !led.Exists("g99") { t.Fatalf("g99 should be recorded") }

	res, err = w.Tick(ctx)
	if err != nil { t.Fatalf("Tick#2: %v", err) }
	if res.Notified != 0 || res.Known != 1 { t.Fatalf("second tick result=%+v", res) }
	if len(n.Sent()) != 1 { t.Fatalf("second tick sent another alert") }
	if got := posted.Lines(); len(got) != 1 || got[0] != "g99" { t.Fatalf("posted lines=%v", got) }
}

func TestTickSkipsFastAndGameless(t *testing.T) {
	reg, led, _ := newFixture(t, "alice", "bob", "carol")
	src := &fakeSource{results: []lichess.PlayingUserStatus{
		{Name: "alice", GameID: "g1", Clock: lichess.Clock{StartingMinutes: 3, IncrementSeconds: 2}},
		{Name: "bob", GameID: "", Clock: lichess.Clock{StartingMinutes: 30, IncrementSeconds: 0}},
		{Name: "carol", GameID: "g3", Clock: lichess.Clock{StartingMinutes: 15, IncrementSeconds: 0}},
	}}
	n := &fakeNotifier{}
	w, _ := New(reg, src, led, n, Config{Classifier: slowgame.New(15)})

	res, err := w.Tick(context.Background())
	if err != nil { t.Fatalf("Tick: %v", err) }
	if res.Slow != 1 || res.Notified != 1 { t.Fatalf("result=%+v", res) }
	if led.Exists("g1") || !led.Exists("g3") { t.Fatalf("ledger state wrong") }
}

func TestTickAsksSortedRoster(t *testing.T) {
	reg, led, _ := newFixture(t, "zed", "Amy", "bob")
	src := &fakeSource{}
	w, _ := New(reg, src, led, &fakeNotifier{}, Config{})
	if _, err := w.Tick(context.Background()); err != nil { t.Fatalf("Tick: %v", err) }
	got := strings.Join(src.asked[0], ",")
	if got != "Amy,bob,zed" { t.Fatalf("asked %q", got) }
}

func TestTickIncludesOwner(t *testing.T) {
	ctx := context.Background()
	reg, led, _ := newFixture(t)
	if _, err := reg.Add(ctx, "bob", "kakao-42"); err != nil { t.Fatalf("Add: %v", err) }
	src := &fakeSource{results: []lichess.PlayingUserStatus{{Name: "bob", GameID: "g7", Clock: lichess.Clock{StartingMinutes: 30, IncrementSeconds: 0}}}}
	w, _ := New(reg, src, led, &fakeNotifier{}, Config{Classifier: slowgame.New(15)})

	res, err := w.Check(ctx)
	if err != nil { t.Fatalf("Check: %v", err) }
	if len(res.Alerts) != 1 || res.Alerts[0].OwnerID != "kakao-42" || !res.Alerts[0].Linked() {
		t.Fatalf("alerts=%+v", res.Alerts)
	}
	if led.Exists("g7") { t.Fatalf("Check must not record") }
}

func TestSharedGameAnnouncedOnce(t *testing.T) {
	reg, led, _ := newFixture(t, "alice", "bob")
	clock := lichess.Clock{StartingMinutes: 30, IncrementSeconds: 20}
	src := &fakeSource{results: []lichess.PlayingUserStatus{
		{Name: "alice", GameID: "g5", Clock: clock},
		{Name: "bob", GameID: "g5", Clock: clock},
	}}
	n := &fakeNotifier{}
	w, _ := New(reg, src, led, n, Config{Classifier: slowgame.New(15)})
	if _, err := w.Tick(context.Background()); err != nil { t.Fatalf("Tick: %v", err) }
	if len(n.Sent()) != 1 { t.Fatalf("sent %d alerts for one game", len(n.Sent())) }
}

func TestFailedNotifyIsRetried(t *testing.T) {
	reg, led, _ := newFixture(t, "bob")
	src := &fakeSource{results: []lichess.PlayingUserStatus{{Name: "bob", GameID: "g99", Clock: lichess.Clock{StartingMinutes: 20, IncrementSeconds: 15}}}}
	n := &fakeNotifier{fail: 1}
	w, _ := New(reg, src, led, n, Config{Classifier: slowgame.New(15)})
	ctx := context.Background()

	res, err := w.Tick(ctx)
	if err != nil { t.Fatalf("Tick#1: %v", err) }
	if res.Failed != 1 || led.Exists("g99") { t.Fatalf("failed notify must not record: %+v", res) }

	res, err = w.Tick(ctx)
	if err != nil { t.Fatalf("Tick#2: %v", err) }
	if res.Notified != 1 || !led.Exists("g99") { t.Fatalf("retry result=%+v", res) }
}

func TestTransportFailureSkipsTick(t *testing.T) {
	reg, led, _ := newFixture(t, "bob")
	src := &fakeSource{err: lichess.ErrTransport}
	n := &fakeNotifier{}
	w, _ := New(reg, src, led, n, Config{Classifier: slowgame.New(15)})
	_, err := w.Tick(context.Background())
	if !errors.Is(err, lichess.ErrTransport) { t.Fatalf("want ErrTransport, got %v", err) }
	if len(n.Sent()) != 0 || led.Len() != 0 { t.Fatalf("failed tick had side effects") }
}

func TestStartStop(t *testing.T) {
	reg, led, _ := newFixture(t, "bob")
	src := &fakeSource{err: lichess.ErrTransport}
	w, _ := New(reg, src, led, &fakeNotifier{}, Config{Interval: 10 * time.Millisecond})

	if w.State() != StateIdle { t.Fatalf("initial state=%v", w.State()) }
	if err := w.Start(context.Background()); err != nil { t.Fatalf("Start: %v", err) }
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) { t.Fatalf("second Start err=%v", err) }

	deadline := time.Now().Add(2 * time.Second)
	for src.Calls() < 3 {
		if time.Now().After(deadline) { t.Fatalf("loop did not keep ticking after failures (calls=%d)", src.Calls()) }
		time.Sleep(5 * time.Millisecond)
	}

	w.Stop()
	if w.State() != StateIdle { t.Fatalf("state after Stop=%v", w.State()) }
	after := src.Calls()
	time.Sleep(50 * time.Millisecond)
	if src.Calls() != after { t.Fatalf("tick fired after Stop returned") }

	// restartable
	if err := w.Start(context.Background()); err != nil { t.Fatalf("restart: %v", err) }
	w.Stop()
}

func TestCancelledStartContextReturnsToIdle(t *testing.T) {
	reg, led, _ := newFixture(t, "bob")
	src := &fakeSource{}
	w, _ := New(reg, src, led, &fakeNotifier{}, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil { t.Fatalf("Start: %v", err) }
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for w.State() != StateIdle {
		if time.Now().After(deadline) { t.Fatalf("state stayed %v after ctx cancel", w.State()) }
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()

	if err := w.Start(context.Background()); err != nil { t.Fatalf("Start after cancel: %v", err) }
	if w.State() != StateRunning { t.Fatalf("state=%v", w.State()) }
	w.Stop()
	if w.State() != StateIdle { t.Fatalf("state after Stop=%v", w.State()) }
}

func TestStopWithoutStart(t *testing.T) {
	reg, led, _ := newFixture(t)
	w, _ := New(reg, &fakeSource{}, led, &fakeNotifier{}, Config{})
	w.Stop()
	if w.State() != StateIdle { t.Fatalf("state=%v", w.State()) }
}

type countingSource struct {
	inFlight int32
	overlap  int32
	calls    int32
}

func (c *countingSource) FetchPlaying(ctx context.Context, usernames []string) ([]lichess.PlayingUserStatus, error) {
	if atomic.AddInt32(&c.inFlight, 1) > 1 {
		atomic.StoreInt32(&c.overlap, 1)
	}
	atomic.AddInt32(&c.calls, 1)
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&c.inFlight, -1)
	return nil, nil
}

func TestTicksDoNotOverlap(t *testing.T) {
	reg, led, _ := newFixture(t, "bob")
	src := &countingSource{}
	w, _ := New(reg, src, led, &fakeNotifier{}, Config{Interval: time.Millisecond})
	if err := w.Start(context.Background()); err != nil { t.Fatalf("Start: %v", err) }
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); _, _ = w.Tick(context.Background()) }()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	if atomic.LoadInt32(&src.overlap) != 0 { t.Fatalf("ticks overlapped") }
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, &fakeSource{}, nil, nil, Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err=%v", err)
	}
}

type mapRenderer map[string]string

func (m mapRenderer) Render(key string, data any) (string, error) {
	v, ok := m[key]
	if !ok { return "", errors.New("missing") }
	d := data.(map[string]any)
	return strings.NewReplacer("NAME", d["Name"].(string), "URL", d["URL"].(string)).Replace(v), nil
}

func TestCatalogFormatterFallback(t *testing.T) {
	a := Alert{Username: "bob", GameID: "g1", Clock: "20+15", URL: "https://lichess.org/g1"}
	got, err := CatalogFormatter{Catalog: mapRenderer{DefaultAlertKey: "NAME -> URL"}}.Format(a)
	if err != nil || got != "bob -> https://lichess.org/g1" { t.Fatalf("catalog format=%q err=%v", got, err) }
	got, err = CatalogFormatter{Catalog: mapRenderer{}}.Format(a)
	if err != nil || !strings.HasPrefix(got, "bob is playing a slower game (20+15)") { t.Fatalf("fallback=%q err=%v", got, err) }
}
