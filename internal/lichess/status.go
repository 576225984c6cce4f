package lichess

import (
	"strconv"
	"strings"

	"github.com/park285/BusyBee-chess-bot/internal/slowgame"
)

// Clock is a time control: starting minutes plus increment seconds per move.
// StartingMinutes is fractional for clocks that start on a non-whole minute.
type Clock struct {
	StartingMinutes  float64
	IncrementSeconds int
}

// ClockFromSeconds converts the seconds based clock of the game endpoint.
func ClockFromSeconds(initial, increment int) Clock {
	return Clock{StartingMinutes: float64(initial) / 60, IncrementSeconds: increment}
}

// ParseClock reads "<minutes>+<incrementSeconds>". Anything else, including
// fractional or negative parts, yields ok=false.
func ParseClock(s string) (Clock, bool) {
	start, inc, found := strings.Cut(strings.TrimSpace(s), "+")
	if !found {
		return Clock{}, false
	}
	t, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil || t < 0 {
		return Clock{}, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(inc))
	if err != nil || i < 0 {
		return Clock{}, false
	}
	return Clock{StartingMinutes: float64(t), IncrementSeconds: i}, true
}

func (c Clock) String() string {
	return strconv.FormatFloat(c.StartingMinutes, 'f', -1, 64) + "+" + strconv.Itoa(c.IncrementSeconds)
}

func (c Clock) TotalMinutes() float64 {
	return slowgame.TotalMinutes(c.StartingMinutes, c.IncrementSeconds)
}

// PlayingUserStatus is a user seen in a game with a known clock. It is only built
// when the clock parsed; an empty GameID means no game to link to.
type PlayingUserStatus struct {
	Name   string
	GameID string
	Clock  Clock
}

func (p PlayingUserStatus) TotalMinutes() float64 { return p.Clock.TotalMinutes() }

func (p PlayingUserStatus) IsSlow(c slowgame.Classifier) bool {
	return c.IsSlow(p.Clock.StartingMinutes, p.Clock.IncrementSeconds)
}

// GameURL joins the site base and the game id.
func (p PlayingUserStatus) GameURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + p.GameID
}

// statusFromMeta builds a status from the batch endpoint's clock string.
func statusFromMeta(name, gameID, clock string) (PlayingUserStatus, bool) {
	if strings.TrimSpace(name) == "" {
		return PlayingUserStatus{}, false
	}
	c, ok := ParseClock(clock)
	if !ok {
		return PlayingUserStatus{}, false
	}
	return PlayingUserStatus{Name: name, GameID: strings.TrimSpace(gameID), Clock: c}, true
}
