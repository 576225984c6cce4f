// Package slowgame decides whether a time control counts as a slow game.
package slowgame

// DefaultThresholdMinutes is used when no threshold is configured.
const DefaultThresholdMinutes = 15

// Classifier is stateless; the zero value treats every game as slow.
type Classifier struct {
	ThresholdMinutes float64
}

func New(thresholdMinutes float64) Classifier {
	return Classifier{ThresholdMinutes: thresholdMinutes}
}

// TotalMinutes estimates the time budget of a game: starting time plus the
// increment over 40 moves (2/3 of the increment in seconds, as minutes).
// startingMinutes is fractional when the clock starts on a non-whole minute.
func TotalMinutes(startingMinutes float64, incrementSeconds int) float64 {
	return startingMinutes + float64(incrementSeconds)*2/3
}

// IsSlow is inclusive: a total equal to the threshold is slow.
func (c Classifier) IsSlow(startingMinutes float64, incrementSeconds int) bool {
	return TotalMinutes(startingMinutes, incrementSeconds) >= c.ThresholdMinutes
}
