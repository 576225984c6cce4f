package lichessdto

// CurrentGame is the subset of GET /api/user/{name}/current-game the bot uses.
type CurrentGame struct {
	ID      string     `json:"id"`
	Rated   bool       `json:"rated,omitempty"`
	Variant string     `json:"variant,omitempty"`
	Speed   string     `json:"speed,omitempty"`
	Status  string     `json:"status"`
	Clock   *GameClock `json:"clock,omitempty"`
}

// GameClock values are in seconds.
type GameClock struct {
	Initial   int `json:"initial"`
	Increment int `json:"increment"`
	TotalTime int `json:"totalTime,omitempty"`
}

const StatusStarted = "started"

// Error mirrors the {"error": "..."} body lichess returns on failures.
type Error struct {
	Message string `json:"error"`
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "lichess error"
}
