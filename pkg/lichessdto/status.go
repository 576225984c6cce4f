// Package lichessdto holds the wire shapes of the lichess endpoints the bot reads.
package lichessdto

import "encoding/json"

// UserStatus is one element of GET /api/users/status.
// Playing is either an object (withGameMetas=true) or a bare boolean, so it is
// kept raw and interpreted by PlayingMeta.
type UserStatus struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Online  bool            `json:"online,omitempty"`
	Playing json.RawMessage `json:"playing,omitempty"`
}

// GameMeta is the object form of UserStatus.Playing.
type GameMeta struct {
	ID      string `json:"id"`
	Clock   string `json:"clock"`
	Variant string `json:"variant,omitempty"`
}

// IsPlaying reports whether the service flagged the user as in a game, in either form.
func (s UserStatus) IsPlaying() bool {
	if len(s.Playing) == 0 {
		return false
	}
	switch string(s.Playing) {
	case "null", "false":
		return false
	}
	return true
}

// PlayingMeta decodes the structured game metadata. ok is false when the service
// only sent a flag or the object is unusable.
func (s UserStatus) PlayingMeta() (GameMeta, bool) {
	if !s.IsPlaying() || s.Playing[0] != '{' {
		return GameMeta{}, false
	}
	var m GameMeta
	if err := json.Unmarshal(s.Playing, &m); err != nil {
		return GameMeta{}, false
	}
	return m, true
}

// DisplayName prefers the service's cased name over the lowercase id.
func (s UserStatus) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
