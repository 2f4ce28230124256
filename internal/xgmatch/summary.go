package xgmatch

import "fmt"

// Summary is a short description of a parsed match.
type Summary struct {
	Title       string `json:"title"`
	Player1     string `json:"player1"`
	Player2     string `json:"player2"`
	MatchLength int    `json:"matchLength"`
	Length      string `json:"length"`
	Games       int    `json:"games"`
	Actions     int    `json:"actions"`
}

// Summarize describes pm.
func Summarize(pm *ParsedMatch) Summary {
	s := Summary{
		Title:       pm.Match.Player1 + " vs " + pm.Match.Player2,
		Player1:     pm.Match.Player1,
		Player2:     pm.Match.Player2,
		MatchLength: pm.Match.MatchLength,
		Length:      "Unlimited game",
		Games:       len(pm.Games),
	}
	if pm.Match.MatchLength > 0 {
		s.Length = fmt.Sprintf("%d-point match", pm.Match.MatchLength)
	}
	for _, g := range pm.Games {
		s.Actions += len(g.Actions)
	}
	return s
}

// String renders the summary on one line, e.g.
// "Alice vs Bob | 7-point match | 5 games".
func (s Summary) String() string {
	plural := "s"
	if s.Games == 1 {
		plural = ""
	}
	return fmt.Sprintf("%s | %s | %d game%s", s.Title, s.Length, s.Games, plural)
}
