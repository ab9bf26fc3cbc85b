package events

// Evento publicado no tópico "bet_placed" a cada aposta registrada no ledger
type BetPlaced struct {
	FixtureID  int     `json:"fixture_id"`
	BetType    string  `json:"bet_type"` // ex: "primary36", "chase80", "over32"
	MatchName  string  `json:"match_name"`
	LeagueID   int     `json:"league_id"`
	LeagueName string  `json:"league_name"`
	Country    string  `json:"country"`
	RefScore   string  `json:"ref_score"`
	OverLine   float64 `json:"over_line,omitempty"`
	TsUnixMs   int64   `json:"ts_unix_ms"`
}
