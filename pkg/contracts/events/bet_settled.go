package events

// Evento publicado no tópico "bet_settled" quando uma aposta é resolvida,
// seja ao vivo (HT/FT observado no ciclo) ou pela varredura de apostas antigas
type BetSettled struct {
	FixtureID  int    `json:"fixture_id"`
	BetType    string `json:"bet_type"`
	MatchName  string `json:"match_name"`
	Outcome    string `json:"outcome"` // "win" | "loss" | "push"
	RefScore   string `json:"ref_score"`
	FinalScore string `json:"final_score"`
	Source     string `json:"source"` // "live" | "sweep"
	TsUnixMs   int64  `json:"ts_unix_ms"`
}
