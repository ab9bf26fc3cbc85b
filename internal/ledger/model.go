package ledger

import "time"

// BetRecord é uma aposta pendente de liquidação, chaveada por (fixture, tipo)
// Metadados de liga são desnormalizados pra montar notificações sem fetch extra
type BetRecord struct {
	FixtureID  int
	Type       string // id da janela de estratégia, ex: "primary36"
	MatchName  string
	LeagueID   int
	LeagueName string
	Country    string
	RefScore   string  // placar de referência capturado na colocação
	OverLine   float64 // 0 = aposta de placar exato
	PriorScore string  // chase: referência da primária perdida
	PlacedAt   time.Time
}

// ResolvedBet é o registro permanente de uma aposta liquidada; nunca é mutado
type ResolvedBet struct {
	BetRecord
	ID         string // uuid, partição resolved é append-only
	Outcome    string // "win" | "loss" | "push"
	FinalScore string
	ResolvedAt time.Time
}
