package tracker

import (
	"fmt"
	"time"

	"github.com/rportela/live-bet-bot/internal/fixtures"
)

// WindowState guarda o progresso de uma janela de aposta numa partida.
// As flags só andam pra frente; cada efeito colateral é guardado por uma
// delas antes de disparar, o que torna o reprocessamento de snapshot inócuo
type WindowState struct {
	// Placed marca a janela como avaliada; também vale pro caminho no-op em
	// que o placar não qualificava e nenhuma aposta foi feita
	Placed bool `json:"placed"`
	// BetMade indica que existe aposta de verdade no ledger
	BetMade  bool   `json:"bet_made"`
	RefScore string `json:"ref_score,omitempty"`
	// Checked marca resultado conferido; implica Placed
	Checked bool `json:"checked"`
	// Won é tri-estado: nil enquanto o resultado não foi conferido
	Won *bool `json:"won,omitempty"`
}

// MatchState é o documento durável de rastreio de uma partida, um por fixture
// enquanto ela for relevante pra alguma aposta
type MatchState struct {
	FixtureID  int    `json:"fixture_id"`
	MatchName  string `json:"match_name"`
	LeagueID   int    `json:"league_id"`
	LeagueName string `json:"league_name"`
	Country    string `json:"country"`

	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	LastStatus string    `json:"last_status"`
	LastMinute int       `json:"last_minute"`

	HalftimeScore string `json:"score_at_ht,omitempty"`

	Windows map[string]*WindowState `json:"windows"`
}

// NewMatchState cria o estado inicial na primeira vez que uma partida ao vivo
// aparece no ciclo
func NewMatchState(snap fixtures.Snapshot, now time.Time) *MatchState {
	return &MatchState{
		FixtureID:  snap.FixtureID,
		MatchName:  snap.MatchName,
		LeagueID:   snap.LeagueID,
		LeagueName: snap.LeagueName,
		Country:    snap.Country,
		FirstSeen:  now,
		LastSeen:   now,
		LastStatus: string(snap.Status),
		Windows:    map[string]*WindowState{},
	}
}

// Window retorna o estado da janela, criando-o vazio na primeira consulta
func (m *MatchState) Window(id string) *WindowState {
	if m.Windows == nil {
		m.Windows = map[string]*WindowState{}
	}
	ws, ok := m.Windows[id]
	if !ok {
		ws = &WindowState{}
		m.Windows[id] = ws
	}
	return ws
}

// validate confere o registro na fronteira do store: rejeita documentos sem
// chave e repara o que dá pra reparar (mapa de janelas ausente)
func validate(m *MatchState) error {
	if m.FixtureID <= 0 {
		return fmt.Errorf("match state without fixture id")
	}
	if m.Windows == nil {
		m.Windows = map[string]*WindowState{}
	}
	for id, ws := range m.Windows {
		if ws == nil {
			m.Windows[id] = &WindowState{}
			continue
		}
		if ws.Checked && !ws.Placed {
			return fmt.Errorf("match state %d window %q: checked without placed", m.FixtureID, id)
		}
	}
	return nil
}
