package fixtures

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rportela/live-bet-bot/internal/fixtures/dto"
)

// Status canônico de uma partida, derivado do código curto da API
type Status string

const (
	StatusPreLive    Status = "pre_live"
	StatusFirstHalf  Status = "first_half"
	StatusHalftime   Status = "halftime"
	StatusSecondHalf Status = "second_half"
	StatusExtraTime  Status = "extra_time"
	StatusPenalties  Status = "penalties"
	StatusFinished   Status = "finished"
	StatusUnknown    Status = "unknown"
)

// IsLive indica partida em andamento (bola rolando, fora do intervalo)
func (s Status) IsLive() bool {
	switch s {
	case StatusFirstHalf, StatusSecondHalf, StatusExtraTime, StatusPenalties:
		return true
	}
	return false
}

func (s Status) IsFinished() bool { return s == StatusFinished }

// statusFromShort mapeia o código curto da API pro enum canônico
func statusFromShort(short string) Status {
	switch strings.ToUpper(short) {
	case "NS", "TBD":
		return StatusPreLive
	case "1H", "LIVE":
		return StatusFirstHalf
	case "HT":
		return StatusHalftime
	case "2H":
		return StatusSecondHalf
	case "ET", "BT":
		return StatusExtraTime
	case "P":
		return StatusPenalties
	case "FT", "AET", "PEN":
		return StatusFinished
	}
	return StatusUnknown
}

// Score é um placar estruturado; gols ausentes na API normalizam pra 0
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

func (s Score) String() string { return fmt.Sprintf("%d-%d", s.Home, s.Away) }

func (s Score) Total() int { return s.Home + s.Away }

// ParseScore converte "h-a" de volta pra Score; placar malformado é erro,
// nunca um default silencioso
func ParseScore(raw string) (Score, error) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return Score{}, fmt.Errorf("malformed score %q", raw)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Score{}, fmt.Errorf("malformed score %q: %w", raw, err)
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Score{}, fmt.Errorf("malformed score %q: %w", raw, err)
	}
	if h < 0 || a < 0 {
		return Score{}, fmt.Errorf("malformed score %q: negative goals", raw)
	}
	return Score{Home: h, Away: a}, nil
}

// Snapshot é a visão canônica de uma partida num ciclo de polling
type Snapshot struct {
	FixtureID   int
	MatchName   string
	LeagueID    int
	LeagueName  string
	Country     string
	Status      Status
	Minute      int
	MinuteKnown bool
	Score       Score

	// Placar do intervalo quando a API já o reportou (partida em 2H ou encerrada)
	HalftimeScore      Score
	HalftimeScoreKnown bool
}

// Normalize converte o registro cru da API num Snapshot canônico
func Normalize(m dto.Match) Snapshot {
	snap := Snapshot{
		FixtureID:  m.Fixture.ID,
		MatchName:  m.Teams.Home.Name + " vs " + m.Teams.Away.Name,
		LeagueID:   m.League.ID,
		LeagueName: m.League.Name,
		Country:    m.League.Country,
		Status:     statusFromShort(m.Fixture.Status.Short),
		Score:      scoreFromGoals(m.Goals),
	}

	if m.Fixture.Status.Elapsed != nil {
		snap.Minute = *m.Fixture.Status.Elapsed
		snap.MinuteKnown = true
	}

	if m.Score.Halftime.Home != nil && m.Score.Halftime.Away != nil {
		snap.HalftimeScore = scoreFromGoals(m.Score.Halftime)
		snap.HalftimeScoreKnown = true
	}

	return snap
}

func scoreFromGoals(g dto.Goals) Score {
	var s Score
	if g.Home != nil {
		s.Home = *g.Home
	}
	if g.Away != nil {
		s.Away = *g.Away
	}
	return s
}
