package fixtures

import (
	"encoding/json"
	"testing"

	"github.com/rportela/live-bet-bot/internal/fixtures/dto"
)

func TestNormalizeLiveMatch(t *testing.T) {
	const raw = `{
		"fixture": {"id": 100, "status": {"short": "1H", "elapsed": 36}},
		"league": {"id": 39, "name": "Premier League", "country": "England"},
		"teams": {"home": {"name": "Arsenal"}, "away": {"name": "Chelsea"}},
		"goals": {"home": 1, "away": 1},
		"score": {"halftime": {"home": null, "away": null}, "fulltime": {"home": null, "away": null}}
	}`

	var m dto.Match
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	snap := Normalize(m)

	if snap.FixtureID != 100 {
		t.Errorf("FixtureID = %d, want 100", snap.FixtureID)
	}
	if snap.MatchName != "Arsenal vs Chelsea" {
		t.Errorf("MatchName = %q", snap.MatchName)
	}
	if snap.Status != StatusFirstHalf {
		t.Errorf("Status = %q, want first_half", snap.Status)
	}
	if !snap.MinuteKnown || snap.Minute != 36 {
		t.Errorf("Minute = %d (known=%v), want 36", snap.Minute, snap.MinuteKnown)
	}
	if got := snap.Score.String(); got != "1-1" {
		t.Errorf("Score = %q, want 1-1", got)
	}
	if snap.HalftimeScoreKnown {
		t.Error("HalftimeScoreKnown = true for null halftime score")
	}
	if snap.LeagueName != "Premier League" || snap.Country != "England" {
		t.Errorf("league metadata = %q/%q", snap.LeagueName, snap.Country)
	}
}

func TestNormalizeFinishedWithHalftime(t *testing.T) {
	const raw = `{
		"fixture": {"id": 300, "status": {"short": "FT", "elapsed": 90}},
		"league": {"id": 71, "name": "Serie A", "country": "Brazil"},
		"teams": {"home": {"name": "Flamengo"}, "away": {"name": "Santos"}},
		"goals": {"home": 2, "away": 1},
		"score": {"halftime": {"home": 1, "away": 1}, "fulltime": {"home": 2, "away": 1}}
	}`

	var m dto.Match
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	snap := Normalize(m)

	if !snap.Status.IsFinished() {
		t.Errorf("Status = %q, want finished", snap.Status)
	}
	if got := snap.Score.String(); got != "2-1" {
		t.Errorf("Score = %q, want 2-1", got)
	}
	if !snap.HalftimeScoreKnown || snap.HalftimeScore.String() != "1-1" {
		t.Errorf("HalftimeScore = %q (known=%v), want 1-1", snap.HalftimeScore, snap.HalftimeScoreKnown)
	}
}

func TestNormalizeNilGoalsDefaultToZero(t *testing.T) {
	var m dto.Match
	m.Fixture.ID = 7
	m.Fixture.Status.Short = "NS"

	snap := Normalize(m)

	if snap.Status != StatusPreLive {
		t.Errorf("Status = %q, want pre_live", snap.Status)
	}
	if snap.MinuteKnown {
		t.Error("MinuteKnown = true without elapsed")
	}
	if snap.Score.String() != "0-0" {
		t.Errorf("Score = %q, want 0-0", snap.Score)
	}
}

func TestStatusFromShort(t *testing.T) {
	cases := []struct {
		short string
		want  Status
	}{
		{"NS", StatusPreLive},
		{"TBD", StatusPreLive},
		{"1H", StatusFirstHalf},
		{"LIVE", StatusFirstHalf},
		{"HT", StatusHalftime},
		{"2H", StatusSecondHalf},
		{"ET", StatusExtraTime},
		{"BT", StatusExtraTime},
		{"P", StatusPenalties},
		{"FT", StatusFinished},
		{"AET", StatusFinished},
		{"PEN", StatusFinished},
		{"ft", StatusFinished},
		{"SUSP", StatusUnknown},
	}
	for _, c := range cases {
		if got := statusFromShort(c.short); got != c.want {
			t.Errorf("statusFromShort(%q) = %q, want %q", c.short, got, c.want)
		}
	}
}

func TestStatusHelpers(t *testing.T) {
	if !StatusFirstHalf.IsLive() || !StatusPenalties.IsLive() {
		t.Error("1H/P should be live")
	}
	if StatusHalftime.IsLive() || StatusFinished.IsLive() {
		t.Error("HT/FT should not be live")
	}
	if !StatusFinished.IsFinished() || StatusHalftime.IsFinished() {
		t.Error("IsFinished mismatch")
	}
}

func TestParseScore(t *testing.T) {
	s, err := ParseScore("2-1")
	if err != nil {
		t.Fatalf("ParseScore(2-1): %v", err)
	}
	if s.Home != 2 || s.Away != 1 || s.Total() != 3 {
		t.Errorf("ParseScore(2-1) = %+v", s)
	}

	for _, bad := range []string{"", "2", "a-b", "2-", "-1", "1--2"} {
		if _, err := ParseScore(bad); err == nil {
			t.Errorf("ParseScore(%q) should fail", bad)
		}
	}
}
