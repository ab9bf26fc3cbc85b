package tracker

import (
	"fmt"

	"github.com/rportela/live-bet-bot/internal/fixtures"
	"github.com/rportela/live-bet-bot/internal/ledger"
	"github.com/rportela/live-bet-bot/internal/strategy"
)

// WindowMinute é o minuto alvo da janela, usado nos textos de notificação
func WindowMinute(w strategy.Window) int {
	return (w.MinuteFrom + w.MinuteTo) / 2
}

func placedMessage(w strategy.Window, rec ledger.BetRecord) string {
	head := fmt.Sprintf("⏱️ %d' - %s\n🏆 %s (%s)\n🔢 Score: %s",
		WindowMinute(w), rec.MatchName, rec.LeagueName, rec.Country, rec.RefScore)

	switch {
	case w.Kind == strategy.KindOverUnder:
		return fmt.Sprintf("%s\n🎯 Bet Placed: Total Goals Over %.1f", head, w.OverLine)
	case w.IsChase():
		return head + "\n🎯 Chase Bet Placed"
	default:
		return head + "\n🎯 Correct Score Bet Placed"
	}
}

// resultMessage monta o texto de resolução; chasing indica derrota de
// primária com janela de recuperação configurada
func resultMessage(w strategy.Window, st *MatchState, outcome strategy.Outcome, settlement fixtures.Score, chasing bool) string {
	stage := "HT"
	if w.ResolveAt == fixtures.StatusFinished {
		stage = "FT"
	}
	head := fmt.Sprintf("%s Result: %s\n🏆 %s (%s)\n🔢 Score: %s",
		stage, st.MatchName, st.LeagueName, st.Country, settlement)

	label := fmt.Sprintf("%d'", WindowMinute(w))
	switch outcome {
	case strategy.OutcomeWin:
		return fmt.Sprintf("✅ %s\n🎉 %s Bet WON", head, label)
	case strategy.OutcomePush:
		return fmt.Sprintf("➖ %s\n%s Bet PUSH", head, label)
	default:
		if chasing {
			return fmt.Sprintf("❌ %s\n🔁 %s Bet LOST, chasing later", head, label)
		}
		return fmt.Sprintf("❌ %s\n📉 %s Bet LOST", head, label)
	}
}
