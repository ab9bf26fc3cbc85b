package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rportela/live-bet-bot/internal/fixtures"
	"github.com/rportela/live-bet-bot/internal/ledger"
	"github.com/rportela/live-bet-bot/internal/strategy"
	"github.com/rportela/live-bet-bot/internal/tracker"
	"github.com/rportela/live-bet-bot/pkg/contracts/events"
)

// Pausa entre resoluções pra não estourar o limite de envio do Telegram
const perBetPause = time.Second

// FixtureSource busca o estado autoritativo de uma partida específica
type FixtureSource interface {
	ByID(ctx context.Context, fixtureID int) (*fixtures.Snapshot, error)
}

// Ledger é o recorte do livro de apostas que a varredura usa
type Ledger interface {
	ListUnresolvedOlderThan(ctx context.Context, cutoff time.Time, types ...string) ([]ledger.BetRecord, error)
	ListUnresolvedByFixture(ctx context.Context, fixtureID int) ([]ledger.BetRecord, error)
	MoveToResolved(ctx context.Context, fixtureID int, betType, outcome, finalScore string) (bool, error)
	RemoveUnresolved(ctx context.Context, fixtureID int, betType string) error
}

// StateStore é o recorte do estado rastreado usado pela varredura
type StateStore interface {
	Get(ctx context.Context, fixtureID int) (*tracker.MatchState, error)
	Delete(ctx context.Context, fixtureID int) error
}

// Reconciler garante que toda aposta colocada seja liquidada mesmo quando o
// polling perdeu o intervalo ou o fim da partida: varre pendentes antigas,
// busca o status final por id e resolve as que acabaram. Falha em uma aposta
// nunca derruba a varredura; a pendente fica pra próxima
type Reconciler struct {
	Log      *zap.Logger
	Strategy strategy.Strategy
	Source   FixtureSource
	Bets     Ledger
	States   StateStore
	Notifier tracker.Notifier
	Events   tracker.Publisher

	// Idade mínima da aposta pra entrar na varredura
	Wait time.Duration

	OnResolved func(betType, outcome string)
}

// Sweep roda uma passada completa sobre as apostas pendentes antigas
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.Wait)

	stale, err := r.Bets.ListUnresolvedOlderThan(ctx, cutoff)
	if err != nil {
		r.Log.Warn("stale bets list failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}
	r.Log.Info("sweeping stale bets", zap.Int("count", len(stale)))

	for _, bet := range stale {
		if r.resolveOne(ctx, bet) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(perBetPause):
			}
		}
	}
}

// resolveOne tenta liquidar uma aposta; retorna true quando houve notificação
func (r *Reconciler) resolveOne(ctx context.Context, bet ledger.BetRecord) bool {
	w, ok := r.Strategy.ByID(bet.Type)
	if !ok {
		r.Log.Warn("stale bet with unknown type",
			zap.Int("fixture", bet.FixtureID),
			zap.String("bet_type", bet.Type),
		)
		return false
	}

	snap, err := r.Source.ByID(ctx, bet.FixtureID)
	if err != nil {
		r.Log.Warn("fixture fetch failed", zap.Int("fixture", bet.FixtureID), zap.Error(err))
		return false
	}
	if snap == nil {
		r.Log.Warn("fixture not found, keeping bet", zap.Int("fixture", bet.FixtureID))
		return false
	}
	if !snap.Status.IsFinished() {
		r.Log.Debug("fixture still in progress",
			zap.Int("fixture", bet.FixtureID),
			zap.String("status", string(snap.Status)),
		)
		return false
	}

	// Pendente já conferida ao vivo que sobrou só como vínculo de
	// recuperação: limpa sem notificar de novo
	if st, serr := r.States.Get(ctx, bet.FixtureID); serr == nil && st != nil {
		if ws, found := st.Windows[bet.Type]; found && ws != nil && ws.Checked {
			if err := r.Bets.RemoveUnresolved(ctx, bet.FixtureID, bet.Type); err != nil {
				r.Log.Warn("linkage cleanup failed", zap.Int("fixture", bet.FixtureID), zap.Error(err))
				return false
			}
			r.collectState(ctx, bet.FixtureID)
			return false
		}
	}

	// Apostas que resolvem no intervalo usam o placar de HT reportado pela
	// API na partida encerrada; as demais usam o placar final
	settlement := snap.Score
	if w.ResolveAt == fixtures.StatusHalftime {
		if !snap.HalftimeScoreKnown {
			r.Log.Warn("finished fixture without halftime score", zap.Int("fixture", bet.FixtureID))
			return false
		}
		settlement = snap.HalftimeScore
	}

	ref, err := fixtures.ParseScore(bet.RefScore)
	if err != nil {
		// Nunca liquida por default: a pendente fica marcada pelo log e
		// volta na próxima varredura
		r.Log.Error("unresolvable stale bet, malformed reference score",
			zap.Int("fixture", bet.FixtureID),
			zap.String("bet_type", bet.Type),
			zap.String("ref_score", bet.RefScore),
		)
		return false
	}

	outcome := strategy.Settle(w, ref, settlement)

	// Notificação antes da mutação: se a entrega falhar, a aposta continua
	// pendente e ambas repetem na próxima varredura
	if err := r.Notifier.Send(ctx, finalMessage(w, bet, settlement, outcome)); err != nil {
		r.Log.Warn("sweep notify failed, keeping bet",
			zap.Int("fixture", bet.FixtureID),
			zap.Error(err),
		)
		return false
	}

	moved, err := r.Bets.MoveToResolved(ctx, bet.FixtureID, bet.Type, string(outcome), settlement.String())
	if err != nil {
		r.Log.Error("stale bet move failed", zap.Int("fixture", bet.FixtureID), zap.Error(err))
		return true
	}
	if !moved {
		return true
	}

	r.collectState(ctx, bet.FixtureID)

	if r.Events != nil {
		if err := r.Events.PublishBetSettled(ctx, events.BetSettled{
			FixtureID:  bet.FixtureID,
			BetType:    bet.Type,
			MatchName:  bet.MatchName,
			Outcome:    string(outcome),
			RefScore:   bet.RefScore,
			FinalScore: settlement.String(),
			Source:     "sweep",
		}); err != nil {
			r.Log.Warn("bet_settled publish failed", zap.Error(err))
		}
	}
	if r.OnResolved != nil {
		r.OnResolved(bet.Type, string(outcome))
	}

	r.Log.Info("stale bet resolved",
		zap.Int("fixture", bet.FixtureID),
		zap.String("bet_type", bet.Type),
		zap.String("outcome", string(outcome)),
	)
	return true
}

// collectState apaga o estado rastreado apenas quando nenhuma aposta pendente
// referencia a partida; as flags do estado são a guarda contra liquidação
// duplicada das linhas que ainda restam
func (r *Reconciler) collectState(ctx context.Context, fixtureID int) {
	pending, err := r.Bets.ListUnresolvedByFixture(ctx, fixtureID)
	if err != nil {
		r.Log.Warn("ledger list failed", zap.Int("fixture", fixtureID), zap.Error(err))
		return
	}
	if len(pending) > 0 {
		return
	}
	if err := r.States.Delete(ctx, fixtureID); err != nil {
		r.Log.Warn("state delete failed", zap.Int("fixture", fixtureID), zap.Error(err))
	}
}

func finalMessage(w strategy.Window, bet ledger.BetRecord, settlement fixtures.Score, outcome strategy.Outcome) string {
	minute := tracker.WindowMinute(w)

	var verdict string
	switch outcome {
	case strategy.OutcomeWin:
		verdict = "✅ WON"
	case strategy.OutcomePush:
		verdict = "➖ PUSH"
	default:
		verdict = "❌ LOST"
	}

	if w.Kind == strategy.KindOverUnder {
		return fmt.Sprintf("🏁 FINAL RESULT - %d' Over Bet\n⚽ %s\n🔢 Final Score: %s\n🎯 Bet: Over %.1f\n📊 Outcome: %s",
			minute, bet.MatchName, settlement, bet.OverLine, verdict)
	}
	return fmt.Sprintf("🏁 FINAL RESULT - %d' Bet\n⚽ %s\n🔢 Final Score: %s\n🎯 Bet on %d' Score: %s\n📊 Outcome: %s",
		minute, bet.MatchName, settlement, minute, bet.RefScore, verdict)
}
