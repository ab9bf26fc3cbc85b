package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rportela/live-bet-bot/internal/fixtures"
	"github.com/rportela/live-bet-bot/internal/ledger"
	"github.com/rportela/live-bet-bot/internal/strategy"
	"github.com/rportela/live-bet-bot/pkg/contracts/events"
)

// StateStore é o contrato do armazenamento durável de rastreio por partida
type StateStore interface {
	Get(ctx context.Context, fixtureID int) (*MatchState, error)
	Put(ctx context.Context, st *MatchState) error
	Delete(ctx context.Context, fixtureID int) error
}

// Ledger é o contrato do livro de apostas, particionado em pendentes e resolvidas
type Ledger interface {
	AddUnresolved(ctx context.Context, b ledger.BetRecord) error
	GetUnresolved(ctx context.Context, fixtureID int, betType string) (*ledger.BetRecord, error)
	ListUnresolvedByFixture(ctx context.Context, fixtureID int) ([]ledger.BetRecord, error)
	MoveToResolved(ctx context.Context, fixtureID int, betType, outcome, finalScore string) (bool, error)
	AppendResolved(ctx context.Context, b ledger.BetRecord, outcome, finalScore string) error
	RemoveUnresolved(ctx context.Context, fixtureID int, betType string) error
}

// Notifier entrega uma notificação de texto; erro significa "tente no próximo ciclo"
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Publisher emite os eventos de ciclo de vida no stream; best-effort
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Machine é a máquina de estados de apostas: consome um snapshot por partida
// por ciclo, avança o estado rastreado e dispara colocação, resolução de
// intervalo e aposta de recuperação conforme a tabela de estratégia.
// Transições são estritamente pra frente e cada efeito colateral é guardado
// por flag, então reprocessar o mesmo snapshot não duplica nada
type Machine struct {
	Log      *zap.Logger
	Strategy strategy.Strategy
	States   StateStore
	Bets     Ledger
	Notifier Notifier
	Events   Publisher

	// métricas (counter++), ligadas no main
	OnPlaced  func(betType string)
	OnSettled func(betType, outcome string)
}

// Process avalia um snapshot. Erros de infraestrutura são logados e o estado
// fica pra reavaliação no próximo ciclo; nunca derrubam o chamador
func (m *Machine) Process(ctx context.Context, snap fixtures.Snapshot) {
	relevant := snap.Status.IsLive() || snap.Status == fixtures.StatusHalftime || snap.Status.IsFinished()
	if !relevant {
		return
	}

	st, err := m.States.Get(ctx, snap.FixtureID)
	if err != nil {
		// Leitura perdida vira "sem estado prévio": a criação é idempotente
		// e as flags são reavaliadas a partir do snapshot
		m.Log.Warn("state read failed", zap.Int("fixture", snap.FixtureID), zap.Error(err))
		st = nil
	}

	now := time.Now().UTC()
	if st == nil {
		if snap.Status.IsFinished() {
			return
		}
		if !snap.MinuteKnown && snap.Status != fixtures.StatusHalftime {
			return
		}
		st = NewMatchState(snap, now)
		m.Log.Info("tracking new match",
			zap.Int("fixture", snap.FixtureID),
			zap.String("match", snap.MatchName),
		)
	}

	st.LastSeen = now
	st.LastStatus = string(snap.Status)
	if snap.MinuteKnown {
		st.LastMinute = snap.Minute
	}

	// No máximo uma janela está ativa por snapshot: os status da fonte
	// (1H/HT/2H/FT) são mutuamente exclusivos
	switch {
	case snap.Status == fixtures.StatusHalftime:
		st.HalftimeScore = snap.Score.String()
		m.resolveDue(ctx, st, snap, fixtures.StatusHalftime, snap.Score)
	case snap.Status.IsLive() && snap.MinuteKnown:
		m.placeDue(ctx, st, snap)
	}

	if snap.Status.IsFinished() {
		m.resolveDue(ctx, st, snap, fixtures.StatusFinished, snap.Score)
		if m.finish(ctx, st) {
			return // estado rastreado apagado
		}
	}

	if err := m.States.Put(ctx, st); err != nil {
		m.Log.Error("state write failed", zap.Int("fixture", snap.FixtureID), zap.Error(err))
	}
}

// placeDue dispara no máximo uma transição de colocação por ciclo: a primeira
// janela cuja banda de minutos e status batem com o snapshot
func (m *Machine) placeDue(ctx context.Context, st *MatchState, snap fixtures.Snapshot) {
	for _, w := range m.Strategy.Windows {
		if w.Status != snap.Status || !w.InBand(snap.Minute) {
			continue
		}
		ws := st.Window(w.ID)
		if ws.Placed {
			continue
		}
		if w.IsChase() && !m.chaseEligible(st, w) {
			continue
		}

		m.place(ctx, st, snap, w, ws)
		return
	}
}

// chaseEligible: a janela de recuperação só abre com a primária apostada,
// conferida e perdida
func (m *Machine) chaseEligible(st *MatchState, w strategy.Window) bool {
	prim := st.Window(w.Chases)
	return prim.BetMade && prim.Checked && prim.Won != nil && !*prim.Won
}

func (m *Machine) place(ctx context.Context, st *MatchState, snap fixtures.Snapshot, w strategy.Window, ws *WindowState) {
	score := snap.Score.String()

	if !w.Qualifies(snap.Score) {
		// Caminho no-op deliberado: marca como avaliada pra não reavaliar,
		// nenhuma aposta é feita
		ws.Placed = true
		ws.RefScore = score
		m.Log.Info("window skipped, score not qualifying",
			zap.Int("fixture", snap.FixtureID),
			zap.String("window", w.ID),
			zap.String("score", score),
		)
		return
	}

	rec := ledger.BetRecord{
		FixtureID:  snap.FixtureID,
		Type:       w.ID,
		MatchName:  st.MatchName,
		LeagueID:   st.LeagueID,
		LeagueName: st.LeagueName,
		Country:    st.Country,
		RefScore:   score,
		OverLine:   w.OverLine,
		PlacedAt:   time.Now().UTC(),
	}
	if w.IsChase() {
		rec.PriorScore = st.Window(w.Chases).RefScore
	}

	// Ordem dos efeitos: ledger (upsert idempotente), notificação e só então
	// as flags de estado. Falha de entrega segura as flags e o ciclo seguinte
	// tenta de novo dentro da banda; se a banda passar, a varredura de apostas
	// antigas liquida o registro que ficou no ledger
	if err := m.Bets.AddUnresolved(ctx, rec); err != nil {
		m.Log.Error("ledger add failed",
			zap.Int("fixture", snap.FixtureID),
			zap.String("window", w.ID),
			zap.Error(err),
		)
		return
	}

	if err := m.Notifier.Send(ctx, placedMessage(w, rec)); err != nil {
		m.Log.Warn("placement notify failed, will retry next cycle",
			zap.Int("fixture", snap.FixtureID),
			zap.String("window", w.ID),
			zap.Error(err),
		)
		return
	}

	ws.Placed = true
	ws.BetMade = true
	ws.RefScore = score

	if w.IsChase() {
		// A pendente primária só existia como vínculo; a recuperação assume
		if err := m.Bets.RemoveUnresolved(ctx, st.FixtureID, w.Chases); err != nil {
			m.Log.Warn("primary linkage cleanup failed", zap.Int("fixture", st.FixtureID), zap.Error(err))
		}
	}

	if m.Events != nil {
		if err := m.Events.PublishBetPlaced(ctx, events.BetPlaced{
			FixtureID:  rec.FixtureID,
			BetType:    rec.Type,
			MatchName:  rec.MatchName,
			LeagueID:   rec.LeagueID,
			LeagueName: rec.LeagueName,
			Country:    rec.Country,
			RefScore:   rec.RefScore,
			OverLine:   rec.OverLine,
		}); err != nil {
			m.Log.Warn("bet_placed publish failed", zap.Error(err))
		}
	}
	if m.OnPlaced != nil {
		m.OnPlaced(w.ID)
	}

	m.Log.Info("bet placed",
		zap.Int("fixture", snap.FixtureID),
		zap.String("window", w.ID),
		zap.String("score", score),
	)
}

// resolveDue liquida as janelas apostadas e ainda não conferidas que resolvem
// no status observado, usando o placar do snapshot como placar de liquidação
func (m *Machine) resolveDue(ctx context.Context, st *MatchState, snap fixtures.Snapshot, at fixtures.Status, settlement fixtures.Score) {
	for _, w := range m.Strategy.Windows {
		if w.ResolveAt != at {
			continue
		}
		ws := st.Window(w.ID)
		if !ws.Placed || ws.Checked {
			continue
		}
		if !ws.BetMade {
			// Janela avaliada sem aposta: nada a conferir
			ws.Checked = true
			continue
		}

		ref, err := fixtures.ParseScore(ws.RefScore)
		if err != nil {
			// Referência ilegível nunca vira win/loss por default; fica
			// pendente e o erro aparece a cada tentativa
			m.Log.Error("unresolvable bet, malformed reference score",
				zap.Int("fixture", st.FixtureID),
				zap.String("window", w.ID),
				zap.String("ref_score", ws.RefScore),
			)
			continue
		}

		outcome := strategy.Settle(w, ref, settlement)
		_, chaseConfigured := m.Strategy.ChaseOf(w.ID)
		chasing := outcome == strategy.OutcomeLoss && chaseConfigured

		rec, err := m.Bets.GetUnresolved(ctx, st.FixtureID, w.ID)
		if err != nil {
			m.Log.Warn("ledger read failed", zap.Int("fixture", st.FixtureID), zap.Error(err))
			continue
		}

		if err := m.Notifier.Send(ctx, resultMessage(w, st, outcome, settlement, chasing)); err != nil {
			// Entrega falhou: segura ledger e flags, próximo ciclo tenta de novo
			m.Log.Warn("result notify failed, will retry next cycle",
				zap.Int("fixture", st.FixtureID),
				zap.String("window", w.ID),
				zap.Error(err),
			)
			continue
		}

		m.settleLedger(ctx, st, w, ws, rec, outcome, settlement)

		won := outcome == strategy.OutcomeWin
		ws.Checked = true
		ws.Won = &won

		if m.Events != nil {
			if err := m.Events.PublishBetSettled(ctx, events.BetSettled{
				FixtureID:  st.FixtureID,
				BetType:    w.ID,
				MatchName:  st.MatchName,
				Outcome:    string(outcome),
				RefScore:   ws.RefScore,
				FinalScore: settlement.String(),
				Source:     "live",
			}); err != nil {
				m.Log.Warn("bet_settled publish failed", zap.Error(err))
			}
		}
		if m.OnSettled != nil {
			m.OnSettled(w.ID, string(outcome))
		}

		m.Log.Info("bet settled live",
			zap.Int("fixture", st.FixtureID),
			zap.String("window", w.ID),
			zap.String("outcome", string(outcome)),
		)
	}
}

// settleLedger aplica a mutação de ledger da resolução. Derrota com janela de
// recuperação configurada mantém a pendente viva como vínculo e grava só a
// cópia resolvida; os demais casos movem a aposta de vez
func (m *Machine) settleLedger(ctx context.Context, st *MatchState, w strategy.Window, ws *WindowState, rec *ledger.BetRecord, outcome strategy.Outcome, settlement fixtures.Score) {
	final := settlement.String()

	if rec == nil {
		// Escrita da colocação se perdeu; reconstrói o registro a partir do
		// estado pra não perder o histórico resolvido
		fallback := ledger.BetRecord{
			FixtureID:  st.FixtureID,
			Type:       w.ID,
			MatchName:  st.MatchName,
			LeagueID:   st.LeagueID,
			LeagueName: st.LeagueName,
			Country:    st.Country,
			RefScore:   ws.RefScore,
			OverLine:   w.OverLine,
			PlacedAt:   st.FirstSeen,
		}
		if err := m.Bets.AppendResolved(ctx, fallback, string(outcome), final); err != nil {
			m.Log.Error("resolved append failed", zap.Int("fixture", st.FixtureID), zap.Error(err))
		}
		return
	}

	_, chaseConfigured := m.Strategy.ChaseOf(w.ID)
	if outcome == strategy.OutcomeLoss && chaseConfigured {
		if err := m.Bets.AppendResolved(ctx, *rec, string(outcome), final); err != nil {
			m.Log.Error("resolved append failed", zap.Int("fixture", st.FixtureID), zap.Error(err))
		}
		return
	}

	if _, err := m.Bets.MoveToResolved(ctx, st.FixtureID, w.ID, string(outcome), final); err != nil {
		m.Log.Error("resolved move failed", zap.Int("fixture", st.FixtureID), zap.Error(err))
	}
}

// finish limpa vínculos já conferidos e coleta o estado rastreado quando a
// partida acabou e nenhuma aposta pendente a referencia. Retorna true se o
// estado foi apagado
func (m *Machine) finish(ctx context.Context, st *MatchState) bool {
	pending, err := m.Bets.ListUnresolvedByFixture(ctx, st.FixtureID)
	if err != nil {
		m.Log.Warn("ledger list failed", zap.Int("fixture", st.FixtureID), zap.Error(err))
		return false
	}

	remaining := 0
	for _, b := range pending {
		ws := st.Window(b.Type)
		if ws.Checked {
			// Linha que sobrou só como vínculo de recuperação nunca usada
			if err := m.Bets.RemoveUnresolved(ctx, st.FixtureID, b.Type); err != nil {
				m.Log.Warn("linkage cleanup failed", zap.Int("fixture", st.FixtureID), zap.Error(err))
				remaining++
			}
			continue
		}
		remaining++
	}

	if remaining > 0 {
		return false
	}

	if err := m.States.Delete(ctx, st.FixtureID); err != nil {
		m.Log.Warn("state delete failed", zap.Int("fixture", st.FixtureID), zap.Error(err))
		return false
	}
	m.Log.Info("match finished, tracking removed", zap.Int("fixture", st.FixtureID))
	return true
}
