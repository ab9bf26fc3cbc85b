package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rportela/live-bet-bot/internal/fixtures"
	"github.com/rportela/live-bet-bot/internal/reconciler"
	"github.com/rportela/live-bet-bot/internal/tracker"
)

// Teto do backoff após falhas consecutivas de ciclo: intervalo * 2^3
const maxBackoffShift = 3

// FixtureSource lista as partidas ao vivo do momento (chamada bulk, barata)
type FixtureSource interface {
	Live(ctx context.Context) ([]fixtures.Snapshot, error)
}

// Engine orquestra o ciclo de polling: busca partidas ao vivo, passa cada
// snapshot pela máquina de estados e roda a varredura de apostas antigas.
// Um ciclo roda até o fim antes do próximo começar; não há paralelismo por
// partida e o loop nunca termina por erro de ciclo
type Engine struct {
	Log     *zap.Logger
	Source  FixtureSource
	Machine *tracker.Machine
	Sweeper *reconciler.Reconciler

	Interval time.Duration

	// métricas (counter++), ligadas no main
	OnCycle     func()
	OnError     func(stage string)
	OnLiveCount func(n int)
}

// RunCycle executa um ciclo completo. Erro na busca degrada pra lista vazia:
// a varredura ainda roda e o ciclo conta como falho só pro backoff
func (e *Engine) RunCycle(ctx context.Context) error {
	if e.OnCycle != nil {
		e.OnCycle()
	}

	snaps, err := e.Source.Live(ctx)
	if err != nil {
		e.Log.Warn("live fixtures fetch failed", zap.Error(err))
		if e.OnError != nil {
			e.OnError("fetch")
		}
		snaps = nil
	}

	if e.OnLiveCount != nil {
		e.OnLiveCount(len(snaps))
	}
	if len(snaps) > 0 {
		e.Log.Info("processing live fixtures", zap.Int("count", len(snaps)))
	}

	for _, snap := range snaps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.Machine.Process(ctx, snap)
	}

	e.Sweeper.Sweep(ctx)
	return err
}

// backoff calcula a espera após n falhas consecutivas: o intervalo dobra a
// cada falha até o teto. O shift é grampeado antes de aplicar, então a espera
// fica estável mesmo numa indisponibilidade longa
func backoff(interval time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return interval
	}
	shift := failures
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return interval * time.Duration(1<<shift)
}

// Run mantém o loop de polling até o contexto ser cancelado. Falhas
// consecutivas dobram o intervalo até um teto; um ciclo bom reseta
func (e *Engine) Run(ctx context.Context) {
	e.Log.Info("polling loop started", zap.Duration("interval", e.Interval))

	failures := 0
	for {
		if err := e.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				e.Log.Info("polling loop stopped")
				return
			}
			failures++
		} else {
			failures = 0
		}

		wait := backoff(e.Interval, failures)
		if failures > 0 {
			e.Log.Warn("cycle failed, backing off",
				zap.Int("consecutive", failures),
				zap.Duration("wait", wait),
			)
		}

		select {
		case <-ctx.Done():
			e.Log.Info("polling loop stopped")
			return
		case <-time.After(wait):
		}
	}
}
