package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rportela/live-bet-bot/internal/fixtures"
)

// Kind define a regra de liquidação de uma janela de aposta
type Kind string

const (
	// Placar na liquidação igual ao placar de referência => win, senão loss
	KindCorrectScore Kind = "correct_score"
	// Total de gols contra a linha => win/loss, empate na linha => push
	KindOverUnder Kind = "over_under"
)

// Outcome é o resultado de uma aposta liquidada
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomePush Outcome = "push"
)

// Window descreve uma janela de aposta: quando avaliar, quais placares
// qualificam e como liquidar. As variantes históricas do bot (36' placar
// exato, 32' over, 80' de recuperação) viram linhas desta tabela
type Window struct {
	ID         string          `yaml:"id"`
	Kind       Kind            `yaml:"kind"`
	Status     fixtures.Status `yaml:"status"`      // status em que a janela abre (first_half, second_half)
	MinuteFrom int             `yaml:"minute_from"` // banda inclusiva de minutos
	MinuteTo   int             `yaml:"minute_to"`
	Qualifying []string        `yaml:"qualifying"` // vazio = qualquer placar qualifica
	OverLine   float64         `yaml:"over_line"`  // apenas para over_under
	ResolveAt  fixtures.Status `yaml:"resolve_at"` // halftime ou finished
	Chases     string          `yaml:"chases"`     // id da janela primária que esta recupera
}

// InBand verifica se o minuto corrente cai na banda da janela
func (w Window) InBand(minute int) bool {
	return minute >= w.MinuteFrom && minute <= w.MinuteTo
}

// Qualifies verifica se o placar corrente pertence ao conjunto qualificador
func (w Window) Qualifies(score fixtures.Score) bool {
	if len(w.Qualifying) == 0 {
		return true
	}
	s := score.String()
	for _, q := range w.Qualifying {
		if q == s {
			return true
		}
	}
	return false
}

// IsChase indica janela de recuperação, condicionada à derrota da primária
func (w Window) IsChase() bool { return w.Chases != "" }

// Strategy é a tabela declarativa completa avaliada pela máquina de estados
type Strategy struct {
	Windows []Window `yaml:"windows"`
}

// ByID retorna a janela com o id informado
func (s Strategy) ByID(id string) (Window, bool) {
	for _, w := range s.Windows {
		if w.ID == id {
			return w, true
		}
	}
	return Window{}, false
}

// ChaseOf retorna a janela de recuperação ligada à janela informada, se houver
func (s Strategy) ChaseOf(id string) (Window, bool) {
	for _, w := range s.Windows {
		if w.Chases == id {
			return w, true
		}
	}
	return Window{}, false
}

// Validate rejeita tabelas malformadas antes de qualquer ciclo rodar
func (s Strategy) Validate() error {
	if len(s.Windows) == 0 {
		return fmt.Errorf("strategy: no windows configured")
	}
	seen := make(map[string]bool, len(s.Windows))
	for _, w := range s.Windows {
		if w.ID == "" {
			return fmt.Errorf("strategy: window without id")
		}
		if seen[w.ID] {
			return fmt.Errorf("strategy: duplicate window id %q", w.ID)
		}
		seen[w.ID] = true

		switch w.Kind {
		case KindCorrectScore:
		case KindOverUnder:
			if w.OverLine <= 0 {
				return fmt.Errorf("strategy: window %q over_under without line", w.ID)
			}
		default:
			return fmt.Errorf("strategy: window %q unknown kind %q", w.ID, w.Kind)
		}

		if w.Status != fixtures.StatusFirstHalf && w.Status != fixtures.StatusSecondHalf {
			return fmt.Errorf("strategy: window %q invalid status %q", w.ID, w.Status)
		}
		if w.MinuteFrom <= 0 || w.MinuteTo < w.MinuteFrom {
			return fmt.Errorf("strategy: window %q invalid minute band [%d,%d]", w.ID, w.MinuteFrom, w.MinuteTo)
		}
		if w.ResolveAt != fixtures.StatusHalftime && w.ResolveAt != fixtures.StatusFinished {
			return fmt.Errorf("strategy: window %q invalid resolve_at %q", w.ID, w.ResolveAt)
		}
		if w.Chases != "" {
			target, ok := s.ByID(w.Chases)
			if !ok {
				return fmt.Errorf("strategy: window %q chases unknown window %q", w.ID, w.Chases)
			}
			if target.ResolveAt != fixtures.StatusHalftime {
				return fmt.Errorf("strategy: window %q chases %q which does not resolve at halftime", w.ID, w.Chases)
			}
		}
		for _, q := range w.Qualifying {
			if _, err := fixtures.ParseScore(q); err != nil {
				return fmt.Errorf("strategy: window %q: %w", w.ID, err)
			}
		}
	}
	return nil
}

// Default retorna a tabela compilada: as variantes do bot original unificadas
func Default() Strategy {
	return Strategy{
		Windows: []Window{
			{
				ID:         "over32",
				Kind:       KindOverUnder,
				Status:     fixtures.StatusFirstHalf,
				MinuteFrom: 31,
				MinuteTo:   33,
				Qualifying: []string{"1-0", "0-1"},
				OverLine:   2.5,
				ResolveAt:  fixtures.StatusFinished,
			},
			{
				ID:         "primary36",
				Kind:       KindCorrectScore,
				Status:     fixtures.StatusFirstHalf,
				MinuteFrom: 35,
				MinuteTo:   37,
				Qualifying: []string{"0-0", "1-1", "2-2", "3-3"},
				ResolveAt:  fixtures.StatusHalftime,
			},
			{
				ID:         "chase80",
				Kind:       KindCorrectScore,
				Status:     fixtures.StatusSecondHalf,
				MinuteFrom: 79,
				MinuteTo:   81,
				ResolveAt:  fixtures.StatusFinished,
				Chases:     "primary36",
			},
		},
	}
}

// Load carrega a tabela de um arquivo YAML; caminho vazio usa a default
func Load(path string) (Strategy, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Strategy{}, fmt.Errorf("read strategy file: %w", err)
	}

	var s Strategy
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Strategy{}, fmt.Errorf("parse strategy file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Strategy{}, err
	}
	return s, nil
}

// Settle aplica a regra de liquidação da janela ao placar final/intervalo
func Settle(w Window, ref, settlement fixtures.Score) Outcome {
	switch w.Kind {
	case KindOverUnder:
		total := float64(settlement.Total())
		switch {
		case total > w.OverLine:
			return OutcomeWin
		case total < w.OverLine:
			return OutcomeLoss
		default:
			return OutcomePush
		}
	default:
		if ref == settlement {
			return OutcomeWin
		}
		return OutcomeLoss
	}
}
