package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Postgres implementa o ledger de apostas em banco Postgres, particionado em
// unresolved_bets (pendentes, chave fixture+tipo) e resolved_bets (histórico
// permanente, append-only)
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório do ledger
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria as tabelas do ledger caso ainda não existam
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS unresolved_bets (
		fixture_id  BIGINT NOT NULL,
		bet_type    TEXT   NOT NULL,
		match_name  TEXT   NOT NULL,
		league_id   BIGINT NOT NULL DEFAULT 0,
		league_name TEXT   NOT NULL DEFAULT '',
		country     TEXT   NOT NULL DEFAULT '',
		ref_score   TEXT   NOT NULL,
		over_line   DOUBLE PRECISION NOT NULL DEFAULT 0,
		prior_score TEXT   NOT NULL DEFAULT '',
		placed_at   TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (fixture_id, bet_type)
	);

	CREATE TABLE IF NOT EXISTS resolved_bets (
		id          TEXT PRIMARY KEY,
		fixture_id  BIGINT NOT NULL,
		bet_type    TEXT   NOT NULL,
		match_name  TEXT   NOT NULL,
		league_id   BIGINT NOT NULL DEFAULT 0,
		league_name TEXT   NOT NULL DEFAULT '',
		country     TEXT   NOT NULL DEFAULT '',
		ref_score   TEXT   NOT NULL,
		over_line   DOUBLE PRECISION NOT NULL DEFAULT 0,
		prior_score TEXT   NOT NULL DEFAULT '',
		outcome     TEXT   NOT NULL,
		final_score TEXT   NOT NULL DEFAULT '',
		placed_at   TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_unresolved_placed_at ON unresolved_bets(placed_at);
	CREATE INDEX IF NOT EXISTS idx_resolved_fixture ON resolved_bets(fixture_id);
	`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// AddUnresolved registra uma aposta pendente; reprocessar o mesmo snapshot
// não duplica o registro (ON CONFLICT DO NOTHING)
func (p *Postgres) AddUnresolved(ctx context.Context, b BetRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO unresolved_bets
		  (fixture_id, bet_type, match_name, league_id, league_name, country, ref_score, over_line, prior_score, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (fixture_id, bet_type) DO NOTHING`,
		b.FixtureID, b.Type, b.MatchName, b.LeagueID, b.LeagueName, b.Country,
		b.RefScore, b.OverLine, b.PriorScore, b.PlacedAt,
	)
	return err
}

// GetUnresolved retorna a aposta pendente de uma partida e tipo, ou nil
func (p *Postgres) GetUnresolved(ctx context.Context, fixtureID int, betType string) (*BetRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT fixture_id, bet_type, match_name, league_id, league_name, country, ref_score, over_line, prior_score, placed_at
		FROM unresolved_bets WHERE fixture_id=$1 AND bet_type=$2`,
		fixtureID, betType,
	)
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListUnresolvedByFixture retorna todas as apostas pendentes de uma partida
func (p *Postgres) ListUnresolvedByFixture(ctx context.Context, fixtureID int) ([]BetRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT fixture_id, bet_type, match_name, league_id, league_name, country, ref_score, over_line, prior_score, placed_at
		FROM unresolved_bets WHERE fixture_id=$1`,
		fixtureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBets(rows)
}

// ListUnresolvedOlderThan retorna apostas pendentes colocadas antes do corte,
// opcionalmente restritas a um conjunto de tipos
func (p *Postgres) ListUnresolvedOlderThan(ctx context.Context, cutoff time.Time, types ...string) ([]BetRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(types) == 0 {
		rows, err = p.db.QueryContext(ctx, `
			SELECT fixture_id, bet_type, match_name, league_id, league_name, country, ref_score, over_line, prior_score, placed_at
			FROM unresolved_bets WHERE placed_at < $1 ORDER BY placed_at`,
			cutoff,
		)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT fixture_id, bet_type, match_name, league_id, league_name, country, ref_score, over_line, prior_score, placed_at
			FROM unresolved_bets WHERE placed_at < $1 AND bet_type = ANY($2) ORDER BY placed_at`,
			cutoff, pq.Array(types),
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBets(rows)
}

// MoveToResolved liquida uma aposta pendente: grava a cópia resolvida e apaga
// a pendente na mesma transação. Retorna false se já não havia pendente,
// tornando a operação idempotente
func (p *Postgres) MoveToResolved(ctx context.Context, fixtureID int, betType, outcome, finalScore string) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT fixture_id, bet_type, match_name, league_id, league_name, country, ref_score, over_line, prior_score, placed_at
		FROM unresolved_bets WHERE fixture_id=$1 AND bet_type=$2`,
		fixtureID, betType,
	)
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := insertResolved(ctx, tx, b, outcome, finalScore); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM unresolved_bets WHERE fixture_id=$1 AND bet_type=$2`,
		fixtureID, betType,
	); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// AppendResolved grava uma cópia resolvida sem apagar a pendente; usado quando
// a derrota no intervalo mantém o vínculo vivo pra aposta de recuperação
func (p *Postgres) AppendResolved(ctx context.Context, b BetRecord, outcome, finalScore string) error {
	return insertResolved(ctx, p.db, b, outcome, finalScore)
}

// RemoveUnresolved apaga uma aposta pendente sem gerar registro resolvido
func (p *Postgres) RemoveUnresolved(ctx context.Context, fixtureID int, betType string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM unresolved_bets WHERE fixture_id=$1 AND bet_type=$2`,
		fixtureID, betType,
	)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertResolved(ctx context.Context, db execer, b BetRecord, outcome, finalScore string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO resolved_bets
		  (id, fixture_id, bet_type, match_name, league_id, league_name, country, ref_score, over_line, prior_score, outcome, final_score, placed_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		uuid.NewString(), b.FixtureID, b.Type, b.MatchName, b.LeagueID, b.LeagueName, b.Country,
		b.RefScore, b.OverLine, b.PriorScore, outcome, finalScore, b.PlacedAt, time.Now().UTC(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(row rowScanner) (BetRecord, error) {
	var b BetRecord
	err := row.Scan(&b.FixtureID, &b.Type, &b.MatchName, &b.LeagueID, &b.LeagueName,
		&b.Country, &b.RefScore, &b.OverLine, &b.PriorScore, &b.PlacedAt)
	return b, err
}

func collectBets(rows *sql.Rows) ([]BetRecord, error) {
	var out []BetRecord
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
