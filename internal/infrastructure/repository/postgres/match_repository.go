package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/lapra5/football-app/internal/domain/match"
	qb "github.com/lapra5/football-app/internal/platform/querybuilder"
)

// MatchRepository stores one row per fixture per league. Each Upsert replaces
// the whole document; there is no multi-row transaction, which is what lets
// the pipeline persist per document with isolated failures.
type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Upsert(ctx context.Context, leagueCode string, m match.Match) error {
	doc, err := sonic.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.MatchID, err)
	}

	query, args, err := qb.InsertInto("matches").
		Columns("match_id", "league_code", "kickoff_at", "matchday", "pair_key", "document", "needs_review", "stale").
		Values(m.MatchID, leagueCode, m.KickoffTime, m.Matchday,
			match.PairKey(m.KickoffTime, m.HomeTeam.Name, m.AwayTeam.Name),
			doc, m.NeedsReview, m.Stale).
		Suffix(`ON CONFLICT (league_code, match_id) DO UPDATE SET
			kickoff_at = EXCLUDED.kickoff_at,
			matchday = EXCLUDED.matchday,
			pair_key = EXCLUDED.pair_key,
			document = EXCLUDED.document,
			needs_review = EXCLUDED.needs_review,
			stale = EXCLUDED.stale,
			updated_at = now()`).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert match query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert match %s: %w", m.MatchID, err)
	}
	return nil
}

func (r *MatchRepository) QueryRange(ctx context.Context, leagueCode string, from, to time.Time) ([]match.Match, error) {
	query, args, err := qb.Select("document").From("matches").
		Where(
			qb.Eq("league_code", leagueCode),
			qb.Gte("kickoff_at", from),
			qb.Lte("kickoff_at", to),
		).
		OrderBy("kickoff_at", "match_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select matches %s: %w", leagueCode, err)
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		m, err := decodeMatchDocument(row.Document)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func decodeMatchDocument(doc []byte) (match.Match, error) {
	var m match.Match
	if err := sonic.Unmarshal(doc, &m); err != nil {
		return match.Match{}, fmt.Errorf("decode match document: %w", err)
	}
	// Timestamps come back in the session zone; stored matches are UTC.
	m.KickoffTime = m.KickoffTime.UTC()
	return m, nil
}
