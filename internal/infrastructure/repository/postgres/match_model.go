package postgres

import (
	"time"
)

// matchTableModel is the storage row. The full match document travels in the
// jsonb column; the extracted columns exist for indexing and range queries.
type matchTableModel struct {
	MatchID     string    `db:"match_id"`
	LeagueCode  string    `db:"league_code"`
	KickoffAt   time.Time `db:"kickoff_at"`
	Matchday    int       `db:"matchday"`
	PairKey     string    `db:"pair_key"`
	Document    []byte    `db:"document"`
	NeedsReview bool      `db:"needs_review"`
	Stale       bool      `db:"stale"`
	UpdatedAt   time.Time `db:"updated_at"`
}
