package match

import (
	"context"
	"time"
)

// Gateway is the persistence contract the pipeline relies on: per-document
// merge-upsert plus a time-range query. No multi-document transaction is
// assumed.
type Gateway interface {
	Upsert(ctx context.Context, leagueCode string, m Match) error
	QueryRange(ctx context.Context, leagueCode string, from, to time.Time) ([]Match, error)
}
