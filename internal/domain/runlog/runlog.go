// Package runlog records when each pipeline stage last completed. The ledger
// answers "how fresh is this data" without inspecting the data itself.
package runlog

import (
	"context"
	"time"
)

// Known stage names. Adapters and services record under these keys.
const (
	StageMatches  = "updateMatches"
	StageLineups  = "updateLineups"
	StageJLeague  = "updateJLeagueSchedule"
	StageClubSite = "updateClubSchedule"
	StageSnapshot = "updateSnapshot"
)

// Entry is one ledger row: a stage and the instant it last finished.
type Entry struct {
	Stage       string    `json:"stage" db:"stage"`
	CompletedAt time.Time `json:"completedAt" db:"completed_at"`
}

// Repository persists the ledger. RecordRun overwrites any previous entry for
// the same stage.
type Repository interface {
	RecordRun(ctx context.Context, stage string, completedAt time.Time) error
	LastRun(ctx context.Context, stage string) (Entry, error)
	AllRuns(ctx context.Context) ([]Entry, error)
}
