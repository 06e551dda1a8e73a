package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lapra5/football-app/internal/domain/runlog"
	qb "github.com/lapra5/football-app/internal/platform/querybuilder"
)

type RunLogRepository struct {
	db *sqlx.DB
}

func NewRunLogRepository(db *sqlx.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

func (r *RunLogRepository) RecordRun(ctx context.Context, stage string, completedAt time.Time) error {
	query, args, err := qb.InsertInto("run_log").
		Columns("stage", "completed_at").
		Values(stage, completedAt).
		Suffix("ON CONFLICT (stage) DO UPDATE SET completed_at = EXCLUDED.completed_at").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build record run query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record run %s: %w", stage, err)
	}
	return nil
}

func (r *RunLogRepository) LastRun(ctx context.Context, stage string) (runlog.Entry, error) {
	query, args, err := qb.Select("stage", "completed_at").From("run_log").
		Where(qb.Eq("stage", stage)).
		ToSQL()
	if err != nil {
		return runlog.Entry{}, fmt.Errorf("build last run query: %w", err)
	}

	var entry runlog.Entry
	if err := r.db.GetContext(ctx, &entry, query, args...); err != nil {
		if isNotFound(err) {
			return runlog.Entry{}, fmt.Errorf("no run recorded for stage %s: %w", stage, err)
		}
		return runlog.Entry{}, fmt.Errorf("select last run %s: %w", stage, err)
	}
	return entry, nil
}

func (r *RunLogRepository) AllRuns(ctx context.Context) ([]runlog.Entry, error) {
	query, args, err := qb.Select("stage", "completed_at").From("run_log").
		OrderBy("stage").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build all runs query: %w", err)
	}

	var entries []runlog.Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("select all runs: %w", err)
	}
	return entries, nil
}
