package querybuilder

import (
	"testing"
	"time"
)

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("match_id", "kickoff_time").
		From("matches").
		Where(Eq("league_code", "PL"), IsNull("deleted_at")).
		OrderBy("kickoff_time").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT match_id, kickoff_time FROM matches WHERE league_code = $1 AND deleted_at IS NULL ORDER BY kickoff_time LIMIT 10"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "PL" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilder_TimeRange(t *testing.T) {
	from := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	query, args, err := Select("*").
		From("matches").
		Where(Eq("league_code", "J1"), Gte("kickoff_time", from), Lte("kickoff_time", to)).
		OrderBy("kickoff_time", "match_id").
		ToSQL()
	if err != nil {
		t.Fatalf("build range query: %v", err)
	}

	wantQuery := "SELECT * FROM matches WHERE league_code = $1 AND kickoff_time >= $2 AND kickoff_time <= $3 ORDER BY kickoff_time, match_id"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 3 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilder_UpsertSuffix(t *testing.T) {
	query, args, err := InsertInto("run_log").
		Columns("stage", "completed_at").
		Values("schedule", "2025-04-21T10:00:00Z").
		Suffix("ON CONFLICT (stage) DO UPDATE SET completed_at = EXCLUDED.completed_at").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO run_log (stage, completed_at) VALUES ($1, $2) ON CONFLICT (stage) DO UPDATE SET completed_at = EXCLUDED.completed_at"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 {
		t.Fatalf("unexpected args: %+v", args)
	}
}
