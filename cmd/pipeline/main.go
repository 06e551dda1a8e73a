package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lapra5/football-app/internal/app"
	"github.com/lapra5/football-app/internal/config"
	"github.com/lapra5/football-app/internal/domain/runlog"
	"github.com/lapra5/football-app/internal/platform/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stage := strings.ToLower(strings.TrimSpace(os.Args[1]))
	switch stage {
	case "schedule":
		err = runSchedule(ctx, application)
	case "refresh":
		err = runRefresh(ctx, application)
	case "snapshot":
		err = runSnapshot(ctx, application)
	case "status":
		err = runStatus(ctx, application)
	case "all":
		if err = runSchedule(ctx, application); err == nil {
			err = runRefresh(ctx, application)
		}
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("pipeline stage failed", "stage", stage, "error", err)
		os.Exit(1)
	}
}

func runSchedule(ctx context.Context, application *app.Application) error {
	report, err := application.Pipeline.RunScheduleSync(ctx)
	if err != nil {
		return err
	}
	application.Logger.InfoContext(ctx, "schedule sync finished",
		"state", string(report.State),
		"fetched", report.Fetched,
		"merged", report.Merged,
		"persisted", report.Persisted,
		"persist_failed", report.PersistFailed,
		"rejected", report.Rejected,
		"snapshot", report.Snapshot,
	)
	return nil
}

func runRefresh(ctx context.Context, application *app.Application) error {
	if application.Refresher == nil {
		application.Logger.Warn("refresh skipped, no match provider configured")
		return nil
	}
	for _, league := range application.RefreshLeagues {
		report, err := application.Refresher.Tick(ctx, league)
		if err != nil {
			return err
		}
		application.Logger.InfoContext(ctx, "refresh tick finished",
			"league", league,
			"examined", report.Examined,
			"refreshed", report.Refreshed,
			"failed", report.Failed,
			"stale", report.Stale,
		)
	}
	if application.RunLog != nil {
		if err := application.RunLog.RecordRun(ctx, runlog.StageLineups, time.Now()); err != nil {
			application.Logger.WarnContext(ctx, "run ledger write failed", "stage", runlog.StageLineups, "error", err)
		}
	}
	return nil
}

func runSnapshot(ctx context.Context, application *app.Application) error {
	if application.RunLog != nil {
		if last, err := application.RunLog.LastRun(ctx, runlog.StageSnapshot); err == nil {
			application.Logger.InfoContext(ctx, "replacing snapshot", "previous_completed_at", last.CompletedAt)
		}
	}
	return application.Pipeline.RebuildSnapshot(ctx, application.Leagues)
}

func runStatus(ctx context.Context, application *app.Application) error {
	entries, err := application.RunLog.AllRuns(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no completed stages recorded")
		return nil
	}
	for _, entry := range entries {
		fmt.Printf("%-24s %s\n", entry.Stage, entry.CompletedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func printUsage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s <schedule|refresh|snapshot|status|all>\n", name)
	fmt.Fprintln(os.Stderr, "stages:")
	fmt.Fprintf(os.Stderr, "  schedule  fetch, merge, and persist fixtures, then publish the window snapshot\n")
	fmt.Fprintf(os.Stderr, "  refresh   poll in-window matches for lineups and final scores\n")
	fmt.Fprintf(os.Stderr, "  snapshot  republish the window snapshot from stored matches\n")
	fmt.Fprintf(os.Stderr, "  status    print when each stage last completed\n")
	fmt.Fprintf(os.Stderr, "  all       schedule then refresh\n")
}
