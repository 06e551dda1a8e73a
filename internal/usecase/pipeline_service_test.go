package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lapra5/football-app/external/discord"
	"github.com/lapra5/football-app/external/footballdata"
	"github.com/lapra5/football-app/internal/domain/match"
	"github.com/lapra5/football-app/internal/domain/runlog"
	"github.com/lapra5/football-app/internal/source"
)

type fakeSnapshotWriter struct {
	mu      sync.Mutex
	writes  int
	windows map[string]Window
	err     error
}

func (w *fakeSnapshotWriter) WriteSnapshot(_ context.Context, windows map[string]Window) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.writes++
	w.windows = windows
	return nil
}

type sentMessage struct {
	channel string
	message string
}

type fakeNotifier struct {
	mu    sync.Mutex
	sends []sentMessage
}

func (n *fakeNotifier) Send(_ context.Context, channel, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, sentMessage{channel: channel, message: message})
	return nil
}

func (n *fakeNotifier) sent(t *testing.T) sentMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sends) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(n.sends))
	}
	return n.sends[0]
}

type fakeRunLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func (r *fakeRunLedger) RecordRun(_ context.Context, stage string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = map[string]time.Time{}
	}
	r.entries[stage] = completedAt
	return nil
}

func (r *fakeRunLedger) LastRun(_ context.Context, stage string) (runlog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.entries[stage]
	if !ok {
		return runlog.Entry{}, errors.New("no entry")
	}
	return runlog.Entry{Stage: stage, CompletedAt: at}, nil
}

func (r *fakeRunLedger) AllRuns(_ context.Context) ([]runlog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runlog.Entry, 0, len(r.entries))
	for stage, at := range r.entries {
		out = append(out, runlog.Entry{Stage: stage, CompletedAt: at})
	}
	return out, nil
}

func (r *fakeRunLedger) has(stage string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[stage]
	return ok
}

type flakyGateway struct {
	fakeGateway
	mu           sync.Mutex
	failuresLeft map[string]int
	attempts     map[string]int
}

func (g *flakyGateway) Upsert(ctx context.Context, leagueCode string, m match.Match) error {
	g.mu.Lock()
	if g.attempts == nil {
		g.attempts = map[string]int{}
	}
	g.attempts[m.MatchID]++
	if g.failuresLeft[m.MatchID] > 0 {
		g.failuresLeft[m.MatchID]--
		g.mu.Unlock()
		return errors.New("write conflict")
	}
	g.mu.Unlock()
	return g.fakeGateway.Upsert(ctx, leagueCode, m)
}

func staticFeed(name source.Source, outcome source.Outcome) ScheduleFeed {
	return ScheduleFeed{
		Name: name,
		Fetch: func(context.Context, time.Time, time.Time) source.Outcome {
			return outcome
		},
	}
}

func apiScheduleOutcome() source.Outcome {
	return source.Outcome{
		Source: source.SourceFootballData,
		Records: []source.RawRecord{source.APIRecord{
			CompetitionID:   2021,
			CompetitionName: "Premier League",
			CompetitionCode: "PL",
			Match: footballdata.Match{
				ID:           497559,
				UTCDate:      "2025-04-21T14:00:00Z",
				Status:       "SCHEDULED",
				Matchday:     33,
				HomeTeamID:   57,
				HomeTeamName: "Arsenal FC",
				AwayTeamID:   65,
				AwayTeamName: "Manchester City FC",
			},
		}},
	}
}

func jleagueScheduleOutcome() source.Outcome {
	return source.Outcome{
		Source: source.SourceJLeague,
		Records: []source.RawRecord{source.SiteARecord{
			Division:    "J1",
			Year:        2025,
			DateText:    "4/25（金）",
			TimeText:    "19:00",
			HomeTeam:    "鹿島アントラーズ",
			AwayTeam:    "浦和レッズ",
			SectionText: "第12節",
		}},
	}
}

func newPipeline(t *testing.T, feeds []ScheduleFeed, gateway match.Gateway) (*PipelineService, *fakeSnapshotWriter, *fakeRunLedger, *fakeNotifier) {
	t.Helper()
	snapshots := &fakeSnapshotWriter{}
	ledger := &fakeRunLedger{}
	notifier := &fakeNotifier{}
	now := func() time.Time { return time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC) }

	svc := NewPipelineService(
		feeds,
		newTestNormalizer(t),
		NewMerger(nil),
		NewWindowSelector(now),
		gateway,
		snapshots,
		ledger,
		notifier,
		PipelineConfig{PersistBackoff: time.Millisecond},
		nil,
		now,
	)
	return svc, snapshots, ledger, notifier
}

func TestRunScheduleSync_SuccessWritesSnapshot(t *testing.T) {
	gateway := &fakeGateway{}
	feeds := []ScheduleFeed{
		staticFeed(source.SourceFootballData, apiScheduleOutcome()),
		staticFeed(source.SourceJLeague, jleagueScheduleOutcome()),
	}

	svc, snapshots, ledger, notifier := newPipeline(t, feeds, gateway)
	report, err := svc.RunScheduleSync(context.Background())
	if err != nil {
		t.Fatalf("RunScheduleSync failed: %v", err)
	}

	if report.State != source.StateSuccess {
		t.Fatalf("state = %s, report %+v", report.State, report)
	}
	if report.Fetched != 2 || report.Merged != 2 || report.Persisted != 2 {
		t.Fatalf("counts wrong: %+v", report)
	}
	if !report.Snapshot || snapshots.writes != 1 {
		t.Fatalf("snapshot not written: %+v", report)
	}
	if _, ok := snapshots.windows["PL"]; !ok {
		t.Fatalf("snapshot missing PL window: %v", snapshots.windows)
	}
	if _, ok := snapshots.windows["J1"]; !ok {
		t.Fatalf("snapshot missing J1 window: %v", snapshots.windows)
	}
	if !ledger.has("updateMatches") || !ledger.has("updateSnapshot") {
		t.Fatalf("run ledger incomplete: %+v", ledger.entries)
	}
	if !ledger.has("updateJLeagueSchedule") {
		t.Fatalf("scraper stage not recorded: %+v", ledger.entries)
	}
	if got := notifier.sent(t); got.channel != discord.ChannelSchedule {
		t.Fatalf("notified channel %q", got.channel)
	}
}

func TestRunScheduleSync_DegradedSourceWithholdsSnapshot(t *testing.T) {
	degraded := jleagueScheduleOutcome()
	degraded.FailedScopes = []source.ScopeKey{{Source: source.SourceJLeague, Scope: "J2"}}

	gateway := &fakeGateway{}
	feeds := []ScheduleFeed{
		staticFeed(source.SourceFootballData, apiScheduleOutcome()),
		staticFeed(source.SourceJLeague, degraded),
	}

	svc, snapshots, ledger, notifier := newPipeline(t, feeds, gateway)
	report, err := svc.RunScheduleSync(context.Background())
	if err != nil {
		t.Fatalf("RunScheduleSync failed: %v", err)
	}

	if report.State != source.StatePartialFailure {
		t.Fatalf("state = %s", report.State)
	}
	// Everything that did arrive still lands in storage.
	if report.Persisted != 2 {
		t.Fatalf("persisted = %d, want 2", report.Persisted)
	}
	if report.Snapshot || snapshots.writes != 0 {
		t.Fatal("snapshot must be withheld on a degraded cycle")
	}
	if ledger.has("updateSnapshot") {
		t.Fatal("snapshot stage must not be recorded")
	}
	if ledger.has("updateJLeagueSchedule") {
		t.Fatal("degraded scraper stage must not be recorded")
	}
	if !ledger.has("updateMatches") {
		t.Fatal("matches stage must still be recorded")
	}
	if got := notifier.sent(t); got.channel != discord.ChannelAlert {
		t.Fatalf("notified channel %q", got.channel)
	}
}

func TestRunScheduleSync_AllSourcesFailed(t *testing.T) {
	down := source.Outcome{Source: source.SourceFootballData, Err: errors.New("timeout")}
	alsoDown := source.Outcome{Source: source.SourceJLeague, Err: errors.New("blocked")}

	gateway := &fakeGateway{}
	feeds := []ScheduleFeed{
		staticFeed(source.SourceFootballData, down),
		staticFeed(source.SourceJLeague, alsoDown),
	}

	svc, snapshots, _, notifier := newPipeline(t, feeds, gateway)
	report, err := svc.RunScheduleSync(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if report.State != source.StateFailure {
		t.Fatalf("state = %s", report.State)
	}
	if snapshots.writes != 0 {
		t.Fatal("snapshot must not be written on total failure")
	}
	if got := notifier.sent(t); got.channel != discord.ChannelAlert {
		t.Fatalf("notified channel %q", got.channel)
	}
}

func TestRunScheduleSync_PreservesRefreshedState(t *testing.T) {
	kickoff := time.Date(2025, 4, 21, 14, 0, 0, 0, time.UTC)
	stored := match.Match{
		MatchID:         "497559",
		League:          match.LeagueRef{Code: "PL", Name: "Premier League"},
		KickoffTime:     kickoff,
		Matchday:        33,
		HomeTeam:        match.TeamRef{ID: "57", Name: "Arsenal FC", Players: []string{"冨安健洋"}},
		AwayTeam:        match.TeamRef{ID: "65", Name: "Manchester City FC"},
		LineupStatus:    match.LineupAnnounced,
		StartingMembers: []string{"冨安健洋"},
		Score: match.Score{
			FullTime: match.ScoreLine{Home: intPtr(2), Away: intPtr(0)},
			Winner:   match.WinnerHome,
		},
	}
	stored.RecordProvenance(match.FieldLineupStatus, string(source.SourceFootballData))
	stored.RecordProvenance(match.FieldRosters, string(source.SourceFootballData))
	stored.RecordProvenance(match.FieldScore, string(source.SourceFootballData))

	gateway := &fakeGateway{matches: []match.Match{stored}}
	feeds := []ScheduleFeed{staticFeed(source.SourceFootballData, apiScheduleOutcome())}

	svc, _, _, _ := newPipeline(t, feeds, gateway)
	report, err := svc.RunScheduleSync(context.Background())
	if err != nil {
		t.Fatalf("RunScheduleSync failed: %v", err)
	}
	if report.Persisted != 1 {
		t.Fatalf("report: %+v", report)
	}

	// The feed re-reports the fixture as a bare SCHEDULED row; the document
	// must keep what the refresher already learned.
	got := gateway.lastUpsert(t)
	if got.LineupStatus != match.LineupAnnounced {
		t.Fatalf("announced lineup reverted to %s", got.LineupStatus)
	}
	if len(got.StartingMembers) != 1 || got.StartingMembers[0] != "冨安健洋" {
		t.Fatalf("starting members lost: %v", got.StartingMembers)
	}
	if !got.Score.Settled() || *got.Score.FullTime.Home != 2 {
		t.Fatalf("settled score lost: %+v", got.Score)
	}
	if got.Provenance[match.FieldRosters] != string(source.SourceFootballData) {
		t.Fatalf("roster provenance lost: %+v", got.Provenance)
	}
}

func TestRunScheduleSync_CarriesRetryBookkeeping(t *testing.T) {
	kickoff := time.Date(2025, 4, 21, 14, 0, 0, 0, time.UTC)
	next := kickoff.Add(-time.Hour)
	stored := match.Match{
		MatchID:         "497559",
		League:          match.LeagueRef{Code: "PL", Name: "Premier League"},
		KickoffTime:     kickoff,
		HomeTeam:        match.TeamRef{ID: "57", Name: "Arsenal FC"},
		AwayTeam:        match.TeamRef{ID: "65", Name: "Manchester City FC"},
		LineupStatus:    match.LineupUnannounced,
		RefreshAttempts: 3,
		NextRefreshAt:   &next,
	}

	gateway := &fakeGateway{matches: []match.Match{stored}}
	feeds := []ScheduleFeed{staticFeed(source.SourceFootballData, apiScheduleOutcome())}

	svc, _, _, _ := newPipeline(t, feeds, gateway)
	if _, err := svc.RunScheduleSync(context.Background()); err != nil {
		t.Fatalf("RunScheduleSync failed: %v", err)
	}

	got := gateway.lastUpsert(t)
	if got.RefreshAttempts != 3 || got.NextRefreshAt == nil || !got.NextRefreshAt.Equal(next) {
		t.Fatalf("refresh bookkeeping reset by schedule sync: %+v", got)
	}
}

func TestRebuildSnapshot(t *testing.T) {
	kickoff := time.Date(2025, 4, 21, 14, 0, 0, 0, time.UTC)
	pl := match.Match{
		MatchID:     "497559",
		League:      match.LeagueRef{Code: "PL", Name: "Premier League"},
		KickoffTime: kickoff,
		Matchday:    33,
		HomeTeam:    match.TeamRef{Name: "Arsenal FC"},
		AwayTeam:    match.TeamRef{Name: "Manchester City FC"},
	}
	j1 := match.Match{
		MatchID:     match.ScrapedID("J1", kickoff.Add(4*24*time.Hour), "鹿島アントラーズ", "浦和レッズ"),
		League:      match.LeagueRef{Code: "J1", Name: "J1"},
		KickoffTime: kickoff.Add(4 * 24 * time.Hour),
		Matchday:    12,
		HomeTeam:    match.TeamRef{Name: "鹿島アントラーズ"},
		AwayTeam:    match.TeamRef{Name: "浦和レッズ"},
	}
	gateway := &fakeGateway{matches: []match.Match{pl, j1}}

	svc, snapshots, ledger, _ := newPipeline(t, nil, gateway)
	if err := svc.RebuildSnapshot(context.Background(), []string{"PL", "J1"}); err != nil {
		t.Fatalf("RebuildSnapshot failed: %v", err)
	}

	if snapshots.writes != 1 {
		t.Fatalf("snapshot writes = %d", snapshots.writes)
	}
	if _, ok := snapshots.windows["PL"]; !ok {
		t.Fatalf("missing PL window: %v", snapshots.windows)
	}
	if _, ok := snapshots.windows["J1"]; !ok {
		t.Fatalf("missing J1 window: %v", snapshots.windows)
	}
	if !ledger.has("updateSnapshot") {
		t.Fatalf("snapshot stage not recorded: %+v", ledger.entries)
	}
}

func TestRunScheduleSync_PersistRetriesTransientWrite(t *testing.T) {
	gateway := &flakyGateway{failuresLeft: map[string]int{"497559": 1}}
	feeds := []ScheduleFeed{staticFeed(source.SourceFootballData, apiScheduleOutcome())}

	svc, _, _, _ := newPipeline(t, feeds, gateway)
	report, err := svc.RunScheduleSync(context.Background())
	if err != nil {
		t.Fatalf("RunScheduleSync failed: %v", err)
	}

	if report.State != source.StateSuccess || report.Persisted != 1 || report.PersistFailed != 0 {
		t.Fatalf("retry did not recover the write: %+v", report)
	}
	if gateway.attempts["497559"] != 2 {
		t.Fatalf("upsert attempts = %d, want 2", gateway.attempts["497559"])
	}
}

func TestRunScheduleSync_PersistExhaustionIsPartial(t *testing.T) {
	gateway := &flakyGateway{failuresLeft: map[string]int{"497559": 100}}
	feeds := []ScheduleFeed{staticFeed(source.SourceFootballData, apiScheduleOutcome())}

	svc, snapshots, _, notifier := newPipeline(t, feeds, gateway)
	report, err := svc.RunScheduleSync(context.Background())
	if err != nil {
		t.Fatalf("isolated persist failures must not fail the run: %v", err)
	}

	if report.State != source.StatePartialFailure || report.PersistFailed != 1 {
		t.Fatalf("report: %+v", report)
	}
	if snapshots.writes != 0 {
		t.Fatal("snapshot must be withheld after persist failures")
	}
	if got := notifier.sent(t); got.channel != discord.ChannelAlert {
		t.Fatalf("notified channel %q", got.channel)
	}
}
