package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/lapra5/football-app/external/discord"
	"github.com/lapra5/football-app/internal/domain/match"
	"github.com/lapra5/football-app/internal/domain/runlog"
	"github.com/lapra5/football-app/internal/platform/logging"
	"github.com/lapra5/football-app/internal/source"
)

// ScheduleFeed is one schedule source wired into the pipeline. Site scrapers
// ignore the date range; the API feed uses it to bound the fetch.
type ScheduleFeed struct {
	Name  source.Source
	Fetch func(ctx context.Context, from, to time.Time) source.Outcome
}

// SnapshotWriter publishes the selected matchday windows as one atomic unit.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, windows map[string]Window) error
}

// Notifier is the fire-and-forget announcement hook. A failed notification
// never fails the run.
type Notifier interface {
	Send(ctx context.Context, channel, message string) error
}

type PipelineConfig struct {
	// FetchPast and FetchFuture bound the schedule fetch around "now".
	FetchPast   time.Duration
	FetchFuture time.Duration

	PersistAttempts int
	PersistBackoff  time.Duration
}

// RunReport summarizes one schedule sync cycle. A partial failure still
// persists everything that arrived; only the snapshot is held back.
type RunReport struct {
	State         source.OutcomeState                   `json:"state"`
	Sources       map[source.Source]source.OutcomeState `json:"sources"`
	Fetched       int                                   `json:"fetched"`
	Rejected      int                                   `json:"rejected"`
	Merged        int                                   `json:"merged"`
	Persisted     int                                   `json:"persisted"`
	PersistFailed int                                   `json:"persistFailed"`
	Snapshot      bool                                  `json:"snapshot"`
}

// Scraper sources carry their own ledger stage; the API fetch is covered by
// the overall StageMatches stamp.
var sourceStages = map[source.Source]string{
	source.SourceJLeague:  runlog.StageJLeague,
	source.SourceClubSite: runlog.StageClubSite,
}

// PipelineService runs the full schedule sync: fetch from every feed, merge
// the complete set, persist per document, then select windows and write the
// snapshot only when the whole cycle succeeded.
type PipelineService struct {
	feeds      []ScheduleFeed
	normalizer *Normalizer
	merger     *Merger
	selector   *WindowSelector
	gateway    match.Gateway
	snapshots  SnapshotWriter
	runs       runlog.Repository
	notifier   Notifier
	logger     *logging.Logger
	now        func() time.Time

	fetchPast       time.Duration
	fetchFuture     time.Duration
	persistAttempts int
	persistBackoff  time.Duration
}

func NewPipelineService(
	feeds []ScheduleFeed,
	normalizer *Normalizer,
	merger *Merger,
	selector *WindowSelector,
	gateway match.Gateway,
	snapshots SnapshotWriter,
	runs runlog.Repository,
	notifier Notifier,
	cfg PipelineConfig,
	logger *logging.Logger,
	now func() time.Time,
) *PipelineService {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	fetchPast := cfg.FetchPast
	if fetchPast <= 0 {
		fetchPast = 14 * 24 * time.Hour
	}
	fetchFuture := cfg.FetchFuture
	if fetchFuture <= 0 {
		fetchFuture = 120 * 24 * time.Hour
	}
	persistAttempts := cfg.PersistAttempts
	if persistAttempts <= 0 {
		persistAttempts = 3
	}
	persistBackoff := cfg.PersistBackoff
	if persistBackoff <= 0 {
		persistBackoff = 2 * time.Second
	}

	return &PipelineService{
		feeds:           feeds,
		normalizer:      normalizer,
		merger:          merger,
		selector:        selector,
		gateway:         gateway,
		snapshots:       snapshots,
		runs:            runs,
		notifier:        notifier,
		logger:          logger,
		now:             now,
		fetchPast:       fetchPast,
		fetchFuture:     fetchFuture,
		persistAttempts: persistAttempts,
		persistBackoff:  persistBackoff,
	}
}

// RunScheduleSync executes one full cycle. It returns an error only when the
// cycle produced nothing usable; a partial cycle returns a report and nil.
func (s *PipelineService) RunScheduleSync(ctx context.Context) (RunReport, error) {
	now := s.now()
	from := now.Add(-s.fetchPast)
	to := now.Add(s.fetchFuture)

	outcomes := s.fetchAll(ctx, from, to)

	report := RunReport{Sources: make(map[source.Source]source.OutcomeState, len(outcomes))}
	records := make([]source.RawRecord, 0)
	sourceTrouble := false
	allFailed := len(outcomes) > 0
	for _, o := range outcomes {
		state := o.State()
		report.Sources[o.Source] = state
		records = append(records, o.Records...)
		if state != source.StateSuccess {
			sourceTrouble = true
			s.logger.WarnContext(ctx, "schedule source degraded",
				"source", string(o.Source), "state", string(state),
				"failed_scopes", len(o.FailedScopes), "error", o.Err)
		}
		if state != source.StateFailure {
			allFailed = false
		}
	}
	report.Fetched = len(records)

	if allFailed {
		report.State = source.StateFailure
		s.notify(ctx, discord.ChannelAlert, "日程更新失敗: すべての取得元からデータを取得できませんでした")
		return report, fmt.Errorf("%w: all schedule sources failed", ErrSourceUnavailable)
	}

	normalized, rejections := s.normalizer.Normalize(records)
	report.Rejected = len(rejections)
	for _, rej := range rejections {
		s.logger.WarnContext(ctx, "record rejected", "error", rej.Err)
	}

	inputs := make([]MergeInput, 0, len(normalized))
	for _, sm := range normalized {
		inputs = append(inputs, MergeInput{Source: sm.Source, Match: sm.Match})
	}
	merged := s.merger.Merge(inputs)
	report.Merged = len(merged)

	// A rebuilt document knows nothing about lineups or final scores; the
	// stored copy does. Reading it back first keeps refresher-written state
	// from being overwritten by absence.
	final := make([]match.Match, 0, len(merged))
	storedByID, storedByPair, storedErr := s.loadStored(ctx, merged, from, to)
	if storedErr != nil {
		report.PersistFailed = len(merged)
		s.logger.ErrorContext(ctx, "stored state read failed, skipping persist", "error", storedErr)
	} else {
		for _, m := range merged {
			if prev, ok := lookupStored(storedByID, storedByPair, m); ok {
				m = carryDerived(prev, m)
			}
			final = append(final, m)
			if err := s.persistWithRetry(ctx, m); err != nil {
				if ctx.Err() != nil {
					report.State = source.StatePartialFailure
					return report, fmt.Errorf("%w: %v", ErrPersistenceFailure, ctx.Err())
				}
				report.PersistFailed++
				s.logger.ErrorContext(ctx, "match persist failed", "match_id", m.MatchID, "error", err)
				continue
			}
			report.Persisted++
		}
	}

	if sourceTrouble || report.PersistFailed > 0 {
		report.State = source.StatePartialFailure
	} else {
		report.State = source.StateSuccess
	}

	// The snapshot is the published view; a half-written cycle must never
	// replace a complete one.
	if report.State == source.StateSuccess {
		windows := s.selector.Select(final)
		if err := s.snapshots.WriteSnapshot(ctx, windows); err != nil {
			report.State = source.StatePartialFailure
			s.logger.ErrorContext(ctx, "snapshot write failed", "error", err)
		} else {
			report.Snapshot = true
			s.recordRun(ctx, runlog.StageSnapshot, now)
		}
	} else {
		s.logger.WarnContext(ctx, "snapshot withheld on degraded cycle", "state", string(report.State))
	}

	s.recordRun(ctx, runlog.StageMatches, now)
	for src, state := range report.Sources {
		if state != source.StateSuccess {
			continue
		}
		if stage, ok := sourceStages[src]; ok {
			s.recordRun(ctx, stage, now)
		}
	}
	s.announce(ctx, report)

	return report, nil
}

// RebuildSnapshot republishes the matchday-window artifact from the stored
// documents without touching any source. Covers manual re-publication and the
// case where a sync persisted fine but the snapshot write itself failed.
func (s *PipelineService) RebuildSnapshot(ctx context.Context, leagues []string) error {
	now := s.now()
	from := now.Add(-s.fetchPast)
	to := now.Add(s.fetchFuture)

	all := make([]match.Match, 0)
	for _, code := range leagues {
		rows, err := s.gateway.QueryRange(ctx, code, from, to)
		if err != nil {
			return fmt.Errorf("%w: query league %s: %v", ErrPersistenceFailure, code, err)
		}
		all = append(all, rows...)
	}

	if err := s.snapshots.WriteSnapshot(ctx, s.selector.Select(all)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.recordRun(ctx, runlog.StageSnapshot, now)
	return nil
}

// loadStored indexes the persisted documents for every league this cycle
// touched, by primary id and by pair key.
func (s *PipelineService) loadStored(ctx context.Context, merged []match.Match, from, to time.Time) (map[string]match.Match, map[string]match.Match, error) {
	leagues := make(map[string]bool, 4)
	for _, m := range merged {
		leagues[m.League.Code] = true
	}

	byID := make(map[string]match.Match, len(merged))
	byPair := make(map[string]match.Match, len(merged))
	for code := range leagues {
		rows, err := s.gateway.QueryRange(ctx, code, from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: query league %s: %v", ErrPersistenceFailure, code, err)
		}
		for _, r := range rows {
			byID[r.MatchID] = r
			byPair[match.PairKey(r.KickoffTime, r.HomeTeam.Name, r.AwayTeam.Name)] = r
		}
	}
	return byID, byPair, nil
}

func lookupStored(byID, byPair map[string]match.Match, m match.Match) (match.Match, bool) {
	if prev, ok := byID[m.MatchID]; ok {
		return prev, true
	}
	prev, ok := byPair[match.PairKey(m.KickoffTime, m.HomeTeam.Name, m.AwayTeam.Name)]
	return prev, ok
}

// carryDerived folds the stored document's derived state into a rebuilt one.
// Lineup status only advances, rosters and settled scores outlive a source
// that stopped reporting them, and the refresh bookkeeping rides along.
func carryDerived(stored, fresh match.Match) match.Match {
	out := fresh.Clone()

	if stored.LineupStatus == match.LineupAnnounced && out.LineupStatus != match.LineupAnnounced {
		out.LineupStatus = match.LineupAnnounced
		if src, ok := stored.Provenance[match.FieldLineupStatus]; ok {
			out.RecordProvenance(match.FieldLineupStatus, src)
		}
	}
	if !hasRosters(out) && hasRosters(stored) {
		kept := stored.Clone()
		out.StartingMembers = kept.StartingMembers
		out.Substitutes = kept.Substitutes
		out.OutOfSquad = kept.OutOfSquad
		if src, ok := stored.Provenance[match.FieldRosters]; ok {
			out.RecordProvenance(match.FieldRosters, src)
		}
	}
	if stored.Score.Settled() && !out.Score.Settled() {
		out.Score = stored.Clone().Score
		if src, ok := stored.Provenance[match.FieldScore]; ok {
			out.RecordProvenance(match.FieldScore, src)
		}
	}

	if out.Matchday == 0 && stored.Matchday != 0 {
		out.Matchday = stored.Matchday
	}
	if out.League.LocalName == "" {
		out.League.LocalName = stored.League.LocalName
	}
	fillTeamRef(&out.HomeTeam, stored.HomeTeam)
	fillTeamRef(&out.AwayTeam, stored.AwayTeam)

	out.Stale = stored.Stale
	out.RefreshAttempts = stored.RefreshAttempts
	if stored.NextRefreshAt != nil {
		next := *stored.NextRefreshAt
		out.NextRefreshAt = &next
	}
	return out
}

func (s *PipelineService) fetchAll(ctx context.Context, from, to time.Time) []source.Outcome {
	var mu sync.Mutex
	outcomes := make([]source.Outcome, 0, len(s.feeds))

	var wg conc.WaitGroup
	for _, feed := range s.feeds {
		feed := feed
		wg.Go(func() {
			outcome := feed.Fetch(ctx, from, to)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		})
	}
	wg.Wait()

	return outcomes
}

func (s *PipelineService) persistWithRetry(ctx context.Context, m match.Match) error {
	var lastErr error
	for attempt := 0; attempt < s.persistAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * s.persistBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if lastErr = s.gateway.Upsert(ctx, m.League.Code, m); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistenceFailure, lastErr)
}

func (s *PipelineService) recordRun(ctx context.Context, stage string, completedAt time.Time) {
	if s.runs == nil {
		return
	}
	if err := s.runs.RecordRun(ctx, stage, completedAt); err != nil {
		s.logger.WarnContext(ctx, "run ledger write failed", "stage", stage, "error", err)
	}
}

func (s *PipelineService) announce(ctx context.Context, report RunReport) {
	if report.State == source.StateSuccess {
		s.notify(ctx, discord.ChannelSchedule,
			fmt.Sprintf("日程更新完了: %d件の試合を保存しました", report.Persisted))
		return
	}
	s.notify(ctx, discord.ChannelAlert,
		fmt.Sprintf("日程更新は一部失敗しました: 保存%d件 / 保存失敗%d件 / 除外%d件",
			report.Persisted, report.PersistFailed, report.Rejected))
}

func (s *PipelineService) notify(ctx context.Context, channel, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, channel, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed", "channel", channel, "error", err)
	}
}
