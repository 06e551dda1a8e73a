package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lapra5/football-app/external/footballdata"
	"github.com/lapra5/football-app/internal/domain/match"
	"github.com/lapra5/football-app/internal/platform/logging"
	"github.com/lapra5/football-app/internal/source"
)

// RefreshPhase is the per-match polling state, derived on every tick from
// "now" against the kickoff. No source pushes events; the phase decides
// whether a match is worth re-fetching right now.
type RefreshPhase string

const (
	PhaseScheduled       RefreshPhase = "SCHEDULED"
	PhaseLineupPending   RefreshPhase = "LINEUP_PENDING"
	PhaseLineupAnnounced RefreshPhase = "LINEUP_ANNOUNCED"
	PhaseScorePending    RefreshPhase = "SCORE_PENDING"
	PhaseFinal           RefreshPhase = "FINAL"
)

const (
	lineupWindowOpen  = 90 * time.Minute
	lineupWindowClose = 30 * time.Minute
	scoreWindowOpen   = 120 * time.Minute
)

// PhaseOf derives the polling phase for one match.
func PhaseOf(m match.Match, now time.Time) RefreshPhase {
	if m.Final() {
		return PhaseFinal
	}
	kickoff := m.KickoffTime
	if m.LineupStatus != match.LineupAnnounced {
		if !now.Before(kickoff.Add(-lineupWindowOpen)) && now.Before(kickoff.Add(-lineupWindowClose)) {
			return PhaseLineupPending
		}
	}
	if !now.Before(kickoff.Add(scoreWindowOpen)) && !m.Score.Settled() {
		return PhaseScorePending
	}
	if m.LineupStatus == match.LineupAnnounced {
		return PhaseLineupAnnounced
	}
	return PhaseScheduled
}

// MatchRefetcher is the slice of the football-data client the refresher
// needs. *footballdata.Client satisfies it.
type MatchRefetcher interface {
	FetchMatch(ctx context.Context, matchID int) (footballdata.Match, error)
}

type RefreshConfig struct {
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	CallTimeout time.Duration
}

type RefreshReport struct {
	Examined  int `json:"examined"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
	Stale     int `json:"stale"`
}

// RefreshService polls in-window matches against the authoritative API and
// patches lineups and scores. Failures are isolated per match and retried with
// bounded exponential backoff; the attempt count and next-try gate ride on the
// stored document, so a cron-style one-tick-per-process deployment still
// exhausts retries and marks the match stale.
type RefreshService struct {
	gateway match.Gateway
	fetcher MatchRefetcher
	logger  *logging.Logger
	now     func() time.Time

	workers     int
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	callTimeout time.Duration
}

func NewRefreshService(gateway match.Gateway, fetcher MatchRefetcher, cfg RefreshConfig, logger *logging.Logger, now func() time.Time) *RefreshService {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 30 * time.Second
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 15 * time.Minute
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}

	return &RefreshService{
		gateway:     gateway,
		fetcher:     fetcher,
		logger:      logger,
		now:         now,
		workers:     workers,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
		callTimeout: callTimeout,
	}
}

// Tick evaluates one league's matches around "now" and refreshes the ones
// inside a transition window.
func (s *RefreshService) Tick(ctx context.Context, leagueCode string) (RefreshReport, error) {
	now := s.now()
	stored, err := s.gateway.QueryRange(ctx, leagueCode, now.Add(-24*time.Hour), now.Add(3*time.Hour))
	if err != nil {
		return RefreshReport{}, fmt.Errorf("%w: query league %s: %v", ErrPersistenceFailure, leagueCode, err)
	}

	due := make([]match.Match, 0, len(stored))
	for _, m := range stored {
		phase := PhaseOf(m, now)
		if phase != PhaseLineupPending && phase != PhaseScorePending {
			continue
		}
		if _, err := strconv.Atoi(m.MatchID); err != nil {
			// Scrape-only fixture with no provider id; the schedule sync is
			// its only update path.
			continue
		}
		if m.Stale {
			continue
		}
		if m.NextRefreshAt != nil && now.Before(*m.NextRefreshAt) {
			continue
		}
		due = append(due, m)
	}

	report := RefreshReport{Examined: len(due)}
	if len(due) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return report, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var mu sync.Mutex
	var workers sync.WaitGroup
	for _, m := range due {
		m := m
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			refreshed, stale, err := s.refreshOne(ctx, leagueCode, m)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				if stale {
					report.Stale++
				}
			case refreshed:
				report.Refreshed++
			}
		}); err != nil {
			workers.Done()
			mu.Lock()
			report.Failed++
			mu.Unlock()
		}
	}
	workers.Wait()

	return report, nil
}

func (s *RefreshService) refreshOne(ctx context.Context, leagueCode string, m match.Match) (refreshed, stale bool, err error) {
	providerID, _ := strconv.Atoi(m.MatchID)

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	fresh, err := s.fetcher.FetchMatch(callCtx, providerID)
	if err != nil {
		flagged := s.recordFailure(m)
		stale = flagged.Stale
		s.logger.WarnContext(ctx, "match refresh failed", "match_id", m.MatchID, "attempts", flagged.RefreshAttempts, "stale", stale, "error", err)
		if upsertErr := s.gateway.Upsert(ctx, leagueCode, flagged); upsertErr != nil {
			s.logger.ErrorContext(ctx, "retry bookkeeping write failed", "match_id", m.MatchID, "error", upsertErr)
		}
		return false, stale, fmt.Errorf("%w: match %s: %v", ErrSourceUnavailable, m.MatchID, err)
	}

	hadBookkeeping := m.RefreshAttempts > 0 || m.NextRefreshAt != nil || m.Stale
	patched, changed := applyRefresh(m, fresh)
	patched.RefreshAttempts = 0
	patched.NextRefreshAt = nil
	patched.Stale = false
	if !changed && !hadBookkeeping {
		return false, false, nil
	}
	if err := s.gateway.Upsert(ctx, leagueCode, patched); err != nil {
		return false, false, fmt.Errorf("%w: upsert match %s: %v", ErrPersistenceFailure, m.MatchID, err)
	}
	return changed, false, nil
}

// recordFailure advances the backoff on a copy of the stored match. The count
// reaching maxAttempts marks the match stale; until then the next-try gate
// doubles from baseBackoff up to maxBackoff.
func (s *RefreshService) recordFailure(m match.Match) match.Match {
	flagged := m.Clone()
	flagged.RefreshAttempts++
	if flagged.RefreshAttempts >= s.maxAttempts {
		flagged.Stale = true
		flagged.NextRefreshAt = nil
		return flagged
	}

	backoff := s.baseBackoff << (flagged.RefreshAttempts - 1)
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	next := s.now().Add(backoff)
	flagged.NextRefreshAt = &next
	return flagged
}

// applyRefresh folds fresh provider data into the stored match under the
// merge rules: lineup status only ever advances, a concrete score is never
// cleared by an absent one, rosters follow the lineup announcement.
func applyRefresh(existing match.Match, fresh footballdata.Match) (match.Match, bool) {
	out := existing.Clone()
	changed := false

	if fresh.LineupAnnounced() && out.LineupStatus != match.LineupAnnounced {
		out.LineupStatus = match.LineupAnnounced
		out.StartingMembers, out.Substitutes, out.OutOfSquad = classifyRosters(existing, fresh)
		out.RecordProvenance(match.FieldLineupStatus, string(source.SourceFootballData))
		out.RecordProvenance(match.FieldRosters, string(source.SourceFootballData))
		changed = true
	}

	score := buildAPIScore(fresh)
	if score.Settled() && !scoresEqual(out.Score, score) {
		out.Score = score
		out.RecordProvenance(match.FieldScore, string(source.SourceFootballData))
		changed = true
	}

	if changed && out.Stale {
		out.Stale = false
	}
	return out, changed
}

// classifyRosters buckets each side's tracked players by where they appear in
// the announced lineup: starting eleven, bench, or out of the squad entirely.
func classifyRosters(m match.Match, fresh footballdata.Match) (starting, substitutes, outOfSquad []string) {
	sides := []struct {
		players []string
		lineup  []string
		bench   []string
	}{
		{m.HomeTeam.Players, fresh.HomeLineup, fresh.HomeBench},
		{m.AwayTeam.Players, fresh.AwayLineup, fresh.AwayBench},
	}

	for _, side := range sides {
		if len(side.players) == 0 {
			continue
		}
		lineupSet := toSet(side.lineup)
		benchSet := toSet(side.bench)
		for _, player := range side.players {
			switch {
			case lineupSet[player]:
				starting = append(starting, player)
			case benchSet[player]:
				substitutes = append(substitutes, player)
			default:
				outOfSquad = append(outOfSquad, player)
			}
		}
	}
	return starting, substitutes, outOfSquad
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func scoresEqual(a, b match.Score) bool {
	return lineEqual(a.FullTime, b.FullTime) &&
		((a.Shootout == nil) == (b.Shootout == nil)) &&
		(a.Shootout == nil || lineEqual(*a.Shootout, *b.Shootout)) &&
		a.Winner == b.Winner
}

func lineEqual(a, b match.ScoreLine) bool {
	return intPtrEqual(a.Home, b.Home) && intPtrEqual(a.Away, b.Away)
}

func intPtrEqual(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
