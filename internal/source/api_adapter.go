package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lapra5/football-app/external/footballdata"
	"github.com/lapra5/football-app/internal/platform/logging"
)

// CompetitionFetcher is the slice of the football-data client the adapter
// needs. *footballdata.Client satisfies it.
type CompetitionFetcher interface {
	FetchCompetitionMatches(ctx context.Context, competitionID int, from, to time.Time) (footballdata.CompetitionMatches, error)
}

const (
	// The provider's free tier allows 10 requests per minute; staying one
	// under keeps a burst plus the next batch inside the limit.
	defaultAPIBatchSize  = 9
	defaultAPIBatchDelay = time.Minute
	defaultAPICallTime   = 15 * time.Second
)

type APIAdapterConfig struct {
	CompetitionIDs []int
	BatchSize      int
	BatchDelay     time.Duration
	CallTimeout    time.Duration
	Logger         *logging.Logger
}

// APIAdapter pulls competition schedules from the paid API in rate-limited
// batches. A failed competition becomes a FailedScope; the adapter never
// aborts the cycle for one competition.
type APIAdapter struct {
	client      CompetitionFetcher
	ids         []int
	batchSize   int
	batchDelay  time.Duration
	callTimeout time.Duration
	logger      *logging.Logger

	// sleep is swappable so tests do not wait out real batch delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAPIAdapter(client CompetitionFetcher, cfg APIAdapterConfig) *APIAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > defaultAPIBatchSize {
		batchSize = defaultAPIBatchSize
	}
	batchDelay := cfg.BatchDelay
	if batchDelay <= 0 {
		batchDelay = defaultAPIBatchDelay
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultAPICallTime
	}

	return &APIAdapter{
		client:      client,
		ids:         append([]int(nil), cfg.CompetitionIDs...),
		batchSize:   batchSize,
		batchDelay:  batchDelay,
		callTimeout: callTimeout,
		logger:      logger,
		sleep:       sleepContext,
	}
}

func (a *APIAdapter) Source() Source { return SourceFootballData }

// Fetch pulls every configured competition. The from/to window narrows the
// provider query; zero values fetch the whole season.
func (a *APIAdapter) Fetch(ctx context.Context, from, to time.Time) Outcome {
	out := Outcome{Source: SourceFootballData}
	if len(a.ids) == 0 {
		out.Err = fmt.Errorf("no competitions configured")
		return out
	}

	pool, err := ants.NewPool(a.batchSize)
	if err != nil {
		out.Err = fmt.Errorf("create worker pool: %w", err)
		return out
	}
	defer pool.Release()

	var mu sync.Mutex
	for start := 0; start < len(a.ids); start += a.batchSize {
		end := start + a.batchSize
		if end > len(a.ids) {
			end = len(a.ids)
		}

		var workers sync.WaitGroup
		for _, id := range a.ids[start:end] {
			id := id
			workers.Add(1)
			submitErr := pool.Submit(func() {
				defer workers.Done()

				callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
				defer cancel()

				competition, err := a.client.FetchCompetitionMatches(callCtx, id, from, to)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					a.logger.WarnContext(ctx, "competition fetch failed", "competition_id", id, "error", err)
					out.FailedScopes = append(out.FailedScopes, ScopeKey{Source: SourceFootballData, Scope: fmt.Sprintf("%d", id)})
					return
				}
				for _, m := range competition.Matches {
					out.Records = append(out.Records, APIRecord{
						CompetitionID:   competition.CompetitionID,
						CompetitionName: competition.CompetitionName,
						CompetitionCode: competition.CompetitionCode,
						Match:           m,
					})
				}
			})
			if submitErr != nil {
				workers.Done()
				mu.Lock()
				out.FailedScopes = append(out.FailedScopes, ScopeKey{Source: SourceFootballData, Scope: fmt.Sprintf("%d", id)})
				mu.Unlock()
			}
		}
		workers.Wait()

		if end < len(a.ids) {
			if err := a.sleep(ctx, a.batchDelay); err != nil {
				out.Err = err
				return out
			}
		}
	}

	if len(out.FailedScopes) == len(a.ids) {
		out.Err = fmt.Errorf("all %d competitions failed", len(a.ids))
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
