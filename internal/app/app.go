// Package app wires configuration, storage, sources, and services into the
// runnable pipeline.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/lapra5/football-app/external/discord"
	"github.com/lapra5/football-app/external/footballdata"
	"github.com/lapra5/football-app/internal/config"
	"github.com/lapra5/football-app/internal/domain/refdata"
	"github.com/lapra5/football-app/internal/domain/runlog"
	"github.com/lapra5/football-app/internal/infrastructure/repository/postgres"
	"github.com/lapra5/football-app/internal/infrastructure/snapshot"
	"github.com/lapra5/football-app/internal/platform/logging"
	"github.com/lapra5/football-app/internal/platform/resilience"
	"github.com/lapra5/football-app/internal/source"
	"github.com/lapra5/football-app/internal/usecase"
)

type Application struct {
	Config config.Config
	Logger *logging.Logger
	DB     *sqlx.DB

	Pipeline  *usecase.PipelineService
	Refresher *usecase.RefreshService
	RunLog    runlog.Repository

	// RefreshLeagues lists the league codes the refresher ticks over;
	// Leagues is every league code this deployment tracks, for snapshot
	// rebuilds.
	RefreshLeagues []string
	Leagues        []string
}

func New(cfg config.Config, logger *logging.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.Default()
	}

	db, err := sqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	refSnapshot, err := refdata.Load(cfg.SeasonDataPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load season data: %w", err)
	}

	matchRepo := postgres.NewMatchRepository(db)
	runRepo := postgres.NewRunLogRepository(db)

	notifier := discord.NewNotifier(discord.NotifierConfig{
		ScheduleWebhookURL: cfg.DiscordScheduleWebhookURL,
		RefreshWebhookURL:  cfg.DiscordRefreshWebhookURL,
		AlertWebhookURL:    cfg.DiscordAlertWebhookURL,
		Timeout:            cfg.DiscordTimeout,
		Retries:            cfg.DiscordRetries,
	}, logger)

	var fdClient *footballdata.Client
	feeds := make([]usecase.ScheduleFeed, 0, 3)
	if cfg.FootballDataEnabled {
		fdClient = footballdata.NewClient(footballdata.ClientConfig{
			HTTPClient: &http.Client{Timeout: cfg.FootballDataTimeout},
			BaseURL:    cfg.FootballDataBaseURL,
			Token:      cfg.FootballDataToken,
			Timeout:    cfg.FootballDataTimeout,
			MaxRetries: cfg.FootballDataMaxRetries,
			Logger:     logger,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.FootballDataCircuitEnabled,
				FailureThreshold: cfg.FootballDataCircuitFailureCount,
				OpenTimeout:      cfg.FootballDataCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.FootballDataCircuitHalfOpenMaxReq,
			},
		})

		ids := make([]int, 0, len(cfg.CompetitionIDByLeague))
		for _, id := range cfg.CompetitionIDByLeague {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)

		api := source.NewAPIAdapter(fdClient, source.APIAdapterConfig{
			CompetitionIDs: ids,
			BatchSize:      cfg.FetchBatchSize,
			BatchDelay:     cfg.FetchBatchDelay,
			CallTimeout:    cfg.FootballDataTimeout,
			Logger:         logger,
		})
		feeds = append(feeds, usecase.ScheduleFeed{Name: source.SourceFootballData, Fetch: api.Fetch})
	}

	pageFetcher := source.NewFastHTTPFetcher(cfg.ScrapeTimeout, cfg.ServiceName+"/"+cfg.ServiceVersion)
	if cfg.JLeagueEnabled {
		jl := source.NewLeagueSiteAdapter(pageFetcher, source.LeagueSiteAdapterConfig{
			DivisionURLs: cfg.JLeagueDivisionURLs,
			Year:         cfg.JLeagueSeasonYear,
			Logger:       logger,
		})
		feeds = append(feeds, usecase.ScheduleFeed{
			Name: source.SourceJLeague,
			Fetch: func(ctx context.Context, _, _ time.Time) source.Outcome {
				return jl.Fetch(ctx)
			},
		})
	}
	if cfg.ClubSiteEnabled {
		club := source.NewClubSiteAdapter(pageFetcher, source.ClubSiteAdapterConfig{
			URL:        cfg.ClubSiteURL,
			ClubName:   cfg.ClubSiteClubName,
			LeagueName: cfg.ClubSiteLeagueName,
			Logger:     logger,
		})
		feeds = append(feeds, usecase.ScheduleFeed{
			Name: source.SourceClubSite,
			Fetch: func(ctx context.Context, _, _ time.Time) source.Outcome {
				return club.Fetch(ctx)
			},
		})
	}

	pipeline := usecase.NewPipelineService(
		feeds,
		usecase.NewNormalizer(refSnapshot, logger),
		usecase.NewMerger(logger),
		usecase.NewWindowSelector(nil),
		matchRepo,
		snapshot.NewWriter(cfg.SnapshotPath, logger),
		runRepo,
		notifier,
		usecase.PipelineConfig{
			FetchPast:       cfg.FetchPast,
			FetchFuture:     cfg.FetchFuture,
			PersistAttempts: cfg.PersistAttempts,
			PersistBackoff:  cfg.PersistBackoff,
		},
		logger,
		nil,
	)

	var refresher *usecase.RefreshService
	if fdClient != nil {
		refresher = usecase.NewRefreshService(matchRepo, fdClient, usecase.RefreshConfig{
			Workers:     cfg.RefreshWorkers,
			MaxAttempts: cfg.RefreshMaxAttempts,
			BaseBackoff: cfg.RefreshBaseBackoff,
			MaxBackoff:  cfg.RefreshMaxBackoff,
		}, logger, nil)
	}

	leagues := append([]string(nil), cfg.RefreshLeagues...)
	if len(leagues) == 0 {
		for code := range cfg.CompetitionIDByLeague {
			leagues = append(leagues, code)
		}
		sort.Strings(leagues)
	}

	return &Application{
		Config:         cfg,
		Logger:         logger,
		DB:             db,
		Pipeline:       pipeline,
		Refresher:      refresher,
		RunLog:         runRepo,
		RefreshLeagues: leagues,
		Leagues:        allLeagueCodes(cfg),
	}, nil
}

// allLeagueCodes unions the league codes of every enabled source.
func allLeagueCodes(cfg config.Config) []string {
	seen := make(map[string]bool, 8)
	for code := range cfg.CompetitionIDByLeague {
		seen[code] = true
	}
	if cfg.JLeagueEnabled {
		for code := range cfg.JLeagueDivisionURLs {
			seen[code] = true
		}
	}
	if cfg.ClubSiteEnabled && cfg.ClubSiteLeagueName != "" {
		seen[cfg.ClubSiteLeagueName] = true
	}

	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (a *Application) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
