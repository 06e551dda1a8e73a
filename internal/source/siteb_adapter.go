package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/lapra5/football-app/internal/platform/logging"
)

type SiteBRowExtractor func(cfg ClubSiteAdapterConfig, page []byte) []SiteBRecord

type ClubSiteAdapterConfig struct {
	// URL is the club's season schedule page.
	URL        string
	ClubName   string
	LeagueName string
	Extractor  SiteBRowExtractor
	Logger     *logging.Logger
}

// ClubSiteAdapter scrapes one club's season schedule page. The whole page is
// a single scope, so any failure is a full Failure for this source.
type ClubSiteAdapter struct {
	fetcher PageFetcher
	cfg     ClubSiteAdapterConfig
	extract SiteBRowExtractor
	logger  *logging.Logger
}

func NewClubSiteAdapter(fetcher PageFetcher, cfg ClubSiteAdapterConfig) *ClubSiteAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	extract := cfg.Extractor
	if extract == nil {
		extract = DefaultSiteBExtractor
	}
	return &ClubSiteAdapter{fetcher: fetcher, cfg: cfg, extract: extract, logger: logger}
}

func (a *ClubSiteAdapter) Source() Source { return SourceClubSite }

func (a *ClubSiteAdapter) Fetch(ctx context.Context) Outcome {
	out := Outcome{Source: SourceClubSite}
	if a.cfg.URL == "" {
		out.Err = fmt.Errorf("no club page configured")
		return out
	}

	scope := ScopeKey{Source: SourceClubSite, Scope: a.cfg.ClubName}
	page, err := a.fetcher.FetchPage(ctx, a.cfg.URL)
	if err != nil {
		a.logger.WarnContext(ctx, "club page fetch failed", "club", a.cfg.ClubName, "error", err)
		out.FailedScopes = append(out.FailedScopes, scope)
		out.Err = err
		return out
	}

	rows := a.extract(a.cfg, page)
	if len(rows) == 0 {
		out.FailedScopes = append(out.FailedScopes, scope)
		out.Err = fmt.Errorf("club page yielded no rows")
		return out
	}
	for _, row := range rows {
		out.Records = append(out.Records, row)
	}
	return out
}

// DefaultSiteBExtractor reads rows that carry a full "YYYY/MM/DD" date and a
// time cell. The opponent is the last non-empty cell that is neither date,
// time, score nor a one-letter home/away marker.
func DefaultSiteBExtractor(cfg ClubSiteAdapterConfig, page []byte) []SiteBRecord {
	rows := tableRows(page)
	out := make([]SiteBRecord, 0, len(rows))
	for _, cells := range rows {
		if len(cells) < 3 {
			continue
		}
		dateIdx, dateCell := findCell(cells, fullDateRegex)
		timeIdx, timeText := findCell(cells, timeCellRegex)
		if dateIdx < 0 || timeIdx < 0 {
			continue
		}

		record := SiteBRecord{
			LeagueName: cfg.LeagueName,
			ClubName:   cfg.ClubName,
			DateText:   fullDateRegex.FindString(dateCell),
			TimeText:   timeText,
			HomeGame:   true,
		}

		for i, cell := range cells {
			if i == dateIdx || i == timeIdx || cell == "" {
				continue
			}
			switch strings.ToUpper(cell) {
			case "H":
				record.HomeGame = true
				continue
			case "A":
				record.HomeGame = false
				continue
			}
			if scoreCellRegex.MatchString(cell) {
				record.ScoreText = cell
				continue
			}
			record.Opponent = cell
		}
		if record.Opponent == "" {
			continue
		}
		out = append(out, record)
	}
	return out
}
