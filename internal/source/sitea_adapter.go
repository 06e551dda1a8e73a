package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/lapra5/football-app/internal/platform/logging"
)

// SiteARowExtractor turns one fetched page into raw schedule rows. The
// default works on cell text shapes; deployments pin an exact extractor when
// the site's markup is known.
type SiteARowExtractor func(division string, year int, page []byte) []SiteARecord

type LeagueSiteAdapterConfig struct {
	// DivisionURLs maps division name (J1, J2, J3) to its schedule URL.
	DivisionURLs map[string]string
	Year         int
	Extractor    SiteARowExtractor
	Logger       *logging.Logger
}

// LeagueSiteAdapter scrapes the league data site's schedule tables, one page
// per division. A failed division becomes a FailedScope.
type LeagueSiteAdapter struct {
	fetcher   PageFetcher
	divisions map[string]string
	year      int
	extract   SiteARowExtractor
	logger    *logging.Logger
}

func NewLeagueSiteAdapter(fetcher PageFetcher, cfg LeagueSiteAdapterConfig) *LeagueSiteAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	extract := cfg.Extractor
	if extract == nil {
		extract = DefaultSiteAExtractor
	}
	return &LeagueSiteAdapter{
		fetcher:   fetcher,
		divisions: cfg.DivisionURLs,
		year:      cfg.Year,
		extract:   extract,
		logger:    logger,
	}
}

func (a *LeagueSiteAdapter) Source() Source { return SourceJLeague }

func (a *LeagueSiteAdapter) Fetch(ctx context.Context) Outcome {
	out := Outcome{Source: SourceJLeague}
	if len(a.divisions) == 0 {
		out.Err = fmt.Errorf("no divisions configured")
		return out
	}

	names := make([]string, 0, len(a.divisions))
	for name := range a.divisions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, division := range names {
		page, err := a.fetcher.FetchPage(ctx, a.divisions[division])
		if err != nil {
			a.logger.WarnContext(ctx, "division page fetch failed", "division", division, "error", err)
			out.FailedScopes = append(out.FailedScopes, ScopeKey{Source: SourceJLeague, Scope: division})
			continue
		}
		rows := a.extract(division, a.year, page)
		if len(rows) == 0 {
			a.logger.WarnContext(ctx, "division page yielded no rows", "division", division)
			out.FailedScopes = append(out.FailedScopes, ScopeKey{Source: SourceJLeague, Scope: division})
			continue
		}
		for _, row := range rows {
			out.Records = append(out.Records, row)
		}
	}

	if len(out.FailedScopes) == len(a.divisions) {
		out.Err = fmt.Errorf("all %d divisions failed", len(a.divisions))
	}
	return out
}

// DefaultSiteAExtractor reads the schedule table by cell shape: a date cell, a
// time cell, an optional score cell flanked by the two team cells, and an
// optional "第N節" section cell anywhere in the row.
func DefaultSiteAExtractor(division string, year int, page []byte) []SiteARecord {
	rows := tableRows(page)
	out := make([]SiteARecord, 0, len(rows))
	for _, cells := range rows {
		if len(cells) < 4 {
			continue
		}
		dateIdx, dateText := findCell(cells, dateCellRegex)
		timeIdx, timeText := findCell(cells, timeCellRegex)
		if dateIdx < 0 || timeIdx < 0 {
			continue
		}

		record := SiteARecord{
			Division: division,
			Year:     year,
			DateText: dateText,
			TimeText: timeText,
		}
		if _, section := findCell(cells, sectionCellRegex); section != "" {
			record.SectionText = sectionCellRegex.FindString(section)
		}

		if scoreIdx, scoreText := findCell(cells, scoreCellRegex); scoreIdx > 0 && scoreIdx+1 < len(cells) {
			record.ScoreText = scoreText
			record.HomeTeam = cells[scoreIdx-1]
			record.AwayTeam = cells[scoreIdx+1]
		} else {
			// Unplayed fixtures carry "vs" or an empty cell between the teams.
			for i := timeIdx + 1; i+2 < len(cells); i++ {
				middle := cells[i+1]
				if middle == "vs" || middle == "VS" || middle == "対" || middle == "-" || middle == "" {
					record.HomeTeam = cells[i]
					record.AwayTeam = cells[i+2]
					break
				}
			}
		}
		if record.HomeTeam == "" || record.AwayTeam == "" {
			continue
		}
		out = append(out, record)
	}
	return out
}
