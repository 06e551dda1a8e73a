// Package source defines the raw records the three match origins produce and
// the adapters that fetch them. Adapters never interpret row contents beyond
// splitting them into fields; everything semantic happens in the normalizer.
package source

import "github.com/lapra5/football-app/external/footballdata"

// Source identifies one origin. The constants double as provenance values on
// merged matches.
type Source string

const (
	SourceFootballData Source = "footballdata"
	SourceJLeague      Source = "jleague"
	SourceClubSite     Source = "clubsite"
)

// AuthorityRank orders sources for merge conflicts. Higher wins.
func AuthorityRank(s Source) int {
	switch s {
	case SourceFootballData:
		return 3
	case SourceJLeague:
		return 2
	case SourceClubSite:
		return 1
	default:
		return 0
	}
}

// ScopeKey names one fetchable unit of a source: a competition id for the API,
// a division for the league site, a page for the club site.
type ScopeKey struct {
	Source Source `json:"source"`
	Scope  string `json:"scope"`
}

// RawRecord is the tagged union of per-source row shapes.
type RawRecord interface {
	RecordSource() Source
}

// APIRecord is one provider fixture plus the competition it came from.
type APIRecord struct {
	CompetitionID   int
	CompetitionName string
	CompetitionCode string
	Match           footballdata.Match
}

func (APIRecord) RecordSource() Source { return SourceFootballData }

// SiteARecord is one row of the league data site's schedule table. All fields
// are raw cell text; DateText looks like "02/25（土）", TimeText like "14:00"
// or "27:45", SectionText like "第5節".
type SiteARecord struct {
	Division    string
	Year        int
	DateText    string
	TimeText    string
	HomeTeam    string
	AwayTeam    string
	SectionText string
	ScoreText   string
}

func (SiteARecord) RecordSource() Source { return SourceJLeague }

// SiteBRecord is one row of the club schedule page. The club itself is fixed
// per adapter; HomeGame says which side it played on. DateText carries an
// explicit year ("2025/04/21").
type SiteBRecord struct {
	LeagueName string
	ClubName   string
	Opponent   string
	HomeGame   bool
	DateText   string
	TimeText   string
	ScoreText  string
}

func (SiteBRecord) RecordSource() Source { return SourceClubSite }
