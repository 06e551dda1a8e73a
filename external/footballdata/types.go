package footballdata

// Wire types for the football-data.org v4 API, limited to the fields the
// pipeline consumes.

type competitionRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type playerRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type teamRef struct {
	ID     int         `json:"id"`
	Name   string      `json:"name"`
	Lineup []playerRef `json:"lineup"`
	Bench  []playerRef `json:"bench"`
}

type scoreLine struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type matchScore struct {
	Winner    string    `json:"winner"`
	Duration  string    `json:"duration"`
	FullTime  scoreLine `json:"fullTime"`
	Penalties scoreLine `json:"penalties"`
}

type matchItem struct {
	ID       int        `json:"id"`
	UTCDate  string     `json:"utcDate"`
	Status   string     `json:"status"`
	Matchday int        `json:"matchday"`
	HomeTeam teamRef    `json:"homeTeam"`
	AwayTeam teamRef    `json:"awayTeam"`
	Score    matchScore `json:"score"`
}

type competitionMatchesEnvelope struct {
	Competition competitionRef `json:"competition"`
	Matches     []matchItem    `json:"matches"`
}

type singleMatchEnvelope struct {
	Match matchItem `json:"match"`
}

// Match is one fixture as reported by the provider. UTCDate stays the raw
// RFC 3339 string; interpreting it is the normalizer's job.
type Match struct {
	ID           int
	UTCDate      string
	Status       string
	Matchday     int
	HomeTeamID   int
	HomeTeamName string
	AwayTeamID   int
	AwayTeamName string
	Winner       string
	Duration     string
	FullTimeHome *int
	FullTimeAway *int
	PenaltyHome  *int
	PenaltyAway  *int
	// Lineup and bench player names, present once the club submits its
	// squad (roughly an hour before kickoff).
	HomeLineup []string
	HomeBench  []string
	AwayLineup []string
	AwayBench  []string
}

// LineupAnnounced reports whether the provider has published lineups.
func (m Match) LineupAnnounced() bool {
	return len(m.HomeLineup) > 0 || len(m.AwayLineup) > 0
}

// CompetitionMatches is the full schedule of one competition.
type CompetitionMatches struct {
	CompetitionID   int
	CompetitionName string
	CompetitionCode string
	Matches         []Match
}

func playerNames(players []playerRef) []string {
	if len(players) == 0 {
		return nil
	}
	out := make([]string, 0, len(players))
	for _, p := range players {
		if p.Name != "" {
			out = append(out, p.Name)
		}
	}
	return out
}

func mapMatchItem(item matchItem) Match {
	return Match{
		ID:           item.ID,
		UTCDate:      item.UTCDate,
		Status:       item.Status,
		Matchday:     item.Matchday,
		HomeTeamID:   item.HomeTeam.ID,
		HomeTeamName: item.HomeTeam.Name,
		AwayTeamID:   item.AwayTeam.ID,
		AwayTeamName: item.AwayTeam.Name,
		Winner:       item.Score.Winner,
		Duration:     item.Score.Duration,
		FullTimeHome: item.Score.FullTime.Home,
		FullTimeAway: item.Score.FullTime.Away,
		PenaltyHome:  item.Score.Penalties.Home,
		PenaltyAway:  item.Score.Penalties.Away,
		HomeLineup:   playerNames(item.HomeTeam.Lineup),
		HomeBench:    playerNames(item.HomeTeam.Bench),
		AwayLineup:   playerNames(item.AwayTeam.Lineup),
		AwayBench:    playerNames(item.AwayTeam.Bench),
	}
}
