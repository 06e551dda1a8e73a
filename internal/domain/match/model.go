package match

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type LineupStatus string

const (
	LineupUnannounced LineupStatus = "UNANNOUNCED"
	LineupAnnounced   LineupStatus = "ANNOUNCED"
)

const (
	WinnerHome = "HOME_TEAM"
	WinnerAway = "AWAY_TEAM"
	WinnerDraw = "DRAW"
)

// Field names recorded in Provenance, one entry per patchable field.
const (
	FieldLineupStatus = "lineupStatus"
	FieldScore        = "score"
	FieldRosters      = "rosters"
	FieldIdentity     = "identity"
)

type LeagueRef struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	LocalName string `json:"localName,omitempty"`
}

type TeamRef struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	LocalName   string   `json:"localName,omitempty"`
	Players     []string `json:"players,omitempty"`
	NeedsReview bool     `json:"needsReview,omitempty"`
}

type ScoreLine struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

func (l ScoreLine) Concrete() bool {
	return l.Home != nil && l.Away != nil
}

func (l ScoreLine) clone() ScoreLine {
	out := l
	if l.Home != nil {
		home := *l.Home
		out.Home = &home
	}
	if l.Away != nil {
		away := *l.Away
		out.Away = &away
	}
	return out
}

type Score struct {
	FullTime ScoreLine  `json:"fullTime"`
	Shootout *ScoreLine `json:"shootout,omitempty"`
	Winner   string     `json:"winner,omitempty"`
}

func (s Score) Settled() bool {
	return s.FullTime.Concrete()
}

// Match is the canonical representation of one real-world fixture. MatchID is
// stable across runs and acts as the idempotency key; KickoffTime is always UTC.
type Match struct {
	MatchID     string    `json:"matchId"`
	League      LeagueRef `json:"league"`
	KickoffTime time.Time `json:"kickoffTime"`
	// Matchday is league-scoped; 0 marks an unknown or cup round.
	Matchday        int               `json:"matchday"`
	HomeTeam        TeamRef           `json:"homeTeam"`
	AwayTeam        TeamRef           `json:"awayTeam"`
	LineupStatus    LineupStatus      `json:"lineupStatus"`
	Score           Score             `json:"score"`
	StartingMembers []string          `json:"startingMembers,omitempty"`
	Substitutes     []string          `json:"substitutes,omitempty"`
	OutOfSquad      []string          `json:"outOfSquad,omitempty"`
	Provenance      map[string]string `json:"provenance,omitempty"`
	NeedsReview     bool              `json:"needsReview,omitempty"`
	// Stale marks a match whose refresh retries were exhausted; its last-known
	// state keeps displaying until a later cycle succeeds.
	Stale bool `json:"stale,omitempty"`
	// RefreshAttempts and NextRefreshAt are the refresh backoff bookkeeping.
	// They live on the document so the count survives process restarts; a
	// successful refresh resets both.
	RefreshAttempts int        `json:"refreshAttempts,omitempty"`
	NextRefreshAt   *time.Time `json:"nextRefreshAt,omitempty"`
}

// Final reports whether the match has reached its terminal state: lineup
// announced and the full-time score known. Final matches are never patched.
func (m Match) Final() bool {
	return m.LineupStatus == LineupAnnounced && m.Score.Settled()
}

func (m Match) Clone() Match {
	out := m
	out.HomeTeam.Players = append([]string(nil), m.HomeTeam.Players...)
	out.AwayTeam.Players = append([]string(nil), m.AwayTeam.Players...)
	out.StartingMembers = append([]string(nil), m.StartingMembers...)
	out.Substitutes = append([]string(nil), m.Substitutes...)
	out.OutOfSquad = append([]string(nil), m.OutOfSquad...)
	out.Score.FullTime = m.Score.FullTime.clone()
	if m.Score.Shootout != nil {
		shootout := m.Score.Shootout.clone()
		out.Score.Shootout = &shootout
	}
	if m.Provenance != nil {
		out.Provenance = make(map[string]string, len(m.Provenance))
		for k, v := range m.Provenance {
			out.Provenance[k] = v
		}
	}
	if m.NextRefreshAt != nil {
		next := *m.NextRefreshAt
		out.NextRefreshAt = &next
	}
	return out
}

func (m *Match) RecordProvenance(field, source string) {
	if m.Provenance == nil {
		m.Provenance = make(map[string]string, 4)
	}
	m.Provenance[field] = source
}

// ScrapedID builds the deterministic match id used for records whose source has
// no stable identifier scheme of its own.
func ScrapedID(leagueCode string, kickoff time.Time, homeTeam, awayTeam string) string {
	return fmt.Sprintf("%s_%s_%s_vs_%s",
		leagueCode,
		kickoff.UTC().Format(time.RFC3339),
		normalizeTeamToken(homeTeam),
		normalizeTeamToken(awayTeam),
	)
}

// PairKey is the secondary identity key: kickoff truncated to the minute plus
// the normalized unordered team pair. It reconciles the same fixture reported
// under incompatible id schemes.
func PairKey(kickoff time.Time, teamA, teamB string) string {
	names := []string{normalizeTeamToken(teamA), normalizeTeamToken(teamB)}
	sort.Strings(names)
	return kickoff.UTC().Truncate(time.Minute).Format(time.RFC3339) + "|" + names[0] + "|" + names[1]
}

func normalizeTeamToken(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "-")
}
