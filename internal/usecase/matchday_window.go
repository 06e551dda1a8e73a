package usecase

import (
	"sort"
	"time"

	"github.com/lapra5/football-app/internal/domain/match"
)

// A MatchGroup is one matchday (or, for cup rounds without a matchday, one
// Mon-Sun week) of a league's fixtures. Representative is the median kickoff
// and stands in for "when this round happens".
type MatchGroup struct {
	// Matchday is 0 for week-grouped cup rounds; WeekStart then carries the
	// Monday of the group's week.
	Matchday       int
	WeekStart      time.Time
	Matches        []match.Match
	Representative time.Time
}

// Window is the selector output for one league: the round happening now plus
// its chronological neighbors. Previous and Next are nil at the season edges.
type Window struct {
	League   string
	Previous *MatchGroup
	Current  *MatchGroup
	Next     *MatchGroup
}

// finishedGrace is how long after kickoff a match still counts as "current".
const finishedGrace = 2 * time.Hour

// WindowSelector picks the current matchday window per league. Selection is a
// pure function of (now, match set): same inputs, same window, every time.
type WindowSelector struct {
	now func() time.Time
}

func NewWindowSelector(now func() time.Time) *WindowSelector {
	if now == nil {
		now = time.Now
	}
	return &WindowSelector{now: now}
}

// Select groups matches per league and picks each league's window.
func (s *WindowSelector) Select(matches []match.Match) map[string]Window {
	byLeague := make(map[string][]match.Match)
	for _, m := range matches {
		byLeague[m.League.Code] = append(byLeague[m.League.Code], m)
	}

	out := make(map[string]Window, len(byLeague))
	for league, leagueMatches := range byLeague {
		out[league] = s.selectLeague(league, leagueMatches)
	}
	return out
}

func (s *WindowSelector) selectLeague(league string, matches []match.Match) Window {
	groups := groupMatches(matches)
	if len(groups) == 0 {
		return Window{League: league}
	}

	now := s.now()
	currentIdx := -1
	var bestDistance time.Duration

	for i, group := range groups {
		if !groupActive(group, now) {
			continue
		}
		distance := absDuration(group.Representative.Sub(now))
		if currentIdx == -1 || distance < bestDistance {
			currentIdx = i
			bestDistance = distance
			continue
		}
		// Equidistant groups break toward the one already in progress.
		if distance == bestDistance && groupInProgress(group, now) && !groupInProgress(groups[currentIdx], now) {
			currentIdx = i
		}
	}

	// Every group fully finished: the season's last round stays current.
	if currentIdx == -1 {
		currentIdx = len(groups) - 1
	}

	window := Window{League: league, Current: &groups[currentIdx]}
	if currentIdx > 0 {
		window.Previous = &groups[currentIdx-1]
	}
	if currentIdx+1 < len(groups) {
		window.Next = &groups[currentIdx+1]
	}
	return window
}

// groupMatches buckets by matchday, falling back to the Mon-Sun week for
// matches without one, and orders groups chronologically by representative.
func groupMatches(matches []match.Match) []MatchGroup {
	type key struct {
		matchday int
		week     time.Time
	}
	buckets := make(map[key][]match.Match)
	for _, m := range matches {
		k := key{matchday: m.Matchday}
		if m.Matchday == 0 {
			k.week = weekStart(m.KickoffTime)
		}
		buckets[k] = append(buckets[k], m)
	}

	groups := make([]MatchGroup, 0, len(buckets))
	for k, bucket := range buckets {
		sort.SliceStable(bucket, func(i, j int) bool {
			if !bucket[i].KickoffTime.Equal(bucket[j].KickoffTime) {
				return bucket[i].KickoffTime.Before(bucket[j].KickoffTime)
			}
			return bucket[i].MatchID < bucket[j].MatchID
		})
		groups = append(groups, MatchGroup{
			Matchday:       k.matchday,
			WeekStart:      k.week,
			Matches:        bucket,
			Representative: medianKickoff(bucket),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].Representative.Equal(groups[j].Representative) {
			return groups[i].Representative.Before(groups[j].Representative)
		}
		return groups[i].Matchday < groups[j].Matchday
	})
	return groups
}

func medianKickoff(sorted []match.Match) time.Time {
	n := len(sorted)
	if n == 0 {
		return time.Time{}
	}
	if n%2 == 1 {
		return sorted[n/2].KickoffTime
	}
	lower := sorted[n/2-1].KickoffTime
	upper := sorted[n/2].KickoffTime
	return lower.Add(upper.Sub(lower) / 2)
}

// groupActive: at least one match not yet two hours past kickoff.
func groupActive(group MatchGroup, now time.Time) bool {
	for _, m := range group.Matches {
		if now.Before(m.KickoffTime.Add(finishedGrace)) {
			return true
		}
	}
	return false
}

// groupInProgress: some match has kicked off but is within the grace window.
func groupInProgress(group MatchGroup, now time.Time) bool {
	for _, m := range group.Matches {
		if !now.Before(m.KickoffTime) && now.Before(m.KickoffTime.Add(finishedGrace)) {
			return true
		}
	}
	return false
}

// weekStart returns the Monday 00:00 UTC of the kickoff's week.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
