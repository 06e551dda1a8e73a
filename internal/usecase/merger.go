package usecase

import (
	"sort"
	"strings"

	"github.com/lapra5/football-app/internal/domain/match"
	"github.com/lapra5/football-app/internal/platform/logging"
	"github.com/lapra5/football-app/internal/source"
)

// MergeInput is one normalized match plus optional void markers. A void names
// a patchable field the source explicitly reports as cleared; absence of data
// never clears anything.
type MergeInput struct {
	Source source.Source
	Match  match.Match
	Voids  []string
}

// Merger folds normalized matches from all sources into one record per
// real-world fixture. Identity fields belong to the highest-ranked source
// that wrote them; patchable fields go to the highest-ranked source holding a
// value. The fold is order-independent: inputs are ranked before merging.
type Merger struct {
	logger *logging.Logger
}

func NewMerger(logger *logging.Logger) *Merger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Merger{logger: logger}
}

type mergedEntry struct {
	m match.Match
	// rank of the source that owns each patchable field, and of identity.
	identityRank int
	fieldRank    map[string]int
	// rank of the strongest explicit void per field; a weaker source cannot
	// resurrect a value a stronger one voided.
	voidRank map[string]int
	// conflicted pins NeedsReview: a record involved in an identity collision
	// stays flagged no matter what later drafts resolve.
	conflicted bool
}

// Merge deduplicates and merges. Unreconcilable identity collisions keep both
// records flagged NeedsReview; duplication beats data loss.
func (mg *Merger) Merge(inputs []MergeInput) []match.Match {
	ordered := make([]MergeInput, len(inputs))
	copy(ordered, inputs)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := source.AuthorityRank(ordered[i].Source), source.AuthorityRank(ordered[j].Source)
		if ri != rj {
			return ri > rj
		}
		return ordered[i].Match.MatchID < ordered[j].Match.MatchID
	})

	entries := make([]*mergedEntry, 0, len(ordered))
	byID := make(map[string]*mergedEntry, len(ordered))
	byPair := make(map[string]*mergedEntry, len(ordered))

	for _, in := range ordered {
		pairKey := match.PairKey(in.Match.KickoffTime, in.Match.HomeTeam.Name, in.Match.AwayTeam.Name)

		entry := byID[in.Match.MatchID]
		if entry == nil {
			entry = byPair[pairKey]
		}

		if entry == nil {
			entry = &mergedEntry{
				m:            in.Match.Clone(),
				identityRank: source.AuthorityRank(in.Source),
				fieldRank:    map[string]int{},
				voidRank:     map[string]int{},
			}
			seedFieldRanks(entry, in)
			entries = append(entries, entry)
			byID[in.Match.MatchID] = entry
			byPair[pairKey] = entry
			continue
		}

		if !identityCompatible(entry.m, in.Match) {
			mg.logger.Warn("keeping both records",
				"error", ErrIdentityConflict,
				"existing_id", entry.m.MatchID,
				"incoming_id", in.Match.MatchID,
				"source", string(in.Source),
			)
			entry.m.NeedsReview = true
			entry.conflicted = true
			conflict := &mergedEntry{
				m:            in.Match.Clone(),
				identityRank: source.AuthorityRank(in.Source),
				fieldRank:    map[string]int{},
				voidRank:     map[string]int{},
				conflicted:   true,
			}
			conflict.m.NeedsReview = true
			seedFieldRanks(conflict, in)
			entries = append(entries, conflict)
			// Later drafts repeating this identity merge into the conflict
			// record instead of spawning more duplicates.
			byID[in.Match.MatchID] = conflict
			byPair[pairKey] = conflict
			continue
		}

		mg.patch(entry, in)
		byID[in.Match.MatchID] = entry
		byPair[pairKey] = entry
	}

	out := make([]match.Match, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].KickoffTime.Equal(out[j].KickoffTime) {
			return out[i].KickoffTime.Before(out[j].KickoffTime)
		}
		return out[i].MatchID < out[j].MatchID
	})
	return out
}

func seedFieldRanks(entry *mergedEntry, in MergeInput) {
	rank := source.AuthorityRank(in.Source)
	if in.Match.LineupStatus == match.LineupAnnounced {
		entry.fieldRank[match.FieldLineupStatus] = rank
	}
	if in.Match.Score.Settled() {
		entry.fieldRank[match.FieldScore] = rank
	}
	if hasRosters(in.Match) {
		entry.fieldRank[match.FieldRosters] = rank
	}
	for _, field := range in.Voids {
		if rank > entry.voidRank[field] {
			entry.voidRank[field] = rank
		}
	}
	entry.m.RecordProvenance(match.FieldIdentity, string(in.Source))
}

func (mg *Merger) patch(entry *mergedEntry, in MergeInput) {
	rank := source.AuthorityRank(in.Source)
	incoming := in.Match

	// Identity fields stay with the first (highest-ranked) writer; an unknown
	// matchday is the one identity gap a later source may fill.
	if entry.m.Matchday == 0 && incoming.Matchday != 0 {
		entry.m.Matchday = incoming.Matchday
	}
	if entry.m.League.LocalName == "" && incoming.League.LocalName != "" {
		entry.m.League.LocalName = incoming.League.LocalName
	}
	fillTeamRef(&entry.m.HomeTeam, incoming.HomeTeam)
	fillTeamRef(&entry.m.AwayTeam, incoming.AwayTeam)

	voided := map[string]bool{}
	for _, field := range in.Voids {
		voided[field] = true
	}

	// Lineup status is monotonic: once announced it never reverts, except by
	// an explicit void from a source outranking the current owner.
	if voided[match.FieldLineupStatus] && rank >= entry.fieldRank[match.FieldLineupStatus] {
		entry.m.LineupStatus = match.LineupUnannounced
		entry.fieldRank[match.FieldLineupStatus] = rank
		bumpVoidRank(entry, match.FieldLineupStatus, rank)
		entry.m.RecordProvenance(match.FieldLineupStatus, string(in.Source))
	} else if incoming.LineupStatus == match.LineupAnnounced &&
		entry.m.LineupStatus != match.LineupAnnounced &&
		rank > entry.voidRank[match.FieldLineupStatus] {
		entry.m.LineupStatus = match.LineupAnnounced
		entry.fieldRank[match.FieldLineupStatus] = rank
		entry.m.RecordProvenance(match.FieldLineupStatus, string(in.Source))
	}

	if voided[match.FieldScore] && rank >= entry.fieldRank[match.FieldScore] {
		entry.m.Score = match.Score{}
		entry.fieldRank[match.FieldScore] = rank
		bumpVoidRank(entry, match.FieldScore, rank)
		entry.m.RecordProvenance(match.FieldScore, string(in.Source))
	} else if incoming.Score.Settled() &&
		rank > entry.voidRank[match.FieldScore] &&
		(!entry.m.Score.Settled() || rank > entry.fieldRank[match.FieldScore]) {
		entry.m.Score = incoming.Clone().Score
		entry.fieldRank[match.FieldScore] = rank
		entry.m.RecordProvenance(match.FieldScore, string(in.Source))
	}

	if voided[match.FieldRosters] && rank >= entry.fieldRank[match.FieldRosters] {
		entry.m.StartingMembers = nil
		entry.m.Substitutes = nil
		entry.m.OutOfSquad = nil
		entry.fieldRank[match.FieldRosters] = rank
		bumpVoidRank(entry, match.FieldRosters, rank)
		entry.m.RecordProvenance(match.FieldRosters, string(in.Source))
	} else if hasRosters(incoming) &&
		rank > entry.voidRank[match.FieldRosters] &&
		(!hasRosters(entry.m) || rank > entry.fieldRank[match.FieldRosters]) {
		entry.m.StartingMembers = append([]string(nil), incoming.StartingMembers...)
		entry.m.Substitutes = append([]string(nil), incoming.Substitutes...)
		entry.m.OutOfSquad = append([]string(nil), incoming.OutOfSquad...)
		entry.fieldRank[match.FieldRosters] = rank
		entry.m.RecordProvenance(match.FieldRosters, string(in.Source))
	}

	entry.m.NeedsReview = entry.conflicted ||
		(entry.m.NeedsReview && (incoming.NeedsReview || !teamsResolved(incoming)))
}

func bumpVoidRank(entry *mergedEntry, field string, rank int) {
	if rank > entry.voidRank[field] {
		entry.voidRank[field] = rank
	}
}

// identityCompatible reports whether two records can describe the same
// fixture: kickoff equal to the minute and the same unordered team pair.
func identityCompatible(a, b match.Match) bool {
	return match.PairKey(a.KickoffTime, a.HomeTeam.Name, a.AwayTeam.Name) ==
		match.PairKey(b.KickoffTime, b.HomeTeam.Name, b.AwayTeam.Name)
}

func fillTeamRef(dst *match.TeamRef, in match.TeamRef) {
	if dst.ID == "" && in.ID != "" {
		dst.ID = in.ID
	}
	if dst.LocalName == "" && in.LocalName != "" {
		dst.LocalName = in.LocalName
	}
	if len(dst.Players) == 0 && len(in.Players) > 0 {
		dst.Players = append([]string(nil), in.Players...)
	}
	if dst.NeedsReview && !in.NeedsReview && in.LocalName != "" {
		dst.NeedsReview = false
	}
}

func hasRosters(m match.Match) bool {
	return len(m.StartingMembers) > 0 || len(m.Substitutes) > 0 || len(m.OutOfSquad) > 0
}

func teamsResolved(m match.Match) bool {
	return !m.HomeTeam.NeedsReview && !m.AwayTeam.NeedsReview &&
		strings.TrimSpace(m.HomeTeam.Name) != "" && strings.TrimSpace(m.AwayTeam.Name) != ""
}
