package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lapra5/football-app/external/footballdata"
	"github.com/lapra5/football-app/internal/domain/match"
	"github.com/lapra5/football-app/internal/domain/refdata"
	"github.com/lapra5/football-app/internal/platform/datetime"
	"github.com/lapra5/football-app/internal/platform/logging"
	"github.com/lapra5/football-app/internal/source"
)

var sectionNumberRegex = regexp.MustCompile(`第\s*(\d+)\s*節`)

// SourcedMatch is a normalized match still tagged with where it came from; the
// merger needs the source to rank conflicting writes.
type SourcedMatch struct {
	Source source.Source
	Match  match.Match
}

// Rejection records one raw record that failed normalization. Rejections are
// logged and counted, never silently dropped.
type Rejection struct {
	Record source.RawRecord
	Err    error
}

// Normalizer folds the per-source raw shapes into canonical matches. It is
// stateless apart from the immutable reference snapshot.
type Normalizer struct {
	refdata *refdata.Snapshot
	logger  *logging.Logger
}

func NewNormalizer(snapshot *refdata.Snapshot, logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Normalizer{refdata: snapshot, logger: logger}
}

// Normalize converts every record it can and returns the rest as rejections.
func (n *Normalizer) Normalize(records []source.RawRecord) ([]SourcedMatch, []Rejection) {
	out := make([]SourcedMatch, 0, len(records))
	var rejected []Rejection

	for _, record := range records {
		var (
			m   match.Match
			err error
		)
		switch typed := record.(type) {
		case source.APIRecord:
			m, err = n.normalizeAPI(typed)
		case source.SiteARecord:
			m, err = n.normalizeSiteA(typed)
		case source.SiteBRecord:
			m, err = n.normalizeSiteB(typed)
		default:
			err = fmt.Errorf("%w: unknown record type %T", ErrUnparseableRecord, record)
		}
		if err != nil {
			rejected = append(rejected, Rejection{Record: record, Err: err})
			continue
		}
		out = append(out, SourcedMatch{Source: record.RecordSource(), Match: m})
	}
	return out, rejected
}

func (n *Normalizer) normalizeAPI(record source.APIRecord) (match.Match, error) {
	raw := record.Match
	if strings.TrimSpace(raw.UTCDate) == "" {
		return match.Match{}, fmt.Errorf("%w: %w: api match %d", ErrUnparseableRecord, ErrMissingKickoff, raw.ID)
	}
	kickoff, err := datetime.ParseInstant(raw.UTCDate)
	if err != nil {
		return match.Match{}, fmt.Errorf("%w: %w: api match %d: %v", ErrUnparseableRecord, ErrUnparseableDate, raw.ID, err)
	}
	if strings.TrimSpace(raw.HomeTeamName) == "" || strings.TrimSpace(raw.AwayTeamName) == "" {
		return match.Match{}, fmt.Errorf("%w: %w: api match %d", ErrUnparseableRecord, ErrMissingTeams, raw.ID)
	}

	leagueName := record.CompetitionName
	localLeague, _ := n.leagueLocalName(leagueName)

	m := match.Match{
		MatchID: strconv.Itoa(raw.ID),
		League: match.LeagueRef{
			Code:      firstNonEmptyString(record.CompetitionCode, strconv.Itoa(record.CompetitionID)),
			Name:      leagueName,
			LocalName: localLeague,
		},
		KickoffTime:  kickoff,
		Matchday:     maxInt(raw.Matchday, 0),
		HomeTeam:     n.resolveTeamByID(raw.HomeTeamID, raw.HomeTeamName),
		AwayTeam:     n.resolveTeamByID(raw.AwayTeamID, raw.AwayTeamName),
		LineupStatus: match.LineupUnannounced,
		Score:        buildAPIScore(raw),
	}
	m.NeedsReview = m.HomeTeam.NeedsReview || m.AwayTeam.NeedsReview
	m.RecordProvenance(match.FieldIdentity, string(source.SourceFootballData))
	if m.Score.Settled() {
		m.RecordProvenance(match.FieldScore, string(source.SourceFootballData))
	}
	return m, nil
}

func (n *Normalizer) normalizeSiteA(record source.SiteARecord) (match.Match, error) {
	if strings.TrimSpace(record.DateText) == "" || strings.TrimSpace(record.TimeText) == "" {
		return match.Match{}, fmt.Errorf("%w: %w: %s row", ErrUnparseableRecord, ErrMissingKickoff, record.Division)
	}
	kickoff, err := datetime.ParseKickoff(record.DateText, record.TimeText, record.Year, datetime.JST)
	if err != nil {
		return match.Match{}, fmt.Errorf("%w: %w: %s row: %v", ErrUnparseableRecord, ErrUnparseableDate, record.Division, err)
	}
	if strings.TrimSpace(record.HomeTeam) == "" || strings.TrimSpace(record.AwayTeam) == "" {
		return match.Match{}, fmt.Errorf("%w: %w: %s row", ErrUnparseableRecord, ErrMissingTeams, record.Division)
	}

	score, err := match.ParseScoreText(record.ScoreText)
	if err != nil {
		// A malformed score never rejects the fixture; it just stays unsettled.
		n.logger.Warn("ignoring malformed score text", "division", record.Division, "score_text", record.ScoreText, "error", err)
		score = match.Score{}
	}

	localLeague, _ := n.leagueLocalName(record.Division)
	m := match.Match{
		MatchID: match.ScrapedID(record.Division, kickoff, record.HomeTeam, record.AwayTeam),
		League: match.LeagueRef{
			Code:      record.Division,
			Name:      record.Division,
			LocalName: localLeague,
		},
		KickoffTime:  kickoff,
		Matchday:     parseSectionNumber(record.SectionText),
		HomeTeam:     n.resolveTeamByName(record.HomeTeam),
		AwayTeam:     n.resolveTeamByName(record.AwayTeam),
		LineupStatus: match.LineupUnannounced,
		Score:        score,
	}
	m.NeedsReview = m.HomeTeam.NeedsReview || m.AwayTeam.NeedsReview
	m.RecordProvenance(match.FieldIdentity, string(source.SourceJLeague))
	if m.Score.Settled() {
		m.RecordProvenance(match.FieldScore, string(source.SourceJLeague))
	}
	return m, nil
}

func (n *Normalizer) normalizeSiteB(record source.SiteBRecord) (match.Match, error) {
	if strings.TrimSpace(record.DateText) == "" || strings.TrimSpace(record.TimeText) == "" {
		return match.Match{}, fmt.Errorf("%w: %w: club row", ErrUnparseableRecord, ErrMissingKickoff)
	}
	// The club page carries an explicit year in the date text, so no season
	// year is injected here.
	kickoff, err := datetime.ParseKickoff(record.DateText, record.TimeText, 0, datetime.JST)
	if err != nil {
		return match.Match{}, fmt.Errorf("%w: %w: club row: %v", ErrUnparseableRecord, ErrUnparseableDate, err)
	}
	if strings.TrimSpace(record.ClubName) == "" || strings.TrimSpace(record.Opponent) == "" {
		return match.Match{}, fmt.Errorf("%w: %w: club row", ErrUnparseableRecord, ErrMissingTeams)
	}

	home, away := record.ClubName, record.Opponent
	if !record.HomeGame {
		home, away = record.Opponent, record.ClubName
	}

	score, err := match.ParseScoreText(record.ScoreText)
	if err != nil {
		n.logger.Warn("ignoring malformed score text", "club", record.ClubName, "score_text", record.ScoreText, "error", err)
		score = match.Score{}
	}
	// The page reports scores club-first; flip for away games so the score
	// line stays home-first.
	if !record.HomeGame && score.FullTime.Concrete() {
		score = flipScore(score)
	}

	leagueCode := firstNonEmptyString(record.LeagueName, "CLUB")
	localLeague, _ := n.leagueLocalName(record.LeagueName)
	m := match.Match{
		MatchID: match.ScrapedID(leagueCode, kickoff, home, away),
		League: match.LeagueRef{
			Code:      leagueCode,
			Name:      record.LeagueName,
			LocalName: localLeague,
		},
		KickoffTime:  kickoff,
		HomeTeam:     n.resolveTeamByName(home),
		AwayTeam:     n.resolveTeamByName(away),
		LineupStatus: match.LineupUnannounced,
		Score:        score,
	}
	m.NeedsReview = m.HomeTeam.NeedsReview || m.AwayTeam.NeedsReview
	m.RecordProvenance(match.FieldIdentity, string(source.SourceClubSite))
	if m.Score.Settled() {
		m.RecordProvenance(match.FieldScore, string(source.SourceClubSite))
	}
	return m, nil
}

func (n *Normalizer) resolveTeamByID(id int, name string) match.TeamRef {
	ref := match.TeamRef{Name: strings.TrimSpace(name)}
	if id > 0 {
		ref.ID = strconv.Itoa(id)
	}
	if n.refdata == nil {
		ref.NeedsReview = true
		return ref
	}
	if team, ok := n.refdata.TeamByID(id); ok {
		ref.LocalName = team.Name
		ref.Players = append([]string(nil), team.Players...)
		return ref
	}
	if team, ok := n.refdata.TeamByName(name); ok {
		ref.LocalName = team.Name
		ref.Players = append([]string(nil), team.Players...)
		return ref
	}
	ref.NeedsReview = true
	return ref
}

func (n *Normalizer) resolveTeamByName(name string) match.TeamRef {
	ref := match.TeamRef{Name: strings.TrimSpace(name)}
	if n.refdata == nil {
		ref.NeedsReview = true
		return ref
	}
	if team, ok := n.refdata.TeamByName(name); ok {
		if team.TeamID > 0 {
			ref.ID = strconv.Itoa(team.TeamID)
		}
		ref.LocalName = team.Name
		ref.Players = append([]string(nil), team.Players...)
		return ref
	}
	ref.NeedsReview = true
	return ref
}

func (n *Normalizer) leagueLocalName(name string) (string, bool) {
	if n.refdata == nil || strings.TrimSpace(name) == "" {
		return "", false
	}
	local, ok := n.refdata.LeagueLocalName(name)
	if !ok {
		return "", false
	}
	return local, true
}

func buildAPIScore(raw footballdata.Match) match.Score {
	score := match.Score{
		FullTime: match.ScoreLine{Home: copyIntPtr(raw.FullTimeHome), Away: copyIntPtr(raw.FullTimeAway)},
	}
	if raw.PenaltyHome != nil && raw.PenaltyAway != nil {
		score.Shootout = &match.ScoreLine{Home: copyIntPtr(raw.PenaltyHome), Away: copyIntPtr(raw.PenaltyAway)}
	}
	score.Winner = strings.TrimSpace(raw.Winner)
	if score.Winner == "" {
		score.Winner = match.DeriveWinner(score.FullTime, score.Shootout)
	}
	return score
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func parseSectionNumber(text string) int {
	parts := sectionNumberRegex.FindStringSubmatch(text)
	if parts == nil {
		return 0
	}
	value, err := strconv.Atoi(parts[1])
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func flipScore(score match.Score) match.Score {
	score.FullTime.Home, score.FullTime.Away = score.FullTime.Away, score.FullTime.Home
	if score.Shootout != nil {
		score.Shootout.Home, score.Shootout.Away = score.Shootout.Away, score.Shootout.Home
	}
	score.Winner = match.DeriveWinner(score.FullTime, score.Shootout)
	return score
}

func firstNonEmptyString(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
