// Package refdata holds the season reference data: the roster of known teams
// with their localized names and Japanese players, and the localized league
// display names. A Snapshot is loaded once at startup and passed to whoever
// needs it; it is never mutated after construction.
package refdata

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
)

// Team is one entry of the season file. TeamID is the upstream provider id and
// is 0 for teams that only ever appear in scraped sources.
type Team struct {
	TeamID      int      `json:"teamId"`
	Name        string   `json:"team"`
	EnglishName string   `json:"englishName"`
	Players     []string `json:"players"`
	Logo        string   `json:"logo,omitempty"`
}

type file struct {
	Teams   []Team            `json:"teams"`
	Leagues map[string]string `json:"leagues"`
}

// Snapshot is an immutable view over the reference data with lookup indexes
// prebuilt. All lookup methods are safe for concurrent use.
type Snapshot struct {
	teams     []Team
	leagues   map[string]string
	byID      map[int]int
	byName    map[string]int
	byEnglish map[string]int
}

// FromJSON builds a Snapshot from the raw season file contents.
func FromJSON(raw []byte) (*Snapshot, error) {
	var f file
	if err := sonic.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("refdata: decode season file: %w", err)
	}
	if len(f.Teams) == 0 {
		return nil, fmt.Errorf("refdata: season file has no teams")
	}

	s := &Snapshot{
		teams:     f.Teams,
		leagues:   f.Leagues,
		byID:      make(map[int]int, len(f.Teams)),
		byName:    make(map[string]int, len(f.Teams)),
		byEnglish: make(map[string]int, len(f.Teams)),
	}
	for i, t := range f.Teams {
		if t.TeamID != 0 {
			s.byID[t.TeamID] = i
		}
		if t.Name != "" {
			s.byName[normalizeName(t.Name)] = i
		}
		if t.EnglishName != "" {
			s.byEnglish[normalizeName(t.EnglishName)] = i
		}
	}
	return s, nil
}

// Load reads and decodes the season file at path.
func Load(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("refdata: read season file: %w", err)
	}
	return FromJSON(raw)
}

// TeamByID returns the team with the given upstream id.
func (s *Snapshot) TeamByID(id int) (Team, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Team{}, false
	}
	return s.teams[i], true
}

// TeamByName resolves a team by localized or english name, case-insensitive.
func (s *Snapshot) TeamByName(name string) (Team, bool) {
	key := normalizeName(name)
	if i, ok := s.byName[key]; ok {
		return s.teams[i], true
	}
	if i, ok := s.byEnglish[key]; ok {
		return s.teams[i], true
	}
	return Team{}, false
}

// LeagueLocalName returns the localized display name for an english league
// name, or the input unchanged when no mapping exists.
func (s *Snapshot) LeagueLocalName(englishName string) (string, bool) {
	local, ok := s.leagues[englishName]
	if !ok {
		return englishName, false
	}
	return local, true
}

// Teams returns a copy of all team entries.
func (s *Snapshot) Teams() []Team {
	out := make([]Team, len(s.teams))
	copy(out, s.teams)
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(name)), " "))
}
