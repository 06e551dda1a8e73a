package source

import (
	"fmt"
	"testing"
)

func TestOutcomeState(t *testing.T) {
	cases := []struct {
		name string
		out  Outcome
		want OutcomeState
	}{
		{"no records no error", Outcome{}, StateSuccess},
		{"records only", Outcome{Records: []RawRecord{SiteARecord{}}}, StateSuccess},
		{"records with failed scope", Outcome{
			Records:      []RawRecord{SiteARecord{}},
			FailedScopes: []ScopeKey{{Source: SourceJLeague, Scope: "J2"}},
		}, StatePartialFailure},
		{"records with error", Outcome{
			Records: []RawRecord{SiteARecord{}},
			Err:     fmt.Errorf("boom"),
		}, StatePartialFailure},
		{"error without records", Outcome{Err: fmt.Errorf("boom")}, StateFailure},
	}

	for _, tc := range cases {
		if got := tc.out.State(); got != tc.want {
			t.Fatalf("%s: State() = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestAuthorityRank(t *testing.T) {
	if AuthorityRank(SourceFootballData) <= AuthorityRank(SourceJLeague) {
		t.Fatal("api must outrank league site")
	}
	if AuthorityRank(SourceJLeague) <= AuthorityRank(SourceClubSite) {
		t.Fatal("league site must outrank club site")
	}
	if AuthorityRank(Source("unknown")) != 0 {
		t.Fatal("unknown source must rank zero")
	}
}
