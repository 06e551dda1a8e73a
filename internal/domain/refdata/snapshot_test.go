package refdata

import "testing"

const seasonJSON = `{
  "teams": [
    { "teamId": 57, "team": "アーセナル", "englishName": "Arsenal FC", "players": ["冨安健洋"], "logo": "" },
    { "teamId": 0, "team": "鹿島アントラーズ", "englishName": "Kashima Antlers", "players": [] }
  ],
  "leagues": {
    "Premier League": "プレミアリーグ（イングランド1部）"
  }
}`

func TestFromJSON_Lookups(t *testing.T) {
	s, err := FromJSON([]byte(seasonJSON))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	team, ok := s.TeamByID(57)
	if !ok || team.Name != "アーセナル" {
		t.Fatalf("TeamByID(57) = %+v, %v", team, ok)
	}
	if len(team.Players) != 1 || team.Players[0] != "冨安健洋" {
		t.Fatalf("unexpected players: %v", team.Players)
	}

	if _, ok := s.TeamByID(0); ok {
		t.Fatal("teamId 0 must not be indexed")
	}

	team, ok = s.TeamByName("arsenal fc")
	if !ok || team.TeamID != 57 {
		t.Fatalf("english name lookup failed: %+v, %v", team, ok)
	}
	team, ok = s.TeamByName("鹿島アントラーズ")
	if !ok || team.EnglishName != "Kashima Antlers" {
		t.Fatalf("local name lookup failed: %+v, %v", team, ok)
	}
	if _, ok := s.TeamByName("Celtic FC"); ok {
		t.Fatal("unknown team must not resolve")
	}
}

func TestLeagueLocalName(t *testing.T) {
	s, err := FromJSON([]byte(seasonJSON))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	local, ok := s.LeagueLocalName("Premier League")
	if !ok || local != "プレミアリーグ（イングランド1部）" {
		t.Fatalf("LeagueLocalName = %q, %v", local, ok)
	}
	local, ok = s.LeagueLocalName("Scottish Premiership")
	if ok || local != "Scottish Premiership" {
		t.Fatalf("unmapped league must pass through: %q, %v", local, ok)
	}
}

func TestFromJSON_Rejects(t *testing.T) {
	if _, err := FromJSON([]byte(`{"teams": []}`)); err == nil {
		t.Fatal("expected error for empty teams")
	}
	if _, err := FromJSON([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
