package match

import (
	"testing"
	"time"
)

func TestScrapedID_Deterministic(t *testing.T) {
	kickoff := time.Date(2025, 4, 21, 18, 45, 0, 0, time.UTC)

	first := ScrapedID("J1", kickoff, "Kashima Antlers", "Urawa Reds")
	second := ScrapedID("J1", kickoff, "Kashima Antlers", "Urawa Reds")
	if first != second {
		t.Fatalf("scraped id not stable: %s vs %s", first, second)
	}

	other := ScrapedID("J1", kickoff, "Urawa Reds", "Kashima Antlers")
	if first == other {
		t.Fatal("scraped id must distinguish home and away")
	}
}

func TestPairKey_UnorderedAndMinuteRounded(t *testing.T) {
	kickoff := time.Date(2025, 4, 21, 18, 45, 12, 0, time.UTC)
	reversed := PairKey(kickoff.Add(30*time.Second), "Urawa Reds", "Kashima Antlers")
	forward := PairKey(kickoff, "Kashima Antlers", "Urawa Reds")

	if forward != reversed {
		t.Fatalf("pair key must ignore team order and sub-minute offsets: %s vs %s", forward, reversed)
	}
}

func TestPairKey_DifferentMinuteDiffers(t *testing.T) {
	kickoff := time.Date(2025, 4, 21, 18, 45, 0, 0, time.UTC)
	a := PairKey(kickoff, "A", "B")
	b := PairKey(kickoff.Add(time.Minute), "A", "B")
	if a == b {
		t.Fatal("pair key must separate kickoffs a minute apart")
	}
}

func TestMatch_Final(t *testing.T) {
	home, away := 2, 0
	m := Match{
		LineupStatus: LineupAnnounced,
		Score:        Score{FullTime: ScoreLine{Home: &home, Away: &away}},
	}
	if !m.Final() {
		t.Fatal("expected final match")
	}

	m.LineupStatus = LineupUnannounced
	if m.Final() {
		t.Fatal("unannounced lineup must not be final")
	}
}

func TestMatch_CloneIsDeep(t *testing.T) {
	home, away := 1, 1
	m := Match{
		MatchID:         "m1",
		StartingMembers: []string{"a"},
		Score:           Score{FullTime: ScoreLine{Home: &home, Away: &away}, Shootout: &ScoreLine{Home: &home, Away: &away}},
		Provenance:      map[string]string{FieldScore: "footballdata"},
	}

	clone := m.Clone()
	clone.StartingMembers[0] = "b"
	clone.Provenance[FieldScore] = "jleague"
	*clone.Score.Shootout.Home = 9

	if m.StartingMembers[0] != "a" {
		t.Fatal("clone shares starting members slice")
	}
	if m.Provenance[FieldScore] != "footballdata" {
		t.Fatal("clone shares provenance map")
	}
	if *m.Score.Shootout.Home != 1 {
		t.Fatal("clone shares shootout line")
	}
}
