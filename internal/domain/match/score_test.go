package match

import "testing"

func TestParseScoreText_RegularTime(t *testing.T) {
	score, err := ParseScoreText("2-1")
	if err != nil {
		t.Fatalf("parse score: %v", err)
	}
	if !score.Settled() {
		t.Fatal("expected settled score")
	}
	if *score.FullTime.Home != 2 || *score.FullTime.Away != 1 {
		t.Fatalf("unexpected full time: %+v", score.FullTime)
	}
	if score.Shootout != nil {
		t.Fatal("unexpected shootout line")
	}
	if score.Winner != WinnerHome {
		t.Fatalf("unexpected winner: %s", score.Winner)
	}
}

func TestParseScoreText_ShootoutDecidesLevelScore(t *testing.T) {
	score, err := ParseScoreText("1-1 (PK2-4)")
	if err != nil {
		t.Fatalf("parse score: %v", err)
	}
	if *score.FullTime.Home != 1 || *score.FullTime.Away != 1 {
		t.Fatalf("unexpected full time: %+v", score.FullTime)
	}
	if score.Shootout == nil || *score.Shootout.Home != 2 || *score.Shootout.Away != 4 {
		t.Fatalf("unexpected shootout: %+v", score.Shootout)
	}
	if score.Winner != WinnerAway {
		t.Fatalf("unexpected winner: %s", score.Winner)
	}
}

func TestParseScoreText_FullwidthParens(t *testing.T) {
	score, err := ParseScoreText("0-0（PK5-3）")
	if err != nil {
		t.Fatalf("parse score: %v", err)
	}
	if score.Winner != WinnerHome {
		t.Fatalf("unexpected winner: %s", score.Winner)
	}
}

func TestParseScoreText_LevelWithoutShootoutIsDraw(t *testing.T) {
	score, err := ParseScoreText("1-1")
	if err != nil {
		t.Fatalf("parse score: %v", err)
	}
	if score.Winner != WinnerDraw {
		t.Fatalf("unexpected winner: %s", score.Winner)
	}
}

func TestParseScoreText_EmptyIsUnsettled(t *testing.T) {
	score, err := ParseScoreText("")
	if err != nil {
		t.Fatalf("parse score: %v", err)
	}
	if score.Settled() || score.Winner != "" {
		t.Fatalf("expected unsettled score, got %+v", score)
	}
}

func TestParseScoreText_RejectsGarbage(t *testing.T) {
	if _, err := ParseScoreText("postponed"); err == nil {
		t.Fatal("expected error for unparseable score text")
	}
}

func TestDeriveWinner_Unsettled(t *testing.T) {
	if got := DeriveWinner(ScoreLine{}, nil); got != "" {
		t.Fatalf("expected undecided winner, got %q", got)
	}
}
