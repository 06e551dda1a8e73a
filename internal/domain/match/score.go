package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var scoreTextRegex = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)(?:\s*[（(]\s*PK\s*(\d+)\s*-\s*(\d+)\s*[）)])?$`)

// ParseScoreText parses site score text such as "2-1" or "1-1 (PK2-4)" into a
// Score with the winner derived. Empty text is not an error; it yields an
// unsettled score.
func ParseScoreText(text string) (Score, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return Score{}, nil
	}

	parts := scoreTextRegex.FindStringSubmatch(text)
	if parts == nil {
		return Score{}, fmt.Errorf("unrecognized score text %q", text)
	}

	home, err := strconv.Atoi(parts[1])
	if err != nil {
		return Score{}, fmt.Errorf("invalid home score in %q: %w", text, err)
	}
	away, err := strconv.Atoi(parts[2])
	if err != nil {
		return Score{}, fmt.Errorf("invalid away score in %q: %w", text, err)
	}

	score := Score{FullTime: ScoreLine{Home: &home, Away: &away}}
	if parts[3] != "" {
		pkHome, err := strconv.Atoi(parts[3])
		if err != nil {
			return Score{}, fmt.Errorf("invalid shootout home score in %q: %w", text, err)
		}
		pkAway, err := strconv.Atoi(parts[4])
		if err != nil {
			return Score{}, fmt.Errorf("invalid shootout away score in %q: %w", text, err)
		}
		score.Shootout = &ScoreLine{Home: &pkHome, Away: &pkAway}
	}

	score.Winner = DeriveWinner(score.FullTime, score.Shootout)
	return score, nil
}

// DeriveWinner applies the decision order: regular time first; a level score
// with a shootout present defers to the shootout; a level score without one is
// a draw. An unsettled score stays undecided.
func DeriveWinner(fullTime ScoreLine, shootout *ScoreLine) string {
	if !fullTime.Concrete() {
		return ""
	}

	switch {
	case *fullTime.Home > *fullTime.Away:
		return WinnerHome
	case *fullTime.Home < *fullTime.Away:
		return WinnerAway
	}

	if shootout != nil && shootout.Concrete() {
		switch {
		case *shootout.Home > *shootout.Away:
			return WinnerHome
		case *shootout.Home < *shootout.Away:
			return WinnerAway
		}
	}

	return WinnerDraw
}
