// Package snapshot publishes the selected matchday windows as one JSON file.
// The file is replaced with a rename so readers never observe a half-written
// snapshot.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"github.com/lapra5/football-app/internal/domain/match"
	"github.com/lapra5/football-app/internal/platform/logging"
	"github.com/lapra5/football-app/internal/usecase"
)

type document struct {
	GeneratedAt time.Time               `json:"generatedAt"`
	Leagues     map[string]leagueWindow `json:"leagues"`
}

type leagueWindow struct {
	Previous *round `json:"previous,omitempty"`
	Current  *round `json:"current,omitempty"`
	Next     *round `json:"next,omitempty"`
}

type round struct {
	Matchday  int           `json:"matchday,omitempty"`
	WeekStart time.Time     `json:"weekStart"`
	Matches   []match.Match `json:"matches"`
}

type Writer struct {
	path   string
	logger *logging.Logger
	now    func() time.Time
}

func NewWriter(path string, logger *logging.Logger) *Writer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Writer{path: path, logger: logger, now: time.Now}
}

// WriteSnapshot encodes the windows and swaps them in atomically.
func (w *Writer) WriteSnapshot(ctx context.Context, windows map[string]usecase.Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := document{
		GeneratedAt: w.now().UTC(),
		Leagues:     make(map[string]leagueWindow, len(windows)),
	}
	for league, window := range windows {
		doc.Leagues[league] = leagueWindow{
			Previous: toRound(window.Previous),
			Current:  toRound(window.Current),
			Next:     toRound(window.Next),
		}
	}

	data, err := sonic.ConfigDefault.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		// Leave nothing half-visible on failure.
		_ = os.Remove(tmp)
		return fmt.Errorf("publish snapshot: %w", err)
	}

	w.logger.InfoContext(ctx, "snapshot published", "path", w.path, "leagues", len(doc.Leagues))
	return nil
}

func toRound(group *usecase.MatchGroup) *round {
	if group == nil {
		return nil
	}
	return &round{
		Matchday:  group.Matchday,
		WeekStart: group.WeekStart,
		Matches:   group.Matches,
	}
}
