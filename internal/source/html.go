package source

import (
	"html"
	"regexp"
	"strings"
)

// Minimal tolerant table extraction. Schedule pages are server-rendered
// tables; pulling cell text row by row survives markup churn far better than
// anchored selectors, and the default extractors below only ever look at cell
// text shapes (dates, times, scores), never at classes or attributes.

var (
	trRegex  = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	tdRegex  = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]>`)
	tagRegex = regexp.MustCompile(`(?s)<[^>]*>`)

	dateCellRegex    = regexp.MustCompile(`^(?:\d{4}/)?\d{1,2}/\d{1,2}`)
	fullDateRegex    = regexp.MustCompile(`\d{4}/\d{1,2}/\d{1,2}`)
	timeCellRegex    = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	scoreCellRegex   = regexp.MustCompile(`^\d+\s*-\s*\d+`)
	sectionCellRegex = regexp.MustCompile(`第\s*\d+\s*節`)
)

// tableRows returns the cell texts of every table row on the page, tags
// stripped and whitespace collapsed.
func tableRows(page []byte) [][]string {
	rowMatches := trRegex.FindAllSubmatch(page, -1)
	out := make([][]string, 0, len(rowMatches))
	for _, rowMatch := range rowMatches {
		cellMatches := tdRegex.FindAllSubmatch(rowMatch[1], -1)
		if len(cellMatches) == 0 {
			continue
		}
		cells := make([]string, 0, len(cellMatches))
		for _, cellMatch := range cellMatches {
			cells = append(cells, cleanCellText(cellMatch[1]))
		}
		out = append(out, cells)
	}
	return out
}

func cleanCellText(raw []byte) string {
	text := tagRegex.ReplaceAllString(string(raw), " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

func findCell(cells []string, pattern *regexp.Regexp) (int, string) {
	for i, cell := range cells {
		if pattern.MatchString(cell) {
			return i, cell
		}
	}
	return -1, ""
}
