package metadata

import (
	"context"
	"regexp"
	"strings"

	"github.com/JustinTDCT/ingestarr/internal/mediaparse"
)

// Match is the catalog entry chosen for a record.
type Match struct {
	ID         string
	Title      string
	Year       *int
	PosterPath string
}

var nonAlnumPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// attempt is one ordered try in the match algorithm: a query string paired
// with an optional year constraint.
type attempt struct {
	query string
	year  *int
}

// BuildAttempts returns the ordered list of search attempts for a parsed
// title/year: (title, year) if year present, then (title, none), then a
// cleaned variant for short or non-alphanumeric titles.
func BuildAttempts(title string, year *int) []attempt {
	var attempts []attempt
	if year != nil {
		attempts = append(attempts, attempt{query: title, year: year})
	}
	attempts = append(attempts, attempt{query: title, year: nil})

	cleaned := nonAlnumPattern.ReplaceAllString(title, " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned != "" && (len(cleaned) <= 3 || cleaned != title) {
		attempts = append(attempts, attempt{query: cleaned, year: nil})
	}
	return attempts
}

// Match runs the 4-step algorithm from the component design: build ordered
// attempts, query the endpoint selected by kind, take the first non-empty
// result set, then prefer an exact year match over the most popular
// candidate.
func (c *Client) Match(ctx context.Context, title string, year *int, kind mediaparse.Kind) (*Match, bool) {
	for _, a := range BuildAttempts(title, year) {
		var candidates []Candidate
		switch kind {
		case mediaparse.KindMovie:
			candidates = c.SearchMovie(ctx, a.query, a.year)
		case mediaparse.KindTV:
			candidates = c.SearchTV(ctx, a.query, a.year)
		default:
			candidates = c.SearchMulti(ctx, a.query, a.year)
		}
		if len(candidates) == 0 {
			continue
		}

		chosen := candidates[0]
		if year != nil {
			for _, cand := range candidates {
				if cand.Year != nil && *cand.Year == *year {
					chosen = cand
					break
				}
			}
		}
		return &Match{ID: chosen.ID, Title: chosen.Title, Year: chosen.Year, PosterPath: chosen.PosterPath}, true
	}
	return nil, false
}
