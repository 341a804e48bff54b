package search

import (
	"strings"
	"time"

	"github.com/archivista/knowledge-pipeline/internal/store"
)

// recencyPhrases maps literal query phrases to lower-bound offsets from
// now. Order matters: the first match wins.
var recencyPhrases = []struct {
	phrase string
	offset time.Duration
}{
	{"last week", -7 * 24 * time.Hour},
	{"past week", -7 * 24 * time.Hour},
	{"yesterday", -24 * time.Hour},
	{"last month", -30 * 24 * time.Hour},
	{"past month", -30 * 24 * time.Hour},
	{"last 24 hours", -24 * time.Hour},
}

// ParseTemporalIntent detects a recency phrase in the query and returns
// the implied start bound, or nil when no phrase matches.
func ParseTemporalIntent(query string, now time.Time) *time.Time {
	lower := strings.ToLower(query)
	for _, p := range recencyPhrases {
		if strings.Contains(lower, p.phrase) {
			t := now.Add(p.offset)
			return &t
		}
	}
	return nil
}

// WithTemporalIntent fills the filters' start bound from the query's
// recency phrasing. An explicit caller-supplied start date takes
// precedence and suppresses inference entirely.
func WithTemporalIntent(query string, f store.SearchFilters, now time.Time) store.SearchFilters {
	if f.StartDate != nil {
		return f
	}
	f.StartDate = ParseTemporalIntent(query, now)
	return f
}
