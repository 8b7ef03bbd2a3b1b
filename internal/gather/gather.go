// Package gather defines the interface shared by bar download jobs.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the download. It returns when done or when ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Years splits r into consecutive sub-ranges that never cross a UTC
// calendar-year boundary. End is exclusive.
func (r DateRange) Years() []DateRange {
	var out []DateRange
	for start := r.Start.UTC(); start.Before(r.End); {
		next := time.Date(start.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
		end := next
		if r.End.Before(end) {
			end = r.End
		}
		out = append(out, DateRange{Start: start, End: end})
		start = next
	}
	return out
}
