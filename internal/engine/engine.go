package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tartampluch/go-uster-waste/internal/config"
)

// Pipeline runs one fetch, parse and summarize cycle for a location.
type Pipeline struct {
	Clock   Clock           // Interface for time mocking.
	Fetcher ScheduleFetcher // Interface for network abstraction.

	// MaxRows bounds the data rows read from the page (0 = config.DefaultMaxRows).
	MaxRows int

	// Limit caps the summary entries (0 = config.SummaryLimit).
	Limit int
}

// NewPipeline returns a Pipeline with the real clock, the HTTP fetcher for
// baseURL and the given row bound.
func NewPipeline(baseURL string, maxRows int) *Pipeline {
	return &Pipeline{
		Clock:   RealClock{},
		Fetcher: NewHTTPFetcher(baseURL),
		MaxRows: maxRows,
		Limit:   config.SummaryLimit,
	}
}

// Run executes the pipeline. Errors keep their taxonomy (see ErrorKind) so
// callers can decide how to present them.
func (p *Pipeline) Run(ctx context.Context, cfg FetchConfig) (Summary, error) {
	start := time.Now()
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompEngine),
		slog.String(config.LogKeyLocation, cfg.LocationID),
	)

	if p.Fetcher == nil {
		return Summary{}, errors.New(config.ErrFetcherMissing)
	}
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	// 1. Acquire the page
	page, err := p.Fetcher.Fetch(ctx, cfg)
	if err != nil {
		return Summary{}, err
	}

	// Check for cancellation before processing
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	// 2. Extract the rows
	entries, err := ParseScheduleBytes(page, p.MaxRows)
	if err != nil {
		return Summary{}, err
	}

	// 3. Order and cap
	limit := p.Limit
	if limit <= 0 {
		limit = config.SummaryLimit
	}
	summary := Summarize(entries, p.now(), limit)

	attrs := []any{
		slog.Int(config.LogKeyCount, len(summary.Entries)),
		slog.Int64(config.LogKeyDuration, time.Since(start).Milliseconds()),
	}
	if next, ok := summary.Next(); ok {
		attrs = append(attrs,
			slog.String(config.LogKeyNext, next.Type),
			slog.Int(config.LogKeyDays, next.DaysUntil))
	}
	log.Info(config.MsgParseSuccess, attrs...)

	return summary, nil
}

func (p *Pipeline) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}
