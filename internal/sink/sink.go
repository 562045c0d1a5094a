// Package sink writes the results of a run to files and databases.
package sink

import (
	"context"
	"errors"

	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
)

// Sink persists quote results.
type Sink interface {
	Write(ctx context.Context, results []models.QuoteResult) error
}

// ReportWriter is implemented by sinks that store more of a run than its
// quotes, such as abandoned combinations and run counters.
type ReportWriter interface {
	WriteReport(ctx context.Context, report *scraper.Report) error
}

// WriteReport hands the whole report to s when it can take it, and only the
// results otherwise.
func WriteReport(ctx context.Context, s Sink, report *scraper.Report) error {
	if rw, ok := s.(ReportWriter); ok {
		return rw.WriteReport(ctx, report)
	}
	return s.Write(ctx, report.Results)
}

// Multi writes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Write(ctx context.Context, results []models.QuoteResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) WriteReport(ctx context.Context, report *scraper.Report) error {
	var errs []error
	for _, s := range m {
		if err := WriteReport(ctx, s, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
