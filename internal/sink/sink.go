// Package sink defines the persistence backends fed from each monitoring
// cycle. Sinks are independent failure domains: the same logical records go
// to every sink, and one sink failing must not block the others.
package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/pricewatch/record"
)

// Sink receives the records produced by one cycle. Implementations absorb
// their own failures where possible; returned errors are for logging, the
// cycle never aborts on them.
type Sink interface {
	Name() string
	RecordPrices(ctx context.Context, prices []record.PriceObservation) error
	RecordChanges(ctx context.Context, changes []record.ChangeRecord) error
	RecordStats(ctx context.Context, stats record.CycleStats) error
	RecordPage(ctx context.Context, page record.PageFetchResult, markup string) error
	Close() error
}

// Router fans records out to all configured sinks. One sink's error is
// logged and does not block the others; the first error encountered is
// returned for observability only.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Name() string { return "router" }

func (r *Router) RecordPrices(ctx context.Context, prices []record.PriceObservation) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.RecordPrices(ctx, prices); err != nil {
			r.logger.Warn("sink: record prices failed", "sink", s.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) RecordChanges(ctx context.Context, changes []record.ChangeRecord) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.RecordChanges(ctx, changes); err != nil {
			r.logger.Warn("sink: record changes failed", "sink", s.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) RecordStats(ctx context.Context, stats record.CycleStats) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.RecordStats(ctx, stats); err != nil {
			r.logger.Warn("sink: record stats failed", "sink", s.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) RecordPage(ctx context.Context, page record.PageFetchResult, markup string) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.RecordPage(ctx, page, markup); err != nil {
			r.logger.Warn("sink: record page failed", "sink", s.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close closes all sinks, returning the first error.
func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
