package service

import (
	"context"
	"fmt"
	"time"
)

// SequenceSource hands out per-day counters that are never reused
type SequenceSource interface {
	NextSequence(ctx context.Context, day string) (int64, error)
}

// IDGenerator builds complaint ids of the form PREFIX + YYMMDD + sequence
type IDGenerator struct {
	prefix   string
	location *time.Location
	source   SequenceSource
}

// NewIDGenerator creates a generator. The calendar day is taken in loc
// (UTC when nil).
func NewIDGenerator(prefix string, loc *time.Location, source SequenceSource) *IDGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &IDGenerator{prefix: prefix, location: loc, source: source}
}

// DayKey returns the YYMMDD key of t in the generator's timezone
func (g *IDGenerator) DayKey(t time.Time) string {
	return t.In(g.location).Format("060102")
}

// Next allocates the next id for the day containing now
func (g *IDGenerator) Next(ctx context.Context, now time.Time) (string, error) {
	day := g.DayKey(now)
	seq, err := g.source.NextSequence(ctx, day)
	if err != nil {
		return "", fmt.Errorf("failed to allocate complaint sequence: %w", err)
	}
	return FormatComplaintID(g.prefix, day, seq), nil
}

// FormatComplaintID zero-pads the sequence to four digits; longer
// sequences simply widen the id.
func FormatComplaintID(prefix, day string, seq int64) string {
	return fmt.Sprintf("%s%s%04d", prefix, day, seq)
}
