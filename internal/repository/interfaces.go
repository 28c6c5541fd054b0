package repository

import (
	"context"
	"time"

	"github.com/peachstate/voterlens/internal/domain"
)

// MetricKind selects the scalar aggregate shape.
type MetricKind string

const (
	MetricCount   MetricKind = "count"
	MetricAverage MetricKind = "average"
)

// Metric describes a scalar aggregate. Column is only consulted for
// MetricAverage and must belong to the aggregate column allow-list.
type Metric struct {
	Kind   MetricKind
	Column domain.VoterField
}

// AggregateResult is the outcome of a scalar aggregate. Value is nil when no
// row matched, never zero or NaN; averages are rounded to one decimal.
type AggregateResult struct {
	Value        *float64
	MatchedCount int64
}

// ListOptions controls row-list queries. Ordering is always explicit
// (last name, first name, registration number) to keep paging deterministic.
type ListOptions struct {
	Projection domain.Projection
	Limit      int
	Offset     int
}

// VoterRepository defines the read-only query operations against the voter
// store. All methods take a compiled predicate; an empty predicate scopes to
// the entire table.
type VoterRepository interface {
	ListVoters(ctx context.Context, pred domain.CompiledPredicate, opts ListOptions) ([]domain.VoterRecord, error)
	GetByRegistrationNumber(ctx context.Context, registrationNumber string) (domain.VoterRecord, error)
	ScalarAggregate(ctx context.Context, pred domain.CompiledPredicate, metric Metric) (AggregateResult, error)
	GroupedBreakdown(ctx context.Context, pred domain.CompiledPredicate, dimension domain.Dimension, electionDate time.Time) (domain.TurnoutReport, error)
	DistinctValues(ctx context.Context, field domain.VoterField, pred domain.CompiledPredicate, limit int) ([]string, error)
}

// CensusRepository resolves census metrics for geography units. A key with no
// match yields a nil map entry, not an error.
type CensusRepository interface {
	GetMetrics(ctx context.Context, keys []domain.CensusKey) (map[string]*domain.CensusMetrics, error)
}
