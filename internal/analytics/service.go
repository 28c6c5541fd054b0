// Package analytics shapes compiled filter predicates into turnout reports,
// chart series, and participation score aggregates.
package analytics

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/peachstate/voterlens/internal/censusloader"
	"github.com/peachstate/voterlens/internal/domain"
	"github.com/peachstate/voterlens/internal/filter"
	"github.com/peachstate/voterlens/internal/repository"
)

// Service orchestrates the aggregation engine. The census repository is
// optional; when absent, includeCensusData degrades to a metadata note.
type Service struct {
	voters repository.VoterRepository
	census repository.CensusRepository
}

func NewService(voters repository.VoterRepository, census repository.CensusRepository) *Service {
	return &Service{voters: voters, census: census}
}

// ParticipationScore averages the precomputed participation score over the
// filtered scope. An empty spec deliberately averages the full table.
func (s *Service) ParticipationScore(ctx context.Context, spec domain.FilterSpec) (domain.ParticipationScoreResult, error) {
	pred, err := filter.Compile(spec)
	if err != nil {
		return domain.ParticipationScoreResult{}, err
	}

	agg, err := s.voters.ScalarAggregate(ctx, pred, repository.Metric{
		Kind:   repository.MetricAverage,
		Column: domain.FieldParticipationScore,
	})
	if err != nil {
		return domain.ParticipationScoreResult{}, err
	}
	return domain.ParticipationScoreResult{Score: agg.Value, VoterCount: agg.MatchedCount}, nil
}

// MapStats computes the in-view score and voter count for a bounding box,
// combined with any additional filter criteria.
func (s *Service) MapStats(ctx context.Context, box domain.BoundingBox, criteria []domain.FilterCriterion) (domain.ParticipationScoreResult, error) {
	spec := domain.FilterSpec{Criteria: criteria, Geography: domain.NewBoundingBoxScope(box)}
	return s.ParticipationScore(ctx, spec)
}

// ReportMetadata accompanies every turnout response.
type ReportMetadata struct {
	RequestID         string                `json:"requestId"`
	RequestParameters domain.TurnoutRequest `json:"requestParameters"`
	GeneratedAt       time.Time             `json:"generatedAt"`
	Notes             []string              `json:"notes"`
}

// TurnoutResponse bundles per-dimension reports, the optional chart series,
// and metadata. A dimension whose breakdown failed is absent from Report and
// named in the metadata notes.
type TurnoutResponse struct {
	Report   map[domain.Dimension]domain.TurnoutReport `json:"report,omitempty"`
	Chart    []domain.ChartPoint                       `json:"chart,omitempty"`
	Metadata ReportMetadata                            `json:"metadata"`
}

// Turnout validates the request, runs one grouped breakdown per requested
// dimension concurrently, and merges census metrics when asked.
func (s *Service) Turnout(ctx context.Context, req domain.TurnoutRequest) (*TurnoutResponse, error) {
	electionDate, err := domain.ParseElectionDate(req.ElectionDate)
	if err != nil {
		return nil, err
	}

	if len(req.ReportDataPoints) == 0 {
		return nil, domain.ErrValidation("missing_data_points", "at least one report data point is required")
	}
	dimensions := make([]domain.Dimension, 0, len(req.ReportDataPoints))
	seen := make(map[domain.Dimension]struct{})
	for _, raw := range req.ReportDataPoints {
		dim, err := domain.ParseDimension(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[dim]; dup {
			continue
		}
		seen[dim] = struct{}{}
		dimensions = append(dimensions, dim)
	}

	var chartDim domain.Dimension
	if req.ChartDataPoint != nil {
		chartDim, err = domain.ParseDimension(*req.ChartDataPoint)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[chartDim]; !ok {
			return nil, domain.ErrValidation("invalid_chart_point",
				"chart data point %q must be one of the requested report data points", chartDim)
		}
	}

	scope, err := scopeFromRequest(req.Geography)
	if err != nil {
		return nil, err
	}

	pred, err := filter.Compile(domain.FilterSpec{Geography: scope})
	if err != nil {
		return nil, err
	}

	metadata := ReportMetadata{
		RequestID:         uuid.NewString(),
		RequestParameters: req,
		GeneratedAt:       time.Now().UTC(),
		Notes:             []string{},
	}

	// One breakdown per dimension, concurrently. A failed dimension degrades
	// to an absent slot instead of failing the whole report.
	reports := make([]domain.TurnoutReport, len(dimensions))
	failures := make([]error, len(dimensions))
	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range dimensions {
		g.Go(func() error {
			report, err := s.voters.GroupedBreakdown(gctx, pred, dim, electionDate)
			if err != nil {
				failures[i] = err
				return nil
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &TurnoutResponse{Report: make(map[domain.Dimension]domain.TurnoutReport)}
	for i, dim := range dimensions {
		if failures[i] != nil {
			log.Printf("[ANALYTICS] breakdown for %s failed: %v", dim, failures[i])
			metadata.Notes = append(metadata.Notes, fmt.Sprintf("breakdown for %s unavailable", dim))
			continue
		}
		resp.Report[dim] = reports[i]
	}

	if req.IncludeCensusData {
		s.mergeCensus(ctx, scope, resp, &metadata)
	}

	if req.ChartDataPoint != nil {
		if report, ok := resp.Report[chartDim]; ok {
			chart, err := report.ChartSeries("turnoutPct")
			if err != nil {
				return nil, err
			}
			resp.Chart = chart
		}
	}

	resp.Metadata = metadata
	return resp, nil
}

// mergeCensus attaches the scope's census metrics to every report row. A
// missing unit or an unavailable census source leaves rows untouched and is
// recorded in the notes. Rows are rebuilt, never written in place: the store
// may be serving the same backing array to other requests from its cache.
func (s *Service) mergeCensus(ctx context.Context, scope *domain.GeographyScope, resp *TurnoutResponse, metadata *ReportMetadata) {
	key, ok := domain.CensusKeyForScope(scope)
	if !ok {
		metadata.Notes = append(metadata.Notes, "census data not available for this geography")
		return
	}
	if s.census == nil {
		metadata.Notes = append(metadata.Notes, "census source not configured")
		return
	}

	metrics, err := s.lookupCensus(ctx, key)
	if err != nil {
		log.Printf("[ANALYTICS] census lookup for %s failed: %v", key, err)
		metadata.Notes = append(metadata.Notes, "census lookup failed")
		return
	}
	if metrics == nil {
		metadata.Notes = append(metadata.Notes, fmt.Sprintf("no census match for %s", key))
	}

	for dim, report := range resp.Report {
		rows := make([]domain.TurnoutRow, len(report.Rows))
		copy(rows, report.Rows)
		for i := range rows {
			rows[i].Census = metrics
		}
		report.Rows = rows
		resp.Report[dim] = report
	}
}

func (s *Service) lookupCensus(ctx context.Context, key domain.CensusKey) (*domain.CensusMetrics, error) {
	if loader := censusloader.FromContext(ctx); loader != nil {
		return loader.Load(ctx, key)
	}
	metrics, err := s.census.GetMetrics(ctx, []domain.CensusKey{key})
	if err != nil {
		return nil, err
	}
	return metrics[key.String()], nil
}

func scopeFromRequest(geo domain.GeographyRequest) (*domain.GeographyScope, error) {
	if geo.AreaType == "" {
		return nil, domain.ErrValidation("missing_area_type", "geography.areaType is required")
	}
	if geo.AreaValue == "" {
		return nil, domain.ErrValidation("missing_area_value", "geography.areaValue is required")
	}

	var sub *domain.SubArea
	if geo.SubAreaType != nil || geo.SubAreaValue != nil {
		if geo.SubAreaType == nil || geo.SubAreaValue == nil {
			return nil, domain.ErrValidation("incomplete_sub_area", "subAreaType and subAreaValue must be supplied together")
		}
		sub = &domain.SubArea{Type: domain.SubAreaType(*geo.SubAreaType), Value: *geo.SubAreaValue}
	}
	return domain.NewAreaScope(domain.AreaType(geo.AreaType), geo.AreaValue, sub)
}

// FieldValuesResult carries one field's enumeration and whether its lookup
// succeeded. Callers must not assume every requested field is present with
// values: a failed sub-lookup degrades to an empty slice.
type FieldValuesResult struct {
	Values []string `json:"values"`
	OK     bool     `json:"ok"`
}

// FieldValues enumerates distinct values for several fields concurrently.
// Sub-lookups that fail degrade to empty results rather than failing the
// whole response.
func (s *Service) FieldValues(ctx context.Context, fields []domain.VoterField, spec domain.FilterSpec, limit int) (map[domain.VoterField]FieldValuesResult, error) {
	for _, f := range fields {
		if !domain.IsAllowedField(f) {
			return nil, domain.ErrValidation("unknown_field", "unsupported lookup field %q", f)
		}
	}

	pred, err := filter.Compile(spec)
	if err != nil {
		return nil, err
	}

	results := make(map[domain.VoterField]FieldValuesResult, len(fields))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, field := range fields {
		g.Go(func() error {
			values, err := s.voters.DistinctValues(gctx, field, pred, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[ANALYTICS] distinct values for %s failed: %v", field, err)
				results[field] = FieldValuesResult{Values: []string{}, OK: false}
				return nil
			}
			sort.Strings(values)
			results[field] = FieldValuesResult{Values: values, OK: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ListVoters compiles the spec and returns the matching rows.
func (s *Service) ListVoters(ctx context.Context, spec domain.FilterSpec, opts repository.ListOptions) ([]domain.VoterRecord, error) {
	pred, err := filter.Compile(spec)
	if err != nil {
		return nil, err
	}
	return s.voters.ListVoters(ctx, pred, opts)
}

// GetVoter looks a voter up by 8-digit registration number. Absence is a
// NotFoundError, never an empty aggregate.
func (s *Service) GetVoter(ctx context.Context, registrationNumber string) (domain.VoterRecord, error) {
	return s.voters.GetByRegistrationNumber(ctx, registrationNumber)
}
