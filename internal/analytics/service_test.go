package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peachstate/voterlens/internal/domain"
	"github.com/peachstate/voterlens/internal/repository"
)

type fakeVoterRepo struct {
	breakdowns   map[domain.Dimension]domain.TurnoutReport
	breakdownErr map[domain.Dimension]error
	aggregate    repository.AggregateResult
	aggregateErr error
	lastPred     domain.CompiledPredicate
	distinct     map[domain.VoterField][]string
	distinctErr  map[domain.VoterField]error
	voters       map[string]domain.VoterRecord
}

func (f *fakeVoterRepo) ListVoters(ctx context.Context, pred domain.CompiledPredicate, opts repository.ListOptions) ([]domain.VoterRecord, error) {
	f.lastPred = pred
	return nil, nil
}

func (f *fakeVoterRepo) GetByRegistrationNumber(ctx context.Context, registrationNumber string) (domain.VoterRecord, error) {
	v, ok := f.voters[registrationNumber]
	if !ok {
		return domain.VoterRecord{}, domain.ErrNotFound("no voter with registration number %s", registrationNumber)
	}
	return v, nil
}

func (f *fakeVoterRepo) ScalarAggregate(ctx context.Context, pred domain.CompiledPredicate, metric repository.Metric) (repository.AggregateResult, error) {
	f.lastPred = pred
	if f.aggregateErr != nil {
		return repository.AggregateResult{}, f.aggregateErr
	}
	return f.aggregate, nil
}

func (f *fakeVoterRepo) GroupedBreakdown(ctx context.Context, pred domain.CompiledPredicate, dimension domain.Dimension, electionDate time.Time) (domain.TurnoutReport, error) {
	f.lastPred = pred
	if err, ok := f.breakdownErr[dimension]; ok {
		return domain.TurnoutReport{}, err
	}
	report, ok := f.breakdowns[dimension]
	if !ok {
		return domain.TurnoutReport{BreakdownDimension: dimension}, nil
	}
	return report, nil
}

func (f *fakeVoterRepo) DistinctValues(ctx context.Context, field domain.VoterField, pred domain.CompiledPredicate, limit int) ([]string, error) {
	if err, ok := f.distinctErr[field]; ok {
		return nil, err
	}
	return f.distinct[field], nil
}

type fakeCensusRepo struct {
	metrics map[string]*domain.CensusMetrics
	err     error
}

func (f *fakeCensusRepo) GetMetrics(ctx context.Context, keys []domain.CensusKey) (map[string]*domain.CensusMetrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[string]*domain.CensusMetrics, len(keys))
	for _, key := range keys {
		result[key.String()] = f.metrics[key.String()]
	}
	return result, nil
}

func genderReport() domain.TurnoutReport {
	return domain.TurnoutReport{
		BreakdownDimension: domain.DimensionGender,
		Rows: []domain.TurnoutRow{
			{DimensionValue: "F", TotalVoters: 60, VotedCount: 30, TurnoutPct: domain.TurnoutPct(30, 60)},
			{DimensionValue: "M", TotalVoters: 38, VotedCount: 19, TurnoutPct: domain.TurnoutPct(19, 38)},
			{DimensionValue: domain.UnknownBucket, TotalVoters: 2, VotedCount: 0, TurnoutPct: domain.TurnoutPct(0, 2)},
		},
	}
}

func turnoutRequest() domain.TurnoutRequest {
	chart := "Gender"
	return domain.TurnoutRequest{
		Geography:        domain.GeographyRequest{AreaType: "County", AreaValue: "Fulton"},
		ElectionDate:     "2020-11-03",
		ReportDataPoints: []string{"Gender", "Race"},
		ChartDataPoint:   &chart,
	}
}

func TestTurnoutReport(t *testing.T) {
	repo := &fakeVoterRepo{breakdowns: map[domain.Dimension]domain.TurnoutReport{
		domain.DimensionGender: genderReport(),
		domain.DimensionRace:   {BreakdownDimension: domain.DimensionRace},
	}}
	svc := NewService(repo, nil)

	resp, err := svc.Turnout(context.Background(), turnoutRequest())
	require.NoError(t, err)

	require.Contains(t, resp.Report, domain.DimensionGender)
	require.Contains(t, resp.Report, domain.DimensionRace)
	assert.Equal(t, int64(100), resp.Report[domain.DimensionGender].TotalVoters())

	require.Len(t, resp.Chart, 3)
	assert.Equal(t, "F", resp.Chart[0].DimensionValue)
	assert.Equal(t, 50.0, *resp.Chart[0].Value)

	assert.NotEmpty(t, resp.Metadata.RequestID)
	assert.False(t, resp.Metadata.GeneratedAt.IsZero())
	assert.Empty(t, resp.Metadata.Notes)

	// the compiled scope constrains by county
	assert.Contains(t, repo.lastPred.Clause, "county_name")
}

func TestTurnoutRejectsSubAreaOutsideCounty(t *testing.T) {
	svc := NewService(&fakeVoterRepo{}, nil)
	sub := "Precinct"
	subValue := "01A"
	req := turnoutRequest()
	req.Geography = domain.GeographyRequest{
		AreaType: "District", AreaValue: "42",
		SubAreaType: &sub, SubAreaValue: &subValue,
	}

	_, err := svc.Turnout(context.Background(), req)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestTurnoutRejectsMalformedDate(t *testing.T) {
	svc := NewService(&fakeVoterRepo{}, nil)
	req := turnoutRequest()
	req.ElectionDate = "11/03/2020"

	_, err := svc.Turnout(context.Background(), req)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "invalid_election_date", validation.Code)
}

func TestTurnoutRejectsUnknownDataPoint(t *testing.T) {
	svc := NewService(&fakeVoterRepo{}, nil)
	req := turnoutRequest()
	req.ReportDataPoints = []string{"Party"}
	req.ChartDataPoint = nil

	_, err := svc.Turnout(context.Background(), req)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestTurnoutChartPointMustBeRequested(t *testing.T) {
	svc := NewService(&fakeVoterRepo{}, nil)
	chart := "AgeRange"
	req := turnoutRequest()
	req.ChartDataPoint = &chart

	_, err := svc.Turnout(context.Background(), req)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "invalid_chart_point", validation.Code)
}

func TestTurnoutFailedDimensionDegrades(t *testing.T) {
	repo := &fakeVoterRepo{
		breakdowns:   map[domain.Dimension]domain.TurnoutReport{domain.DimensionGender: genderReport()},
		breakdownErr: map[domain.Dimension]error{domain.DimensionRace: errors.New("boom")},
	}
	svc := NewService(repo, nil)

	resp, err := svc.Turnout(context.Background(), turnoutRequest())
	require.NoError(t, err)

	assert.Contains(t, resp.Report, domain.DimensionGender)
	assert.NotContains(t, resp.Report, domain.DimensionRace)
	require.Len(t, resp.Metadata.Notes, 1)
	assert.Contains(t, resp.Metadata.Notes[0], "Race")
}

func TestTurnoutCensusMerge(t *testing.T) {
	pop := int64(1_060_000)
	census := &fakeCensusRepo{metrics: map[string]*domain.CensusMetrics{
		"county:Fulton": {TotalPopulation: &pop},
	}}
	repo := &fakeVoterRepo{breakdowns: map[domain.Dimension]domain.TurnoutReport{
		domain.DimensionGender: genderReport(),
		domain.DimensionRace:   {BreakdownDimension: domain.DimensionRace},
	}}
	svc := NewService(repo, census)

	req := turnoutRequest()
	req.IncludeCensusData = true

	resp, err := svc.Turnout(context.Background(), req)
	require.NoError(t, err)

	rows := resp.Report[domain.DimensionGender].Rows
	require.NotEmpty(t, rows)
	require.NotNil(t, rows[0].Census)
	assert.Equal(t, pop, *rows[0].Census.TotalPopulation)
}

func TestTurnoutCensusMergeDoesNotMutateStoredRows(t *testing.T) {
	// The fake returns the same report value on every call, sharing one Rows
	// backing array exactly like a store-level cache hit does. A census merge
	// must rebuild rows, not write through the shared slice.
	shared := genderReport()
	repo := &fakeVoterRepo{breakdowns: map[domain.Dimension]domain.TurnoutReport{
		domain.DimensionGender: shared,
	}}
	pop := int64(1_060_000)
	census := &fakeCensusRepo{metrics: map[string]*domain.CensusMetrics{
		"county:Fulton": {TotalPopulation: &pop},
	}}
	svc := NewService(repo, census)

	req := turnoutRequest()
	req.ReportDataPoints = []string{"Gender"}
	req.ChartDataPoint = nil
	req.IncludeCensusData = true

	first, err := svc.Turnout(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, first.Report[domain.DimensionGender].Rows[0].Census)

	for i, row := range shared.Rows {
		require.Nilf(t, row.Census, "merge leaked into the stored rows at index %d", i)
	}

	req.IncludeCensusData = false
	second, err := svc.Turnout(context.Background(), req)
	require.NoError(t, err)
	for i, row := range second.Report[domain.DimensionGender].Rows {
		require.Nilf(t, row.Census, "request without census data got merged rows at index %d", i)
	}
}

func TestTurnoutCensusMissingUnitKeepsRows(t *testing.T) {
	census := &fakeCensusRepo{metrics: map[string]*domain.CensusMetrics{}}
	repo := &fakeVoterRepo{breakdowns: map[domain.Dimension]domain.TurnoutReport{
		domain.DimensionGender: genderReport(),
	}}
	svc := NewService(repo, census)

	req := turnoutRequest()
	req.ReportDataPoints = []string{"Gender"}
	req.ChartDataPoint = nil
	req.IncludeCensusData = true

	resp, err := svc.Turnout(context.Background(), req)
	require.NoError(t, err)

	rows := resp.Report[domain.DimensionGender].Rows
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Nil(t, row.Census)
	}
	require.NotEmpty(t, resp.Metadata.Notes)
	assert.Contains(t, resp.Metadata.Notes[0], "no census match")
}

func TestParticipationScoreDefaultsToFullTable(t *testing.T) {
	score := 6.4
	repo := &fakeVoterRepo{aggregate: repository.AggregateResult{Value: &score, MatchedCount: 7_500_000}}
	svc := NewService(repo, nil)

	result, err := svc.ParticipationScore(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)

	assert.True(t, repo.lastPred.IsEmpty(), "no filters must average the full table")
	assert.Equal(t, 6.4, *result.Score)
	assert.Equal(t, int64(7_500_000), result.VoterCount)
}

func TestMapStatsScopesByGeometry(t *testing.T) {
	repo := &fakeVoterRepo{aggregate: repository.AggregateResult{MatchedCount: 0}}
	svc := NewService(repo, nil)

	box := domain.BoundingBox{XMin: -85, YMin: 31, XMax: -84, YMax: 32}
	result, err := svc.MapStats(context.Background(), box, nil)
	require.NoError(t, err)

	assert.Nil(t, result.Score, "score must be nil when no voter is in view")
	assert.Equal(t, int64(0), result.VoterCount)
	assert.True(t, strings.Contains(repo.lastPred.Clause, "ST_Intersects"))
}

func TestFieldValuesPartialFailure(t *testing.T) {
	repo := &fakeVoterRepo{
		distinct:    map[domain.VoterField][]string{domain.FieldCountyName: {"DeKalb", "Fulton"}},
		distinctErr: map[domain.VoterField]error{domain.FieldRace: errors.New("boom")},
	}
	svc := NewService(repo, nil)

	results, err := svc.FieldValues(context.Background(),
		[]domain.VoterField{domain.FieldCountyName, domain.FieldRace}, domain.FilterSpec{}, 50)
	require.NoError(t, err)

	require.True(t, results[domain.FieldCountyName].OK)
	assert.Equal(t, []string{"DeKalb", "Fulton"}, results[domain.FieldCountyName].Values)

	require.False(t, results[domain.FieldRace].OK)
	assert.Empty(t, results[domain.FieldRace].Values)
}

func TestFieldValuesRejectsUnlistedField(t *testing.T) {
	svc := NewService(&fakeVoterRepo{}, nil)
	_, err := svc.FieldValues(context.Background(), []domain.VoterField{"pg_shadow"}, domain.FilterSpec{}, 50)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestGetVoterNotFound(t *testing.T) {
	svc := NewService(&fakeVoterRepo{voters: map[string]domain.VoterRecord{}}, nil)

	_, err := svc.GetVoter(context.Background(), "12345678")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
