package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peachstate/voterlens/internal/analytics"
	"github.com/peachstate/voterlens/internal/domain"
	"github.com/peachstate/voterlens/internal/export"
	"github.com/peachstate/voterlens/internal/repository"
)

type stubVoterRepo struct {
	voters  []domain.VoterRecord
	byRegNo map[string]domain.VoterRecord
}

func (s *stubVoterRepo) ListVoters(ctx context.Context, pred domain.CompiledPredicate, opts repository.ListOptions) ([]domain.VoterRecord, error) {
	return s.voters, nil
}

func (s *stubVoterRepo) GetByRegistrationNumber(ctx context.Context, registrationNumber string) (domain.VoterRecord, error) {
	v, ok := s.byRegNo[registrationNumber]
	if !ok {
		return domain.VoterRecord{}, domain.ErrNotFound("no voter with registration number %s", registrationNumber)
	}
	return v, nil
}

func (s *stubVoterRepo) ScalarAggregate(ctx context.Context, pred domain.CompiledPredicate, metric repository.Metric) (repository.AggregateResult, error) {
	score := 6.4
	return repository.AggregateResult{Value: &score, MatchedCount: 1234}, nil
}

func (s *stubVoterRepo) GroupedBreakdown(ctx context.Context, pred domain.CompiledPredicate, dimension domain.Dimension, electionDate time.Time) (domain.TurnoutReport, error) {
	return domain.TurnoutReport{
		BreakdownDimension: dimension,
		Rows: []domain.TurnoutRow{
			{DimensionValue: "F", TotalVoters: 10, VotedCount: 5, TurnoutPct: domain.TurnoutPct(5, 10)},
		},
	}, nil
}

func (s *stubVoterRepo) DistinctValues(ctx context.Context, field domain.VoterField, pred domain.CompiledPredicate, limit int) ([]string, error) {
	return []string{"DeKalb", "Fulton"}, nil
}

func newTestRouter(repo *stubVoterRepo) http.Handler {
	service := analytics.NewService(repo, nil)
	return NewRouter(service, export.NewService(), nil)
}

func doRequest(t *testing.T, router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestListVoters(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{voters: []domain.VoterRecord{
		{RegistrationNumber: "12345678", FirstName: "ADA", LastName: "LOVELACE", Status: "Active"},
	}})

	rec := doRequest(t, router, http.MethodGet, "/api/voters?race=WH,BH&county_name=Fulton", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Voters []Voter `json:"voters"`
		Count  int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "12345678", body.Voters[0].RegistrationNumber)
}

func TestListVotersRejectsUnknownParameter(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	rec := doRequest(t, router, http.MethodGet, "/api/voters?party=R", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_parameter", errorCode(t, rec))
}

func TestGetVoterRejectsMalformedRegistrationNumber(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	rec := doRequest(t, router, http.MethodGet, "/api/voters/123", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_registration_number", errorCode(t, rec))
}

func TestGetVoterNotFound(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{byRegNo: map[string]domain.VoterRecord{}})

	rec := doRequest(t, router, http.MethodGet, "/api/voters/99999999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestGetVoter(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{byRegNo: map[string]domain.VoterRecord{
		"12345678": {RegistrationNumber: "12345678", FirstName: "ADA", LastName: "LOVELACE", Status: "Active"},
	}})

	rec := doRequest(t, router, http.MethodGet, "/api/voters/12345678", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var voter Voter
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voter))
	assert.Equal(t, "ADA", voter.FirstName)
}

func TestParticipationScore(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	rec := doRequest(t, router, http.MethodGet, "/api/participation/score?county_name=Fulton", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.ParticipationScoreResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Score)
	assert.Equal(t, 6.4, *result.Score)
	assert.Equal(t, int64(1234), result.VoterCount)
}

func TestMapStatsRequiresBBox(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	rec := doRequest(t, router, http.MethodGet, "/api/map/stats?county_name=Fulton", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_bbox", errorCode(t, rec))
}

func TestMapStats(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	rec := doRequest(t, router, http.MethodGet, "/api/map/stats?bbox=-85,31,-84,32", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.ParticipationScoreResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Score)
}

func TestFieldValues(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	rec := doRequest(t, router, http.MethodGet, "/api/voters/fields?fields=county_name", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Fields map[string]analytics.FieldValuesResult `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Fields, "county_name")
	assert.Equal(t, []string{"DeKalb", "Fulton"}, body.Fields["county_name"].Values)
}

func TestTurnoutRejectsSubAreaOutsideCounty(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	body, err := json.Marshal(map[string]any{
		"geography": map[string]any{
			"areaType": "District", "areaValue": "42",
			"subAreaType": "Precinct", "subAreaValue": "01A",
		},
		"electionDate":     "2020-11-03",
		"reportDataPoints": []string{"Gender"},
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/api/turnout", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_sub_area", errorCode(t, rec))
}

func TestTurnout(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	body, err := json.Marshal(map[string]any{
		"geography":        map[string]any{"areaType": "County", "areaValue": "Fulton"},
		"electionDate":     "2020-11-03",
		"reportDataPoints": []string{"Gender"},
		"chartDataPoint":   "Gender",
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/api/turnout", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analytics.TurnoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Report, domain.DimensionGender)
	require.Len(t, resp.Chart, 1)
	assert.NotEmpty(t, resp.Metadata.RequestID)
}

func TestTurnoutExport(t *testing.T) {
	router := newTestRouter(&stubVoterRepo{})

	body, err := json.Marshal(map[string]any{
		"geography":        map[string]any{"areaType": "County", "areaValue": "Fulton"},
		"electionDate":     "2020-11-03",
		"reportDataPoints": []string{"Gender"},
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/api/turnout/export", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "turnout-")
	assert.NotEmpty(t, rec.Body.Bytes())
}
