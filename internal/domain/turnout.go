package domain

import (
	"math"
	"time"
)

// Dimension enumerates the breakdown dimensions a turnout report supports.
type Dimension string

const (
	DimensionRace     Dimension = "Race"
	DimensionGender   Dimension = "Gender"
	DimensionAgeRange Dimension = "AgeRange"
)

// ParseDimension validates a raw report data point.
func ParseDimension(raw string) (Dimension, error) {
	switch Dimension(raw) {
	case DimensionRace, DimensionGender, DimensionAgeRange:
		return Dimension(raw), nil
	}
	return "", ErrValidation("invalid_data_point", "unsupported report data point %q", raw)
}

// UnknownBucket labels rows whose dimension value is null or blank. Keeping
// them as an explicit row means totals always reconcile with the scope count.
const UnknownBucket = "Unknown"

// AgeBand is one fixed age bracket. Max of zero means open-ended.
type AgeBand struct {
	Label string
	Min   int
	Max   int
}

// ageBands is the versioned band table. Not user-configurable.
var ageBands = []AgeBand{
	{Label: "18-24", Min: 18, Max: 24},
	{Label: "25-34", Min: 25, Max: 34},
	{Label: "35-44", Min: 35, Max: 44},
	{Label: "45-54", Min: 45, Max: 54},
	{Label: "55-64", Min: 55, Max: 64},
	{Label: "65-74", Min: 65, Max: 74},
	{Label: "75+", Min: 75, Max: 0},
}

// AgeBands returns the fixed band table in ascending order.
func AgeBands() []AgeBand {
	out := make([]AgeBand, len(ageBands))
	copy(out, ageBands)
	return out
}

// AgeBandFor buckets an age into its band label, or UnknownBucket when the
// age is below the youngest band.
func AgeBandFor(age int) string {
	for _, b := range ageBands {
		if age >= b.Min && (b.Max == 0 || age <= b.Max) {
			return b.Label
		}
	}
	return UnknownBucket
}

// TurnoutRow is one dimension value within a turnout report.
type TurnoutRow struct {
	DimensionValue string         `json:"dimensionValue"`
	TotalVoters    int64          `json:"totalVoters"`
	VotedCount     int64          `json:"votedCount"`
	TurnoutPct     *float64       `json:"turnoutPct"`
	Census         *CensusMetrics `json:"census,omitempty"`
}

// TurnoutReport is a grouped breakdown of turnout for one dimension.
// Invariant: the TotalVoters sum across rows equals the voter count of the
// report's scope.
type TurnoutReport struct {
	BreakdownDimension Dimension    `json:"breakdownDimension"`
	Rows               []TurnoutRow `json:"rows"`
}

// TotalVoters sums the per-row totals.
func (r TurnoutReport) TotalVoters() int64 {
	var total int64
	for _, row := range r.Rows {
		total += row.TotalVoters
	}
	return total
}

// ChartPoint is one entry of a chart-ready series.
type ChartPoint struct {
	DimensionValue string   `json:"dimensionValue"`
	Value          *float64 `json:"value"`
}

// ChartSeries derives a single-column series from a report. Supported columns
// are "totalVoters", "votedCount", and "turnoutPct"; anything else is a
// configuration error so a misspelled column can never chart the wrong metric.
func (r TurnoutReport) ChartSeries(column string) ([]ChartPoint, error) {
	points := make([]ChartPoint, len(r.Rows))
	for i, row := range r.Rows {
		p := ChartPoint{DimensionValue: row.DimensionValue}
		switch column {
		case "totalVoters":
			v := float64(row.TotalVoters)
			p.Value = &v
		case "votedCount":
			v := float64(row.VotedCount)
			p.Value = &v
		case "turnoutPct":
			p.Value = row.TurnoutPct
		default:
			return nil, ErrConfiguration("unsupported chart column %q", column)
		}
		points[i] = p
	}
	return points, nil
}

// ParticipationScoreResult is the scalar response for score aggregation.
// Score is nil when no matched voter carries a score.
type ParticipationScoreResult struct {
	Score      *float64 `json:"score"`
	VoterCount int64    `json:"voterCount"`
}

// TurnoutRequest is the grouped-breakdown request body.
type TurnoutRequest struct {
	Geography         GeographyRequest `json:"geography"`
	ElectionDate      string           `json:"electionDate"`
	ReportDataPoints  []string         `json:"reportDataPoints"`
	ChartDataPoint    *string          `json:"chartDataPoint"`
	IncludeCensusData bool             `json:"includeCensusData"`
}

// GeographyRequest is the raw geography block of a turnout request.
type GeographyRequest struct {
	AreaType     string  `json:"areaType"`
	AreaValue    string  `json:"areaValue"`
	SubAreaType  *string `json:"subAreaType"`
	SubAreaValue *string `json:"subAreaValue"`
}

// ParseElectionDate validates the YYYY-MM-DD election date.
func ParseElectionDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, ErrValidation("invalid_election_date", "malformed election date %q, want YYYY-MM-DD", raw)
	}
	return t, nil
}

// Round1 rounds to one decimal, half away from zero. Every percentage and
// average in the system goes through this single helper so endpoints cannot
// drift apart on rounding.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// TurnoutPct computes the rounded percentage, nil when total is zero.
func TurnoutPct(voted, total int64) *float64 {
	if total == 0 {
		return nil
	}
	pct := Round1(float64(voted) / float64(total) * 100)
	return &pct
}
