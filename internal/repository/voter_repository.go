package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/peachstate/voterlens/internal/cache"
	"github.com/peachstate/voterlens/internal/domain"
)

// Querier is the subset of pgxpool.Pool the repository needs. Narrowing the
// dependency keeps the repository testable without a live pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// aggregateColumns are the only columns ScalarAggregate may average over.
var aggregateColumns = map[domain.VoterField]struct{}{
	domain.FieldParticipationScore: {},
	domain.FieldBirthYear:          {},
}

type voterRepository struct {
	db     Querier
	schema string
	cache  *cache.QueryCache
}

// NewVoterRepository creates the Postgres-backed voter repository. The cache
// is optional; when set, aggregate and breakdown results are memoized by
// statement text. A blank schema name is a configuration error.
func NewVoterRepository(db Querier, schema string, queryCache *cache.QueryCache) (VoterRepository, error) {
	if strings.TrimSpace(schema) == "" {
		return nil, domain.ErrConfiguration("voter store schema name is required")
	}
	return &voterRepository{db: db, schema: schema, cache: queryCache}, nil
}

func (r *voterRepository) votersTable() string { return r.schema + ".voters" }

func (r *voterRepository) eventsTable() string { return r.schema + ".voting_events" }

func placeholder(idx int) string { return fmt.Sprintf("$%d", idx) }

// whereClause renders the predicate as a WHERE clause, empty when the
// predicate constrains nothing.
func whereClause(pred domain.CompiledPredicate) string {
	if pred.IsEmpty() {
		return ""
	}
	return " WHERE " + pred.Clause
}

func projectionColumns(p domain.Projection) []string {
	identity := []string{"registration_number", "first_name", "last_name", "status"}
	address := append(identity,
		"county_name", "residence_street_number", "residence_street_name",
		"residence_city", "residence_zipcode")
	switch p {
	case domain.ProjectionIdentity:
		return identity
	case domain.ProjectionAddress:
		return address
	default:
		return append(address,
			"birth_year", "gender", "race",
			"congressional_district", "state_senate_district", "state_house_district",
			"county_precinct", "municipality", "last_party_voted",
			"ST_X(geom)", "ST_Y(geom)", "participation_score")
	}
}

func (r *voterRepository) ListVoters(ctx context.Context, pred domain.CompiledPredicate, opts ListOptions) ([]domain.VoterRecord, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	cols := projectionColumns(opts.Projection)
	args := append([]any{}, pred.Params...)
	limitIdx := len(args) + 1
	args = append(args, opts.Limit, opts.Offset)

	stmt := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY last_name, first_name, registration_number LIMIT %s OFFSET %s",
		strings.Join(cols, ", "), r.votersTable(), whereClause(pred),
		placeholder(limitIdx), placeholder(limitIdx+1))

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		log.Printf("[DB] list voters failed: %v (clause %q)", err, pred.Clause)
		return nil, domain.ErrQueryExecution(err, "voter list query failed")
	}
	defer rows.Close()

	voters := make([]domain.VoterRecord, 0)
	for rows.Next() {
		v, err := scanVoter(rows, opts.Projection)
		if err != nil {
			return nil, domain.ErrQueryExecution(err, "voter list scan failed")
		}
		voters = append(voters, v)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[DB] list voters iteration failed: %v", err)
		return nil, domain.ErrQueryExecution(err, "voter list query failed")
	}
	return voters, nil
}

func scanVoter(row pgx.Row, p domain.Projection) (domain.VoterRecord, error) {
	var v domain.VoterRecord
	switch p {
	case domain.ProjectionIdentity:
		err := row.Scan(&v.RegistrationNumber, &v.FirstName, &v.LastName, &v.Status)
		return v, err
	case domain.ProjectionAddress:
		err := row.Scan(&v.RegistrationNumber, &v.FirstName, &v.LastName, &v.Status,
			&v.CountyName, &v.ResidenceStreetNumber, &v.ResidenceStreetName,
			&v.ResidenceCity, &v.ResidenceZipcode)
		return v, err
	default:
		err := row.Scan(&v.RegistrationNumber, &v.FirstName, &v.LastName, &v.Status,
			&v.CountyName, &v.ResidenceStreetNumber, &v.ResidenceStreetName,
			&v.ResidenceCity, &v.ResidenceZipcode,
			&v.BirthYear, &v.Gender, &v.Race,
			&v.CongressionalDistrict, &v.StateSenateDistrict, &v.StateHouseDistrict,
			&v.Precinct, &v.Municipality, &v.LastPartyVoted,
			&v.Longitude, &v.Latitude, &v.ParticipationScore)
		return v, err
	}
}

func (r *voterRepository) GetByRegistrationNumber(ctx context.Context, registrationNumber string) (domain.VoterRecord, error) {
	stmt := fmt.Sprintf(
		"SELECT %s FROM %s WHERE registration_number = $1",
		strings.Join(projectionColumns(domain.ProjectionFull), ", "), r.votersTable())

	v, err := scanVoter(r.db.QueryRow(ctx, stmt, registrationNumber), domain.ProjectionFull)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VoterRecord{}, domain.ErrNotFound("no voter with registration number %s", registrationNumber)
		}
		log.Printf("[DB] voter lookup failed: %v", err)
		return domain.VoterRecord{}, domain.ErrQueryExecution(err, "voter lookup failed")
	}

	history, err := r.participationHistory(ctx, registrationNumber)
	if err != nil {
		return domain.VoterRecord{}, err
	}
	v.ParticipationHistory = history
	return v, nil
}

func (r *voterRepository) participationHistory(ctx context.Context, registrationNumber string) ([]domain.VotingEvent, error) {
	stmt := fmt.Sprintf(
		"SELECT election_date, election_type, party, ballot_style FROM %s WHERE registration_number = $1 ORDER BY election_date DESC",
		r.eventsTable())

	rows, err := r.db.Query(ctx, stmt, registrationNumber)
	if err != nil {
		log.Printf("[DB] participation history failed: %v", err)
		return nil, domain.ErrQueryExecution(err, "participation history query failed")
	}
	defer rows.Close()

	events := make([]domain.VotingEvent, 0)
	for rows.Next() {
		var e domain.VotingEvent
		if err := rows.Scan(&e.ElectionDate, &e.ElectionType, &e.Party, &e.BallotStyle); err != nil {
			return nil, domain.ErrQueryExecution(err, "participation history scan failed")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrQueryExecution(err, "participation history query failed")
	}
	return events, nil
}

func (r *voterRepository) ScalarAggregate(ctx context.Context, pred domain.CompiledPredicate, metric Metric) (AggregateResult, error) {
	valueExpr := "NULL::float8"
	if metric.Kind == MetricAverage {
		if _, ok := aggregateColumns[metric.Column]; !ok {
			return AggregateResult{}, domain.ErrConfiguration("column %q is not aggregatable", metric.Column)
		}
		valueExpr = fmt.Sprintf("AVG(%s)", metric.Column)
	}

	stmt := fmt.Sprintf("SELECT COUNT(*), %s FROM %s%s", valueExpr, r.votersTable(), whereClause(pred))

	if r.cache != nil {
		if cached, ok := r.cache.Get(cache.Key(stmt, pred.Params)); ok {
			if result, ok := cached.(AggregateResult); ok {
				return result, nil
			}
		}
	}

	var count int64
	var value *float64
	if err := r.db.QueryRow(ctx, stmt, pred.Params...).Scan(&count, &value); err != nil {
		log.Printf("[DB] scalar aggregate failed: %v (clause %q)", err, pred.Clause)
		return AggregateResult{}, domain.ErrQueryExecution(err, "aggregate query failed")
	}

	result := AggregateResult{MatchedCount: count}
	if metric.Kind == MetricCount && count > 0 {
		v := float64(count)
		result.Value = &v
	}
	if metric.Kind == MetricAverage && count > 0 && value != nil {
		v := domain.Round1(*value)
		result.Value = &v
	}

	if r.cache != nil {
		r.cache.Put(cache.Key(stmt, pred.Params), result)
	}
	return result, nil
}

// breakdownDimensionExpr returns the SELECT expression bucketing a voter into
// the dimension's value. Age band bounds come from the fixed versioned band
// table, never from user input, so they are inlined as constants; the
// election year is bound through yearPlaceholder.
func breakdownDimensionExpr(dimension domain.Dimension, yearPlaceholder string) (string, error) {
	switch dimension {
	case domain.DimensionRace:
		return fmt.Sprintf("COALESCE(NULLIF(TRIM(race), ''), '%s')", domain.UnknownBucket), nil
	case domain.DimensionGender:
		return fmt.Sprintf("COALESCE(NULLIF(TRIM(gender), ''), '%s')", domain.UnknownBucket), nil
	case domain.DimensionAgeRange:
		var b strings.Builder
		fmt.Fprintf(&b, "CASE WHEN birth_year IS NULL THEN '%s'", domain.UnknownBucket)
		for _, band := range domain.AgeBands() {
			if band.Max == 0 {
				fmt.Fprintf(&b, " WHEN (%s - birth_year) >= %d THEN '%s'", yearPlaceholder, band.Min, band.Label)
			} else {
				fmt.Fprintf(&b, " WHEN (%s - birth_year) BETWEEN %d AND %d THEN '%s'",
					yearPlaceholder, band.Min, band.Max, band.Label)
			}
		}
		fmt.Fprintf(&b, " ELSE '%s' END", domain.UnknownBucket)
		return b.String(), nil
	}
	return "", domain.ErrConfiguration("unsupported breakdown dimension %q", dimension)
}

func (r *voterRepository) GroupedBreakdown(ctx context.Context, pred domain.CompiledPredicate, dimension domain.Dimension, electionDate time.Time) (domain.TurnoutReport, error) {
	args := append([]any{}, pred.Params...)
	dateIdx := len(args) + 1
	args = append(args, electionDate)

	yearPlaceholder := ""
	if dimension == domain.DimensionAgeRange {
		yearIdx := len(args) + 1
		args = append(args, electionDate.Year())
		yearPlaceholder = placeholder(yearIdx)
	}

	dimExpr, err := breakdownDimensionExpr(dimension, yearPlaceholder)
	if err != nil {
		return domain.TurnoutReport{}, err
	}

	stmt := fmt.Sprintf(
		"SELECT %s AS dimension_value, COUNT(*) AS total_voters, "+
			"COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM %s e WHERE e.registration_number = v.registration_number AND e.election_date = %s)) AS voted_count "+
			"FROM %s v%s GROUP BY 1 ORDER BY 1",
		dimExpr, r.eventsTable(), placeholder(dateIdx), r.votersTable(), whereClause(pred))

	if r.cache != nil {
		if cached, ok := r.cache.Get(cache.Key(stmt, args)); ok {
			if report, ok := cached.(domain.TurnoutReport); ok {
				return report, nil
			}
		}
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		log.Printf("[DB] grouped breakdown failed: %v (clause %q)", err, pred.Clause)
		return domain.TurnoutReport{}, domain.ErrQueryExecution(err, "breakdown query failed")
	}
	defer rows.Close()

	report := domain.TurnoutReport{BreakdownDimension: dimension}
	for rows.Next() {
		var row domain.TurnoutRow
		if err := rows.Scan(&row.DimensionValue, &row.TotalVoters, &row.VotedCount); err != nil {
			return domain.TurnoutReport{}, domain.ErrQueryExecution(err, "breakdown scan failed")
		}
		row.TurnoutPct = domain.TurnoutPct(row.VotedCount, row.TotalVoters)
		report.Rows = append(report.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.TurnoutReport{}, domain.ErrQueryExecution(err, "breakdown query failed")
	}

	if r.cache != nil {
		r.cache.Put(cache.Key(stmt, args), report)
	}
	return report, nil
}

func (r *voterRepository) DistinctValues(ctx context.Context, field domain.VoterField, pred domain.CompiledPredicate, limit int) ([]string, error) {
	if !domain.IsAllowedField(field) {
		return nil, domain.ErrConfiguration("field %q is not in the filter allow-list", field)
	}
	if limit <= 0 {
		limit = 200
	}

	col := string(field)
	args := append([]any{}, pred.Params...)
	limitIdx := len(args) + 1
	args = append(args, limit)

	where := fmt.Sprintf("%s IS NOT NULL AND %s <> ''", col, col)
	if !pred.IsEmpty() {
		where = pred.Clause + " AND " + where
	}

	stmt := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s ORDER BY %s LIMIT %s",
		col, r.votersTable(), where, col, placeholder(limitIdx))

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		log.Printf("[DB] distinct values failed for %s: %v", col, err)
		return nil, domain.ErrQueryExecution(err, "distinct value query failed")
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, domain.ErrQueryExecution(err, "distinct value scan failed")
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrQueryExecution(err, "distinct value query failed")
	}
	return values, nil
}
