package repository

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/peachstate/voterlens/internal/domain"
)

type censusRepository struct {
	db     Querier
	schema string
}

// NewCensusRepository creates the census metrics lookup backed by the
// census_metrics table. Rows are loaded by an offline enrichment job.
func NewCensusRepository(db Querier, schema string) (CensusRepository, error) {
	if strings.TrimSpace(schema) == "" {
		return nil, domain.ErrConfiguration("census store schema name is required")
	}
	return &censusRepository{db: db, schema: schema}, nil
}

func (r *censusRepository) GetMetrics(ctx context.Context, keys []domain.CensusKey) (map[string]*domain.CensusMetrics, error) {
	result := make(map[string]*domain.CensusMetrics, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	conditions := make([]string, 0, len(keys))
	args := make([]any, 0, 2*len(keys))
	requested := make(map[string]domain.CensusKey, len(keys))
	for _, key := range keys {
		// Units with no census match stay nil in the result map.
		result[key.String()] = nil
		requested[string(key.Kind)+":"+strings.ToUpper(key.Value)] = key
		kindIdx := len(args) + 1
		args = append(args, string(key.Kind), key.Value)
		conditions = append(conditions,
			fmt.Sprintf("(geography_kind = $%d AND UPPER(geography_value) = UPPER($%d))", kindIdx, kindIdx+1))
	}

	stmt := fmt.Sprintf(
		"SELECT geography_kind, geography_value, total_population, voting_age_population, median_household_income, median_age "+
			"FROM %s.census_metrics WHERE %s",
		r.schema, strings.Join(conditions, " OR "))

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		log.Printf("[DB] census lookup failed: %v", err)
		return nil, domain.ErrQueryExecution(err, "census lookup failed")
	}
	defer rows.Close()

	for rows.Next() {
		var kind, value string
		m := &domain.CensusMetrics{}
		if err := rows.Scan(&kind, &value, &m.TotalPopulation, &m.VotingAgePop, &m.MedianHouseholdIncome, &m.MedianAge); err != nil {
			return nil, domain.ErrQueryExecution(err, "census scan failed")
		}
		if key, ok := requested[kind+":"+strings.ToUpper(value)]; ok {
			result[key.String()] = m
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrQueryExecution(err, "census lookup failed")
	}
	return result, nil
}
