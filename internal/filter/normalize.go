// Package filter turns raw request parameters into typed filter specs and
// compiles those specs into parameterized SQL predicates.
package filter

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/peachstate/voterlens/internal/domain"
)

// paramFields maps allow-listed query parameter keys to voter fields. Any key
// outside this map (and the geography/paging keys) is rejected.
var paramFields = map[string]domain.VoterField{
	"registrationNumber":     domain.FieldRegistrationNumber,
	"county_name":            domain.FieldCountyName,
	"residence_city":         domain.FieldResidenceCity,
	"residence_street_name":  domain.FieldResidenceStreetName,
	"residence_zipcode":      domain.FieldResidenceZipcode,
	"congressional_district": domain.FieldCongressionalDistrict,
	"state_senate_district":  domain.FieldStateSenateDistrict,
	"state_house_district":   domain.FieldStateHouseDistrict,
	"gender":                 domain.FieldGender,
	"race":                   domain.FieldRace,
	"status":                 domain.FieldStatus,
	"last_party_voted":       domain.FieldLastPartyVoted,
}

const (
	paramBBox         = "bbox"
	paramAreaType     = "areaType"
	paramAreaValue    = "areaValue"
	paramSubAreaType  = "subAreaType"
	paramSubAreaValue = "subAreaValue"
	paramBirthYearMin = "birth_year_min"
	paramBirthYearMax = "birth_year_max"
)

// pagingKeys are accepted on every endpoint and carry no filter semantics.
var pagingKeys = map[string]struct{}{
	"limit":  {},
	"offset": {},
}

var registrationNumberPattern = regexp.MustCompile(`^\d{8}$`)

// FieldForParam resolves an allow-listed query parameter key to its field.
func FieldForParam(key string) (domain.VoterField, bool) {
	f, ok := paramFields[key]
	return f, ok
}

// ValidRegistrationNumber reports whether the value is exactly 8 digits.
func ValidRegistrationNumber(v string) bool {
	return registrationNumberPattern.MatchString(v)
}

// Normalize validates raw query parameters into a FilterSpec. It is pure and
// deterministic: criteria come out in canonical field order with sorted,
// deduplicated values, so semantically equal inputs yield structurally
// identical specs regardless of parameter order.
func Normalize(raw url.Values) (domain.FilterSpec, error) {
	for key := range raw {
		if _, ok := pagingKeys[key]; ok {
			continue
		}
		if _, ok := paramFields[key]; ok {
			continue
		}
		switch key {
		case paramBBox, paramAreaType, paramAreaValue, paramSubAreaType, paramSubAreaValue,
			paramBirthYearMin, paramBirthYearMax:
			continue
		}
		return domain.FilterSpec{}, domain.ErrValidation("unknown_parameter", "unsupported filter parameter %q", key)
	}

	var spec domain.FilterSpec

	// Field criteria, in the canonical allow-list order.
	byField := make(map[domain.VoterField][]string)
	for key, field := range paramFields {
		values := collectValues(raw[key])
		if len(values) == 0 {
			continue
		}
		if field == domain.FieldRegistrationNumber {
			for _, v := range values {
				if !registrationNumberPattern.MatchString(v) {
					return domain.FilterSpec{}, domain.ErrValidation("invalid_registration_number",
						"registration number %q must be exactly 8 digits", v)
				}
			}
		}
		byField[field] = values
	}

	for _, field := range domain.AllowedFields() {
		values, ok := byField[field]
		if !ok {
			continue
		}
		spec.Criteria = append(spec.Criteria, criterionFor(field, values))
	}

	rangeCrit, err := birthYearRange(raw)
	if err != nil {
		return domain.FilterSpec{}, err
	}
	if rangeCrit != nil {
		spec.Criteria = append(spec.Criteria, *rangeCrit)
	}

	scope, err := geographyScope(raw)
	if err != nil {
		return domain.FilterSpec{}, err
	}
	spec.Geography = scope

	return spec, nil
}

// collectValues flattens repeated keys and comma-separated lists, trims
// whitespace, deduplicates, and sorts. A present-but-empty parameter is kept
// as a single empty value: an explicit filter always constrains results.
func collectValues(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	values := make([]string, 0, len(raw))
	for _, entry := range raw {
		parts := strings.Split(entry, ",")
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values
}

func criterionFor(field domain.VoterField, values []string) domain.FilterCriterion {
	op := domain.OpEq
	if field.IsAddressLike() {
		op = domain.OpILike
	} else if len(values) > 1 {
		op = domain.OpIn
	}
	return domain.FilterCriterion{Field: field, Operator: op, Values: values}
}

func birthYearRange(raw url.Values) (*domain.FilterCriterion, error) {
	minRaw := strings.TrimSpace(raw.Get(paramBirthYearMin))
	maxRaw := strings.TrimSpace(raw.Get(paramBirthYearMax))
	if minRaw == "" && maxRaw == "" {
		return nil, nil
	}

	crit := domain.FilterCriterion{Field: domain.FieldBirthYear, Operator: domain.OpRange}
	if minRaw != "" {
		min, err := strconv.Atoi(minRaw)
		if err != nil {
			return nil, domain.ErrValidation("invalid_birth_year", "birth_year_min %q is not an integer", minRaw)
		}
		crit.Min = &min
	}
	if maxRaw != "" {
		max, err := strconv.Atoi(maxRaw)
		if err != nil {
			return nil, domain.ErrValidation("invalid_birth_year", "birth_year_max %q is not an integer", maxRaw)
		}
		crit.Max = &max
	}
	if crit.Min != nil && crit.Max != nil && *crit.Min > *crit.Max {
		return nil, domain.ErrValidation("invalid_birth_year", "birth_year_min exceeds birth_year_max")
	}
	return &crit, nil
}

func geographyScope(raw url.Values) (*domain.GeographyScope, error) {
	bboxRaw := strings.TrimSpace(raw.Get(paramBBox))
	areaTypeRaw := strings.TrimSpace(raw.Get(paramAreaType))

	if bboxRaw != "" && areaTypeRaw != "" {
		return nil, domain.ErrValidation("conflicting_geography", "bbox and areaType are mutually exclusive")
	}

	if bboxRaw != "" {
		box, err := ParseBoundingBox(bboxRaw)
		if err != nil {
			return nil, err
		}
		return domain.NewBoundingBoxScope(box), nil
	}

	if areaTypeRaw == "" {
		if strings.TrimSpace(raw.Get(paramAreaValue)) != "" ||
			strings.TrimSpace(raw.Get(paramSubAreaType)) != "" ||
			strings.TrimSpace(raw.Get(paramSubAreaValue)) != "" {
			return nil, domain.ErrValidation("missing_area_type", "areaType is required when area parameters are present")
		}
		return nil, nil
	}

	areaValue := strings.TrimSpace(raw.Get(paramAreaValue))
	if areaValue == "" {
		return nil, domain.ErrValidation("missing_area_value", "areaValue is required with areaType")
	}

	var sub *domain.SubArea
	subTypeRaw := strings.TrimSpace(raw.Get(paramSubAreaType))
	subValueRaw := strings.TrimSpace(raw.Get(paramSubAreaValue))
	if subTypeRaw != "" || subValueRaw != "" {
		if subTypeRaw == "" || subValueRaw == "" {
			return nil, domain.ErrValidation("incomplete_sub_area", "subAreaType and subAreaValue must be supplied together")
		}
		sub = &domain.SubArea{Type: domain.SubAreaType(subTypeRaw), Value: subValueRaw}
	}

	return domain.NewAreaScope(domain.AreaType(areaTypeRaw), areaValue, sub)
}

// ParseBoundingBox parses "xmin,ymin,xmax,ymax" into a BoundingBox.
func ParseBoundingBox(raw string) (domain.BoundingBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, domain.ErrValidation("invalid_bbox",
			"bbox %q must be 4 comma-separated numbers in xmin,ymin,xmax,ymax order", raw)
	}
	coords := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return domain.BoundingBox{}, domain.ErrValidation("invalid_bbox", "bbox coordinate %q is not numeric", part)
		}
		coords[i] = v
	}
	box := domain.BoundingBox{XMin: coords[0], YMin: coords[1], XMax: coords[2], YMax: coords[3]}
	if box.XMin >= box.XMax || box.YMin >= box.YMax {
		return domain.BoundingBox{}, domain.ErrValidation("invalid_bbox", "bbox %q has no area", raw)
	}
	return box, nil
}
