package domain

import "time"

// VoterField enumerates the voter table columns that filters may reference.
// The closed set is the primary injection defense: a column name that is not
// one of these constants can never reach generated SQL.
type VoterField string

const (
	FieldRegistrationNumber    VoterField = "registration_number"
	FieldCountyName            VoterField = "county_name"
	FieldResidenceCity         VoterField = "residence_city"
	FieldResidenceStreetName   VoterField = "residence_street_name"
	FieldResidenceZipcode      VoterField = "residence_zipcode"
	FieldCongressionalDistrict VoterField = "congressional_district"
	FieldStateSenateDistrict   VoterField = "state_senate_district"
	FieldStateHouseDistrict    VoterField = "state_house_district"
	FieldPrecinct              VoterField = "county_precinct"
	FieldMunicipality          VoterField = "municipality"
	FieldGender                VoterField = "gender"
	FieldRace                  VoterField = "race"
	FieldStatus                VoterField = "status"
	FieldLastPartyVoted        VoterField = "last_party_voted"
	FieldBirthYear             VoterField = "birth_year"

	// FieldParticipationScore is aggregate-only: it can be averaged but is
	// deliberately absent from the filter allow-list.
	FieldParticipationScore VoterField = "participation_score"
)

// allowedFields is the allow-list consulted by IsAllowedField. Order matters:
// the normalizer emits criteria in this order so that semantically equal raw
// inputs always produce structurally identical specs.
var allowedFields = []VoterField{
	FieldRegistrationNumber,
	FieldCountyName,
	FieldResidenceCity,
	FieldResidenceStreetName,
	FieldResidenceZipcode,
	FieldCongressionalDistrict,
	FieldStateSenateDistrict,
	FieldStateHouseDistrict,
	FieldPrecinct,
	FieldMunicipality,
	FieldGender,
	FieldRace,
	FieldStatus,
	FieldLastPartyVoted,
	FieldBirthYear,
}

// AllowedFields returns the allow-listed fields in canonical order.
func AllowedFields() []VoterField {
	out := make([]VoterField, len(allowedFields))
	copy(out, allowedFields)
	return out
}

// IsAllowedField reports whether f belongs to the closed field set.
func IsAllowedField(f VoterField) bool {
	for _, a := range allowedFields {
		if a == f {
			return true
		}
	}
	return false
}

// IsAddressLike reports whether the field uses fuzzy ILIKE matching instead
// of case-insensitive exact matching.
func (f VoterField) IsAddressLike() bool {
	return f == FieldResidenceCity || f == FieldResidenceStreetName || f == FieldMunicipality
}

// VotingEvent is one entry in a voter's participation history.
type VotingEvent struct {
	ElectionDate time.Time
	ElectionType string
	Party        string
	BallotStyle  string
}

// VoterRecord is a read-only projection of the voter table. Endpoints select
// a subset of these columns, never the full row.
type VoterRecord struct {
	RegistrationNumber    string
	FirstName             string
	LastName              string
	BirthYear             *int
	Gender                string
	Race                  string
	Status                string
	CountyName            string
	ResidenceStreetNumber string
	ResidenceStreetName   string
	ResidenceCity         string
	ResidenceZipcode      string
	CongressionalDistrict string
	StateSenateDistrict   string
	StateHouseDistrict    string
	Precinct              string
	Municipality          string
	LastPartyVoted        string
	Longitude             *float64
	Latitude              *float64
	ParticipationScore    *float64
	ParticipationHistory  []VotingEvent
}

// Projection names a fixed set of columns for list queries.
type Projection string

const (
	// ProjectionIdentity selects name, registration number, and status.
	ProjectionIdentity Projection = "identity"
	// ProjectionAddress adds the residence address columns.
	ProjectionAddress Projection = "address"
	// ProjectionFull selects every column VoterRecord carries except the
	// participation history, which is always fetched separately.
	ProjectionFull Projection = "full"
)
