package domain

// CensusGeographyKind names the census unit a geography scope resolves to.
type CensusGeographyKind string

const (
	CensusCounty   CensusGeographyKind = "county"
	CensusZCTA     CensusGeographyKind = "zcta"
	CensusDistrict CensusGeographyKind = "district"
)

// CensusKey identifies one census geography unit for metric lookup.
type CensusKey struct {
	Kind  CensusGeographyKind
	Value string
}

// String renders the key in "kind:value" form, used as the dataloader key.
func (k CensusKey) String() string { return string(k.Kind) + ":" + k.Value }

// CensusMetrics holds the externally-supplied census figures merged into
// turnout report rows. Pointer fields stay nil when the unit has no match.
type CensusMetrics struct {
	TotalPopulation       *int64   `json:"totalPopulation"`
	VotingAgePop          *int64   `json:"votingAgePopulation"`
	MedianHouseholdIncome *int64   `json:"medianHouseholdIncome"`
	MedianAge             *float64 `json:"medianAge"`
}

// CensusKeyForScope resolves an area scope to its census lookup key. Bounding
// boxes have no census unit and resolve to nothing.
func CensusKeyForScope(scope *GeographyScope) (CensusKey, bool) {
	if scope == nil || scope.Area == nil {
		return CensusKey{}, false
	}
	switch scope.Area.Type {
	case AreaCounty:
		return CensusKey{Kind: CensusCounty, Value: scope.Area.Value}, true
	case AreaZipCode:
		return CensusKey{Kind: CensusZCTA, Value: scope.Area.Value}, true
	case AreaDistrict:
		return CensusKey{Kind: CensusDistrict, Value: scope.Area.Value}, true
	}
	return CensusKey{}, false
}
