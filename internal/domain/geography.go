package domain

// AreaType enumerates the primary geography units an AreaScope may target.
type AreaType string

const (
	AreaCounty   AreaType = "County"
	AreaDistrict AreaType = "District"
	AreaZipCode  AreaType = "ZipCode"
)

// SubAreaType enumerates the sub-county units. A sub-area is only valid when
// the enclosing scope is a county; NewAreaScope enforces this so an illegal
// combination is never representable.
type SubAreaType string

const (
	SubAreaPrecinct     SubAreaType = "Precinct"
	SubAreaMunicipality SubAreaType = "Municipality"
	SubAreaZipCode      SubAreaType = "ZipCode"
)

// BoundingBox is an axis-aligned longitude/latitude box.
type BoundingBox struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// SubArea narrows a county scope to one of its sub-units.
type SubArea struct {
	Type  SubAreaType
	Value string
}

// AreaScope matches voters by administrative area code rather than geometry.
type AreaScope struct {
	Type    AreaType
	Value   string
	SubArea *SubArea
}

// GeographyScope is a tagged variant: exactly one of Box or Area is set.
// Geometry predicates and area-code predicates are mutually exclusive paths
// and are never combined in one query.
type GeographyScope struct {
	Box  *BoundingBox
	Area *AreaScope
}

// NewBoundingBoxScope wraps a box in a GeographyScope.
func NewBoundingBoxScope(box BoundingBox) *GeographyScope {
	return &GeographyScope{Box: &box}
}

// NewAreaScope builds an area scope, rejecting a sub-area outside a county.
func NewAreaScope(areaType AreaType, value string, sub *SubArea) (*GeographyScope, error) {
	switch areaType {
	case AreaCounty, AreaDistrict, AreaZipCode:
	default:
		return nil, ErrValidation("invalid_area_type", "unsupported area type %q", areaType)
	}
	if sub != nil {
		if areaType != AreaCounty {
			return nil, ErrValidation("invalid_sub_area",
				"sub-area %q is not allowed with area type %q; sub-areas require a County scope", sub.Type, areaType)
		}
		switch sub.Type {
		case SubAreaPrecinct, SubAreaMunicipality, SubAreaZipCode:
		default:
			return nil, ErrValidation("invalid_sub_area_type", "unsupported sub-area type %q", sub.Type)
		}
	}
	return &GeographyScope{Area: &AreaScope{Type: areaType, Value: value, SubArea: sub}}, nil
}

// AreaField maps an area type to the voter column it matches against.
func (t AreaType) AreaField() VoterField {
	switch t {
	case AreaCounty:
		return FieldCountyName
	case AreaDistrict:
		return FieldStateHouseDistrict
	case AreaZipCode:
		return FieldResidenceZipcode
	}
	return ""
}

// SubAreaField maps a sub-area type to the voter column it matches against.
func (t SubAreaType) SubAreaField() VoterField {
	switch t {
	case SubAreaPrecinct:
		return FieldPrecinct
	case SubAreaMunicipality:
		return FieldMunicipality
	case SubAreaZipCode:
		return FieldResidenceZipcode
	}
	return ""
}
