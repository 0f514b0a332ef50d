package model

import (
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Criteria is the user-editable filter configuration. The pipeline snapshots
// it at sweep start; edits through the control surface apply to the next
// sweep, never to one in flight.
type Criteria struct {
	AreaMin           float64      `json:"area_min" yaml:"area_min" mapstructure:"area_min" validate:"gte=0"`
	AreaMax           float64      `json:"area_max" yaml:"area_max" mapstructure:"area_max" validate:"gtefield=AreaMin"`
	PriceMax          int64        `json:"price_max" yaml:"price_max" mapstructure:"price_max" validate:"gt=0"`
	ExcludeFirstFloor bool         `json:"exclude_first_floor" yaml:"exclude_first_floor" mapstructure:"exclude_first_floor"`
	ExcludeTopFloor   bool         `json:"exclude_top_floor" yaml:"exclude_top_floor" mapstructure:"exclude_top_floor"`
	DistrictAllowlist []string     `json:"district_allowlist,omitempty" yaml:"district_allowlist" mapstructure:"district_allowlist"`
	RenovationExclude []Renovation `json:"renovation_exclude,omitempty" yaml:"renovation_exclude" mapstructure:"renovation_exclude"`
	RoomsAllowlist    []int        `json:"rooms_allowlist,omitempty" yaml:"rooms_allowlist" mapstructure:"rooms_allowlist" validate:"dive,gte=0,lte=10"`

	// StrictUnknown treats unknown district/renovation as excluded wherever
	// an allow/exclude list references those fields. Default is permissive.
	StrictUnknown bool `json:"strict_unknown" yaml:"strict_unknown" mapstructure:"strict_unknown"`
}

var criteriaValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the criteria for internal consistency. A sweep must not
// start with invalid criteria.
func (c *Criteria) Validate() error {
	if err := criteriaValidator.Struct(c); err != nil {
		return eris.Wrap(err, "criteria: invalid")
	}
	return nil
}

// AllowsDistrict reports whether the allow-list admits the district.
func (c Criteria) AllowsDistrict(district string) bool {
	if len(c.DistrictAllowlist) == 0 {
		return true
	}
	if district == "" {
		return !c.StrictUnknown
	}
	return slices.Contains(c.DistrictAllowlist, district)
}

// AllowsRenovation reports whether the exclude-list admits the tier.
func (c Criteria) AllowsRenovation(r Renovation) bool {
	if len(c.RenovationExclude) == 0 {
		return true
	}
	if r == RenovationUnknown {
		return !c.StrictUnknown
	}
	return !slices.Contains(c.RenovationExclude, r)
}

// AllowsRooms reports whether the room-count allow-list admits the listing.
// An unknown room count passes; the list constrains only extracted values.
func (c Criteria) AllowsRooms(rooms int) bool {
	if len(c.RoomsAllowlist) == 0 || rooms == RoomsUnknown {
		return true
	}
	return slices.Contains(c.RoomsAllowlist, rooms)
}

// DefaultCriteria returns the stock search profile: 38-150 m², up to 100M,
// above the first floor.
func DefaultCriteria() Criteria {
	return Criteria{
		AreaMin:           38,
		AreaMax:           150,
		PriceMax:          100_000_000,
		ExcludeFirstFloor: true,
	}
}
