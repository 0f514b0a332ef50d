// Package filter decides whether a candidate listing satisfies a criteria
// set. Decisions are pure: same listing and criteria, same verdict.
package filter

import (
	"github.com/steinik-group/rentscout/internal/model"
)

// Rejection reasons, reported with every negative verdict for sweep stats
// and debugging.
const (
	ReasonAreaBelowMin   = "area_below_min"
	ReasonAreaAboveMax   = "area_above_max"
	ReasonAreaUnknown    = "area_unknown"
	ReasonPriceAboveMax  = "price_above_max"
	ReasonFirstFloor     = "first_floor"
	ReasonTopFloor       = "top_floor"
	ReasonFloorUnknown   = "floor_unknown"
	ReasonDistrict       = "district_not_allowed"
	ReasonRenovation     = "renovation_excluded"
	ReasonRooms          = "rooms_not_allowed"
	ReasonAccepted       = ""
)

// Accept reports whether the listing passes the criteria, and the first
// rejection reason when it does not. Unknown categorical fields pass unless
// the criteria demand strict knowledge.
func Accept(l *model.CandidateListing, c *model.Criteria) (bool, string) {
	if l.AreaTotal <= 0 {
		if c.StrictUnknown {
			return false, ReasonAreaUnknown
		}
	} else {
		if c.AreaMin > 0 && l.AreaTotal < c.AreaMin {
			return false, ReasonAreaBelowMin
		}
		if c.AreaMax > 0 && l.AreaTotal > c.AreaMax {
			return false, ReasonAreaAboveMax
		}
	}

	if c.PriceMax > 0 && l.Price > c.PriceMax {
		return false, ReasonPriceAboveMax
	}

	if l.Floor == 0 {
		if c.StrictUnknown && (c.ExcludeFirstFloor || c.ExcludeTopFloor) {
			return false, ReasonFloorUnknown
		}
	} else {
		if c.ExcludeFirstFloor && l.Floor == 1 {
			return false, ReasonFirstFloor
		}
		if c.ExcludeTopFloor && l.FloorTotal > 0 && l.Floor == l.FloorTotal {
			return false, ReasonTopFloor
		}
	}

	if !c.AllowsDistrict(l.District) {
		return false, ReasonDistrict
	}
	if !c.AllowsRenovation(l.Renovation) {
		return false, ReasonRenovation
	}
	if !c.AllowsRooms(l.Rooms) {
		return false, ReasonRooms
	}

	return true, ReasonAccepted
}
