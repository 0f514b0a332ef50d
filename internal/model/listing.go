package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// Renovation is the renovation tier extracted from listing text.
type Renovation string

const (
	RenovationUnknown  Renovation = ""
	RenovationDesigner Renovation = "designer"
	RenovationEuro     Renovation = "euro"
	RenovationCosmetic Renovation = "cosmetic"
	RenovationFine     Renovation = "fine"
	RenovationNone     Renovation = "none"
)

// Parking describes the parking arrangement advertised with a listing.
type Parking string

const (
	ParkingUnknown     Parking = ""
	ParkingUnderground Parking = "underground"
	ParkingGround      Parking = "ground"
	ParkingMultilevel  Parking = "multilevel"
	ParkingPresent     Parking = "present"
)

// SellerType describes who placed the listing.
type SellerType string

const (
	SellerUnknown   SellerType = ""
	SellerDeveloper SellerType = "developer"
	SellerOwner     SellerType = "owner"
	SellerAgency    SellerType = "agency"
)

// BuildingClass is the coarse building age class.
type BuildingClass string

const (
	BuildingUnknown BuildingClass = ""
	BuildingNew     BuildingClass = "new"
	BuildingResale  BuildingClass = "resale"
)

// RoomsUnknown marks a listing whose room count could not be extracted.
const RoomsUnknown = 0

// CandidateListing is a parsed, not-yet-filtered record extracted from one
// source fragment (a search-results card or a detail page).
type CandidateListing struct {
	ExternalID   string        `json:"external_id"`
	Source       string        `json:"source"`
	Link         string        `json:"link"`
	TitleRaw     string        `json:"title_raw,omitempty"`
	BodyRaw      string        `json:"body_raw,omitempty"`
	AreaTotal    float64       `json:"area_total"`
	AreaLiving   float64       `json:"area_living,omitempty"`
	Rooms        int           `json:"rooms,omitempty"`
	Floor        int           `json:"floor,omitempty"`
	FloorTotal   int           `json:"floor_total,omitempty"`
	Price        int64         `json:"price"`
	PricePerArea int64         `json:"price_per_area"`
	AddressText  string        `json:"address_text,omitempty"`
	District     string        `json:"district,omitempty"`
	Renovation   Renovation    `json:"renovation,omitempty"`
	Parking      Parking       `json:"parking,omitempty"`
	SellerType   SellerType    `json:"seller_type,omitempty"`
	Building     BuildingClass `json:"building_class,omitempty"`
	CapturedAt   time.Time     `json:"captured_at"`
}

// PricePerArea computes price / area_total rounded to the nearest unit,
// or 0 when the total area is unknown.
func PricePerArea(price int64, areaTotal float64) int64 {
	if areaTotal <= 0 {
		return 0
	}
	return int64(math.Round(float64(price) / areaTotal))
}

// Validate reports whether the listing may proceed past extraction.
// A listing without a stable external id, a positive price, and a positive
// total area is invalid regardless of how it was extracted.
func (l *CandidateListing) Validate() error {
	if l.ExternalID == "" {
		return eris.New("listing: missing external id")
	}
	if l.Price <= 0 {
		return eris.Errorf("listing %s: non-positive price %d", l.ExternalID, l.Price)
	}
	if l.AreaTotal <= 0 {
		return eris.Errorf("listing %s: non-positive total area %v", l.ExternalID, l.AreaTotal)
	}
	if l.AreaLiving > 0 && l.AreaLiving > l.AreaTotal {
		return eris.Errorf("listing %s: living area %v exceeds total %v", l.ExternalID, l.AreaLiving, l.AreaTotal)
	}
	if l.Floor > 0 && l.FloorTotal > 0 && l.Floor > l.FloorTotal {
		return eris.Errorf("listing %s: floor %d above top floor %d", l.ExternalID, l.Floor, l.FloorTotal)
	}
	return nil
}
