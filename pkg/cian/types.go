package cian

import (
	"strconv"
)

// SearchQuery describes one search-offers request.
type SearchQuery struct {
	Page          int
	RegionID      int
	MinArea       float64
	MaxArea       float64
	MaxPrice      int64
	DistrictIDs   []int
	Rooms         []int
	NotFirstFloor bool
}

// SearchResponse is the subset of the search-offers-desktop payload the
// pipeline consumes.
type SearchResponse struct {
	Data struct {
		Offers []Offer `json:"offersSerialized"`
	} `json:"data"`
}

// Offer is one serialized offer from the search API. Cian encodes areas as
// strings; accessors parse them on demand.
type Offer struct {
	ID          int64  `json:"id"`
	CianID      int64  `json:"cianId"`
	TotalArea   string `json:"totalArea"`
	LivingArea  string `json:"livingArea"`
	RoomsCount  int    `json:"roomsCount"`
	FloorNumber int    `json:"floorNumber"`
	Decoration  string `json:"decoration"`
	Description string `json:"description"`
	IsDeveloper bool   `json:"isDeveloper"`

	BargainTerms struct {
		Price         int64   `json:"price"`
		PricePerMeter float64 `json:"pricePerMeter"`
	} `json:"bargainTerms"`

	Building struct {
		FloorsCount int `json:"floorsCount"`
		BuildYear   int `json:"buildYear"`
	} `json:"building"`

	Parking *struct {
		Type string `json:"type"`
	} `json:"parking"`

	Geo struct {
		Address []struct {
			Type     string `json:"type"`
			FullName string `json:"fullName"`
		} `json:"address"`
		Districts []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"districts"`
	} `json:"geo"`

	User struct {
		AgencyName string `json:"agencyName"`
		IsAgent    bool   `json:"isAgent"`
	} `json:"user"`
}

// ExternalID returns the stable listing identifier as a string.
func (o Offer) ExternalID() string {
	if o.ID != 0 {
		return strconv.FormatInt(o.ID, 10)
	}
	if o.CianID != 0 {
		return strconv.FormatInt(o.CianID, 10)
	}
	return ""
}

// Link builds the public listing URL.
func (o Offer) Link() string {
	id := o.CianID
	if id == 0 {
		id = o.ID
	}
	if id == 0 {
		return ""
	}
	return "https://www.cian.ru/sale/flat/" + strconv.FormatInt(id, 10) + "/"
}

// TotalAreaM2 parses the total area, returning 0 when absent or malformed.
func (o Offer) TotalAreaM2() float64 { return parseArea(o.TotalArea) }

// LivingAreaM2 parses the living area, returning 0 when absent or malformed.
func (o Offer) LivingAreaM2() float64 { return parseArea(o.LivingArea) }

func parseArea(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
