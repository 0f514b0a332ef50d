// Package classify enriches candidate listings with categorical fields
// derived from their free text. Rules run in declaration order and the
// first match wins, so more specific markers must precede generic ones.
package classify

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/pkg/cian"
)

// Rule maps any of its markers to a categorical value.
type Rule[T ~string] struct {
	Markers []string
	Value   T
}

var renovationRules = []Rule[model.Renovation]{
	{Markers: []string{"дизайнерск"}, Value: model.RenovationDesigner},
	{Markers: []string{"евроремонт", "евро ремонт", "ремонт евро"}, Value: model.RenovationEuro},
	{Markers: []string{"косметическ"}, Value: model.RenovationCosmetic},
	{Markers: []string{"чистов", "white box", "предчистов"}, Value: model.RenovationFine},
	{Markers: []string{"без ремонта", "без отделки", "требует ремонта"}, Value: model.RenovationNone},
}

var parkingRules = []Rule[model.Parking]{
	{Markers: []string{"подземн"}, Value: model.ParkingUnderground},
	{Markers: []string{"наземн", "открыт"}, Value: model.ParkingGround},
	{Markers: []string{"многоуровнев"}, Value: model.ParkingMultilevel},
	{Markers: []string{"паркинг", "парковк", "машиноместо", "машино-место"}, Value: model.ParkingPresent},
}

var sellerRules = []Rule[model.SellerType]{
	{Markers: []string{"застройщик", "девелопер"}, Value: model.SellerDeveloper},
	{Markers: []string{"собственник", "от хозяина", "без посредников"}, Value: model.SellerOwner},
	{Markers: []string{"риелтор", "риэлтор", "агентство", "агент"}, Value: model.SellerAgency},
}

var buildingRules = []Rule[model.BuildingClass]{
	{Markers: []string{"новостройк", "сдача в", "от застройщика"}, Value: model.BuildingNew},
	{Markers: []string{"вторичк", "вторичное жиль"}, Value: model.BuildingResale},
}

// Classifier fills categorical listing fields from raw text. It never
// overwrites a field already set by structured extraction.
type Classifier struct {
	lower cases.Caser
}

// New creates a Classifier with Russian case folding.
func New() *Classifier {
	return &Classifier{lower: cases.Lower(language.Russian)}
}

// Classify fills renovation, parking, seller, building class, and district
// on the listing in place.
func (c *Classifier) Classify(l *model.CandidateListing) {
	text := c.lower.String(l.TitleRaw + " " + l.BodyRaw)

	if l.Renovation == model.RenovationUnknown {
		l.Renovation = match(text, renovationRules, model.RenovationUnknown)
	}
	if l.Parking == model.ParkingUnknown {
		l.Parking = match(text, parkingRules, model.ParkingUnknown)
	}
	if l.SellerType == model.SellerUnknown {
		l.SellerType = match(text, sellerRules, model.SellerUnknown)
	}
	if l.Building == model.BuildingUnknown {
		l.Building = match(text, buildingRules, model.BuildingUnknown)
	}
	if l.District == "" {
		l.District = c.district(l.AddressText, text)
	}
}

func match[T ~string](text string, rules []Rule[T], unknown T) T {
	for _, r := range rules {
		for _, m := range r.Markers {
			if strings.Contains(text, m) {
				return r.Value
			}
		}
	}
	return unknown
}

// district scans the address first, then the body, for a known district
// name. Address evidence is stronger than a mention in the description.
func (c *Classifier) district(address, bodyLower string) string {
	addrLower := c.lower.String(address)
	for _, d := range cian.TTKDistricts {
		if strings.Contains(addrLower, c.lower.String(d.Name)) {
			return d.Name
		}
	}
	for _, d := range cian.TTKDistricts {
		if strings.Contains(bodyLower, c.lower.String(d.Name)) {
			return d.Name
		}
	}
	return ""
}
