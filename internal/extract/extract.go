// Package extract turns raw fetched content into candidate listings. The
// structured API path maps offers directly; the HTML path runs ordered
// per-field strategies over search-result cards, strictest first.
package extract

import (
	"fmt"
	"time"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/pkg/cian"
)

// Options bounds what the loose parsing strategies will accept as a price.
// Digit runs outside the window are treated as noise (phone numbers, cadastral
// ids) rather than prices.
type Options struct {
	PriceMin int64
	PriceMax int64
}

// DefaultOptions covers the Moscow sale market.
func DefaultOptions() Options {
	return Options{PriceMin: 1_000_000, PriceMax: 1_000_000_000}
}

// FieldError reports which field could not be extracted from a fragment.
type FieldError struct {
	Field  string
	Detail string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("extract: %s: %s", e.Field, e.Detail)
}

// Extractor builds CandidateListings from offers or raw card markup.
type Extractor struct {
	opts Options
}

// New creates an Extractor. Zero price bounds fall back to defaults.
func New(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.PriceMin <= 0 {
		opts.PriceMin = def.PriceMin
	}
	if opts.PriceMax <= 0 {
		opts.PriceMax = def.PriceMax
	}
	return &Extractor{opts: opts}
}

// FromOffers maps a page of API offers to listings. Offers that fail
// validation are dropped and reported; one bad offer never aborts the page.
func (e *Extractor) FromOffers(offers []cian.Offer, capturedAt time.Time) ([]model.CandidateListing, []error) {
	listings := make([]model.CandidateListing, 0, len(offers))
	var errs []error
	for _, o := range offers {
		l, err := e.FromOffer(o, capturedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		listings = append(listings, l)
	}
	return listings, errs
}

// FromOffer maps one structured offer. The structured payload carries
// seller and parking evidence directly; free-text fields are kept raw for
// the classifier.
func (e *Extractor) FromOffer(o cian.Offer, capturedAt time.Time) (model.CandidateListing, error) {
	l := model.CandidateListing{
		ExternalID: o.ExternalID(),
		Source:     "cian",
		Link:       o.Link(),
		BodyRaw:    o.Description,
		AreaTotal:  o.TotalAreaM2(),
		AreaLiving: o.LivingAreaM2(),
		Rooms:      o.RoomsCount,
		Floor:      o.FloorNumber,
		FloorTotal: o.Building.FloorsCount,
		Price:      o.BargainTerms.Price,
		CapturedAt: capturedAt,
	}
	l.PricePerArea = model.PricePerArea(l.Price, l.AreaTotal)
	if o.BargainTerms.PricePerMeter > 0 && l.PricePerArea == 0 {
		l.PricePerArea = int64(o.BargainTerms.PricePerMeter)
	}

	for _, a := range o.Geo.Address {
		if a.FullName == "" {
			continue
		}
		if l.AddressText != "" {
			l.AddressText += ", "
		}
		l.AddressText += a.FullName
	}
	if len(o.Geo.Districts) > 0 {
		l.District = o.Geo.Districts[0].Name
	}

	l.SellerType = sellerFromOffer(o)
	l.Parking = parkingFromOffer(o)
	if o.Decoration != "" {
		if l.BodyRaw != "" {
			l.BodyRaw += " "
		}
		l.BodyRaw += o.Decoration
	}

	if err := l.Validate(); err != nil {
		return model.CandidateListing{}, err
	}
	return l, nil
}

func sellerFromOffer(o cian.Offer) model.SellerType {
	switch {
	case o.IsDeveloper:
		return model.SellerDeveloper
	case o.User.IsAgent || o.User.AgencyName != "":
		return model.SellerAgency
	default:
		return model.SellerUnknown
	}
}

func parkingFromOffer(o cian.Offer) model.Parking {
	if o.Parking == nil {
		return model.ParkingUnknown
	}
	switch o.Parking.Type {
	case "underground":
		return model.ParkingUnderground
	case "ground", "open":
		return model.ParkingGround
	case "multilevel":
		return model.ParkingMultilevel
	case "":
		return model.ParkingUnknown
	default:
		return model.ParkingPresent
	}
}

func (e *Extractor) plausiblePrice(p int64) bool {
	return p >= e.opts.PriceMin && p <= e.opts.PriceMax
}
