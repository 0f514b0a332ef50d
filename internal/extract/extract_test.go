package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/pkg/cian"
)

var captured = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func card(id, body string) string {
	return `<article data-name="CardComponent">` +
		`<a href="https://www.cian.ru/sale/flat/` + id + `/">Открыть</a>` +
		body +
		`</article>`
}

func TestFromHTMLGoodCard(t *testing.T) {
	html := card("287654321", `
		<span data-mark="OfferTitle">2-комн. квартира, 54,3 м², 7/12 этаж</span>
		<span data-mark="MainPrice">28 500 000 ₽</span>
		<a data-name="GeoLabel">Хамовники</a>
	`)

	e := New(Options{})
	listings, errs := e.FromHTML(html, captured)
	require.Empty(t, errs)
	require.Len(t, listings, 1)

	l := listings[0]
	assert.Equal(t, "287654321", l.ExternalID)
	assert.Equal(t, int64(28_500_000), l.Price)
	assert.InDelta(t, 54.3, l.AreaTotal, 0.001)
	assert.Equal(t, 2, l.Rooms)
	assert.Equal(t, 7, l.Floor)
	assert.Equal(t, 12, l.FloorTotal)
	assert.Equal(t, int64(524_862), l.PricePerArea)
	assert.Equal(t, "Хамовники", l.AddressText)
	assert.Equal(t, captured, l.CapturedAt)
}

func TestFromHTMLPhoneNumberIsNotPrice(t *testing.T) {
	// The only large digit run besides the price is a phone number. The
	// plausibility window must pick the price.
	html := card("100", `
		<span>3-комн. квартира, 90 м², 2/9 этаж</span>
		<span>+7 495 123 45 67</span>
		<span data-mark="MainPrice">45 000 000 ₽</span>
	`)

	e := New(Options{})
	listings, errs := e.FromHTML(html, captured)
	require.Empty(t, errs)
	require.Len(t, listings, 1)
	assert.Equal(t, int64(45_000_000), listings[0].Price)
}

func TestFromHTMLPhoneOnlyCardFails(t *testing.T) {
	// No price at all, just a phone number. The loose digit-run scan must
	// not mistake it for a price.
	html := card("101", `
		<span>1-комн. квартира, 40 м²</span>
		<span>+7 916 000 11 22</span>
	`)

	e := New(Options{})
	listings, errs := e.FromHTML(html, captured)
	assert.Empty(t, listings)
	require.Len(t, errs, 1)
	var fe *FieldError
	require.ErrorAs(t, errs[0], &fe)
	assert.Equal(t, "price", fe.Field)
}

func TestFromHTMLPartialPageKeepsGoing(t *testing.T) {
	// Three cards: one complete, one without a link, one without an area.
	// The complete card survives, the others are reported.
	html := card("1", `<span>2-комн., 60 м², 3/10 этаж</span><span data-mark="MainPrice">30 000 000 ₽</span>`) +
		`<article data-name="CardComponent"><span>2-комн., 60 м²</span><span>30 000 000 ₽</span></article>` +
		card("3", `<span>2-комн., 5/10 этаж</span><span data-mark="MainPrice">30 000 000 ₽</span>`)

	e := New(Options{})
	listings, errs := e.FromHTML(html, captured)
	require.Len(t, listings, 1)
	assert.Equal(t, "1", listings[0].ExternalID)
	assert.Len(t, errs, 2)
}

func TestFromHTMLFallbackRegexPrice(t *testing.T) {
	// No dedicated price node. The ruble-suffixed regex strategy applies.
	html := card("55", `<span>Студия, 38 м², 4/20 этаж, цена 12 300 000 ₽</span>`)

	e := New(Options{})
	listings, errs := e.FromHTML(html, captured)
	require.Empty(t, errs)
	require.Len(t, listings, 1)
	assert.Equal(t, int64(12_300_000), listings[0].Price)
	assert.Equal(t, 1, listings[0].Rooms)
}

func TestFromOffer(t *testing.T) {
	var o cian.Offer
	o.ID = 287654321
	o.TotalArea = "54.3"
	o.LivingArea = "30.1"
	o.RoomsCount = 2
	o.FloorNumber = 7
	o.Description = "Дизайнерский ремонт, подземный паркинг"
	o.BargainTerms.Price = 28_500_000
	o.Building.FloorsCount = 12
	o.Parking = &struct {
		Type string `json:"type"`
	}{Type: "underground"}
	o.Geo.Districts = []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}{{ID: 21, Name: "Хамовники"}}
	o.User.IsAgent = true

	e := New(Options{})
	l, err := e.FromOffer(o, captured)
	require.NoError(t, err)
	assert.Equal(t, "287654321", l.ExternalID)
	assert.Equal(t, "https://www.cian.ru/sale/flat/287654321/", l.Link)
	assert.Equal(t, int64(524_862), l.PricePerArea)
	assert.Equal(t, "Хамовники", l.District)
	assert.Equal(t, model.ParkingUnderground, l.Parking)
	assert.Equal(t, model.SellerAgency, l.SellerType)
}

func TestFromOffersDropsInvalid(t *testing.T) {
	var good, bad cian.Offer
	good.ID = 1
	good.TotalArea = "50"
	good.BargainTerms.Price = 20_000_000
	bad.ID = 2
	bad.TotalArea = "0"
	bad.BargainTerms.Price = 20_000_000

	e := New(Options{})
	listings, errs := e.FromOffers([]cian.Offer{good, bad}, captured)
	require.Len(t, listings, 1)
	assert.Equal(t, "1", listings[0].ExternalID)
	assert.Len(t, errs, 1)
}
