package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/steinik-group/rentscout/internal/model"
)

var (
	externalIDRe = regexp.MustCompile(`/sale/flat/(\d+)`)
	priceRubleRe = regexp.MustCompile(`([\d\s\x{00a0}]{6,})\s*[₽р]`)
	digitRunRe   = regexp.MustCompile(`\d[\d\s\x{00a0}]{5,}\d`)
	areaRe       = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*м²`)
	roomsRe      = regexp.MustCompile(`(\d+)-комн`)
	studioRe     = regexp.MustCompile(`(?i)студия`)
	floorRe      = regexp.MustCompile(`(\d+)/(\d+)\s*этаж`)
)

// FromHTML extracts every listing card from a rendered or static search
// page. Cards that miss a required field are reported individually; the
// page keeps going.
func (e *Extractor) FromHTML(html string, capturedAt time.Time) ([]model.CandidateListing, []error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []error{eris.Wrap(err, "extract: parse html")}
	}

	cards := doc.Find(`[data-name="CardComponent"]`)
	if cards.Length() == 0 {
		// Older markup: fall back to any article holding a flat link.
		cards = doc.Find(`article:has(a[href*="/sale/flat/"])`)
	}

	var (
		listings []model.CandidateListing
		errs     []error
	)
	cards.Each(func(_ int, sel *goquery.Selection) {
		l, err := e.fromCard(sel, capturedAt)
		if err != nil {
			errs = append(errs, err)
			return
		}
		listings = append(listings, l)
	})
	return listings, errs
}

// fromCard runs the per-field strategy ladders over one card. External id
// and price are required; everything else degrades to unknown.
func (e *Extractor) fromCard(sel *goquery.Selection, capturedAt time.Time) (model.CandidateListing, error) {
	text := squashSpace(sel.Text())

	id, link := externalID(sel)
	if id == "" {
		return model.CandidateListing{}, &FieldError{Field: "external_id", Detail: "no /sale/flat/ link in card"}
	}

	price, ok := e.price(sel, text)
	if !ok {
		return model.CandidateListing{}, &FieldError{Field: "price", Detail: "card " + id + ": no plausible price"}
	}

	l := model.CandidateListing{
		ExternalID: id,
		Source:     "cian",
		Link:       link,
		TitleRaw:   squashSpace(sel.Find(`[data-mark="OfferTitle"]`).Text()),
		BodyRaw:    text,
		Price:      price,
		CapturedAt: capturedAt,
	}

	if m := areaRe.FindStringSubmatch(text); m != nil {
		l.AreaTotal, _ = strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	}
	l.PricePerArea = model.PricePerArea(l.Price, l.AreaTotal)

	if m := roomsRe.FindStringSubmatch(text); m != nil {
		l.Rooms, _ = strconv.Atoi(m[1])
	} else if studioRe.MatchString(text) {
		l.Rooms = 1
	}

	if m := floorRe.FindStringSubmatch(text); m != nil {
		l.Floor, _ = strconv.Atoi(m[1])
		l.FloorTotal, _ = strconv.Atoi(m[2])
	}

	if addr := sel.Find(`[data-name="GeoLabel"]`); addr.Length() > 0 {
		parts := make([]string, 0, addr.Length())
		addr.Each(func(_ int, s *goquery.Selection) {
			if t := squashSpace(s.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		l.AddressText = strings.Join(parts, ", ")
	}

	if err := l.Validate(); err != nil {
		return model.CandidateListing{}, err
	}
	return l, nil
}

// externalID finds the listing id in the first flat link of the card.
func externalID(sel *goquery.Selection) (id, link string) {
	sel.Find(`a[href*="/sale/flat/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := externalIDRe.FindStringSubmatch(href); m != nil {
			id, link = m[1], href
			return false
		}
		return true
	})
	return id, link
}

// price tries strategies strictest first: the dedicated price node, then a
// ruble-suffixed amount anywhere in the card, then any digit run inside the
// plausibility window. Phone numbers land outside the window and lose.
func (e *Extractor) price(sel *goquery.Selection, text string) (int64, bool) {
	if node := sel.Find(`[data-mark="MainPrice"], [data-name="Price"]`).First(); node.Length() > 0 {
		if p, ok := parsePrice(node.Text()); ok && e.plausiblePrice(p) {
			return p, true
		}
	}

	if m := priceRubleRe.FindStringSubmatch(text); m != nil {
		if p, ok := parsePrice(m[1]); ok && e.plausiblePrice(p) {
			return p, true
		}
	}

	for _, run := range digitRunRe.FindAllString(text, -1) {
		if p, ok := parsePrice(run); ok && e.plausiblePrice(p) {
			return p, true
		}
	}
	return 0, false
}

func parsePrice(s string) (int64, bool) {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	p, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

func squashSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
