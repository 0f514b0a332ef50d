package fetcher

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/pkg/cian"
)

// SearchURL builds the cat.php search URL for one results page. The HTML
// fetchers use it; the API fetcher posts a jsonQuery instead.
func SearchURL(baseURL string, regionID int, c *model.Criteria, page int) string {
	v := url.Values{}
	v.Set("deal_type", "sale")
	v.Set("offer_type", "flat")
	v.Set("engine_version", "2")
	v.Set("region", strconv.Itoa(regionID))
	if c.AreaMin > 0 {
		v.Set("minarea", trimFloat(c.AreaMin))
	}
	if c.AreaMax > 0 {
		v.Set("maxarea", trimFloat(c.AreaMax))
	}
	if c.PriceMax > 0 {
		v.Set("maxprice", strconv.FormatInt(c.PriceMax, 10))
	}
	if c.ExcludeFirstFloor {
		v.Set("floornl", "1")
	}
	for _, id := range cian.DistrictIDs(c.DistrictAllowlist) {
		v.Add("district[]", strconv.Itoa(id))
	}
	for _, r := range c.RoomsAllowlist {
		v.Add(fmt.Sprintf("room%d", r), "1")
	}
	v.Set("p", strconv.Itoa(page))

	return baseURL + "/cat.php?" + v.Encode()
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
