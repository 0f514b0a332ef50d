package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validListing() CandidateListing {
	return CandidateListing{
		ExternalID: "318992417",
		Source:     "cian",
		Link:       "https://www.cian.ru/sale/flat/318992417/",
		AreaTotal:  54.3,
		Rooms:      2,
		Floor:      4,
		FloorTotal: 9,
		Price:      28_500_000,
	}
}

func TestListingValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CandidateListing)
		wantErr bool
	}{
		{"valid", func(l *CandidateListing) {}, false},
		{"missing external id", func(l *CandidateListing) { l.ExternalID = "" }, true},
		{"zero price", func(l *CandidateListing) { l.Price = 0 }, true},
		{"negative price", func(l *CandidateListing) { l.Price = -1 }, true},
		{"zero area", func(l *CandidateListing) { l.AreaTotal = 0 }, true},
		{"living exceeds total", func(l *CandidateListing) { l.AreaLiving = 60 }, true},
		{"living below total", func(l *CandidateListing) { l.AreaLiving = 30 }, false},
		{"floor above top", func(l *CandidateListing) { l.Floor = 12 }, true},
		{"unknown floor total", func(l *CandidateListing) { l.Floor = 12; l.FloorTotal = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validListing()
			tt.mutate(&l)
			err := l.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPricePerArea(t *testing.T) {
	assert.Equal(t, int64(524_862), PricePerArea(28_500_000, 54.3))
	assert.Equal(t, int64(0), PricePerArea(28_500_000, 0))
	assert.Equal(t, int64(500_000), PricePerArea(25_000_000, 50))
}

func TestCriteriaValidate(t *testing.T) {
	c := DefaultCriteria()
	require.NoError(t, c.Validate())

	c.AreaMax = 10 // below AreaMin
	assert.Error(t, c.Validate())

	c = DefaultCriteria()
	c.PriceMax = 0
	assert.Error(t, c.Validate())
}

func TestCriteriaUnknownPolicy(t *testing.T) {
	c := Criteria{
		DistrictAllowlist: []string{"Хамовники"},
		RenovationExclude: []Renovation{RenovationNone},
	}

	// Permissive default: unknown passes lists that reference the field.
	assert.True(t, c.AllowsDistrict(""))
	assert.True(t, c.AllowsRenovation(RenovationUnknown))
	assert.False(t, c.AllowsDistrict("Таганский"))
	assert.False(t, c.AllowsRenovation(RenovationNone))

	c.StrictUnknown = true
	assert.False(t, c.AllowsDistrict(""))
	assert.False(t, c.AllowsRenovation(RenovationUnknown))
	assert.True(t, c.AllowsDistrict("Хамовники"))
}

func TestCriteriaRooms(t *testing.T) {
	c := Criteria{RoomsAllowlist: []int{2, 3}}
	assert.True(t, c.AllowsRooms(2))
	assert.False(t, c.AllowsRooms(5))
	assert.True(t, c.AllowsRooms(RoomsUnknown))
	assert.True(t, Criteria{}.AllowsRooms(5))
}
