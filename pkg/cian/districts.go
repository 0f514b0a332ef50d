package cian

// District pairs a Moscow district name with its Cian geo id.
type District struct {
	Name string
	ID   int
}

// TTKDistricts lists the districts inside and adjacent to the Third Transport
// Ring, in the order they are checked by district classification. Ids are
// Cian's internal geo ids for region 1 (Moscow).
var TTKDistricts = []District{
	{"Арбат", 13},
	{"Басманный", 14},
	{"Замоскворечье", 15},
	{"Красносельский", 16},
	{"Мещанский", 17},
	{"Пресненский", 18},
	{"Таганский", 19},
	{"Тверской", 20},
	{"Хамовники", 21},
	{"Якиманка", 22},
	{"Беговой", 94},
	{"Савёловский", 96},
	{"Дорогомилово", 109},
	{"Даниловский", 136},
	{"Донской", 137},
	{"Сокольники", 149},
	{"Лефортово", 150},
	{"Южнопортовый", 154},
	{"Марьина Роща", 160},
}

// DistrictIDs resolves district names to Cian geo ids, skipping unknown
// names. An empty input selects every TTK district.
func DistrictIDs(names []string) []int {
	if len(names) == 0 {
		ids := make([]int, len(TTKDistricts))
		for i, d := range TTKDistricts {
			ids[i] = d.ID
		}
		return ids
	}
	var ids []int
	for _, name := range names {
		for _, d := range TTKDistricts {
			if d.Name == name {
				ids = append(ids, d.ID)
				break
			}
		}
	}
	return ids
}

// DistrictNames returns the known district names in rule order.
func DistrictNames() []string {
	names := make([]string, len(TTKDistricts))
	for i, d := range TTKDistricts {
		names[i] = d.Name
	}
	return names
}
