package kdtree

import "slices"

// Metric scores r against the query point (lat, lng); smaller is closer.
type Metric func(lat, lng float64, r Record) float64

var (
	// Planar is the metric KNearest orders by.
	Planar Metric = func(lat, lng float64, r Record) float64 {
		return squaredPlanar(lat, lng, r.Lat, r.Lng)
	}
	// GreatCircle ranks by Haversine kilometres.
	GreatCircle Metric = func(lat, lng float64, r Record) float64 {
		return GreatCircleKm(lat, lng, r.Lat, r.Lng)
	}
)

// ScanNearest ranks every available record in records by m and returns the
// k closest, ties broken by ID. It is the linear baseline for KNearest.
func ScanNearest(records []Record, lat, lng float64, k int, m Metric) []Record {
	if k <= 0 {
		return nil
	}
	cands := make([]candidate, 0, len(records))
	for _, r := range records {
		if r.Available {
			cands = append(cands, candidate{dist: m(lat, lng, r), rec: r})
		}
	}
	if len(cands) == 0 {
		return nil
	}
	slices.SortFunc(cands, compareCandidates)
	cands = cands[:min(k, len(cands))]
	out := make([]Record, len(cands))
	for i, c := range cands {
		out[i] = c.rec
	}
	return out
}
