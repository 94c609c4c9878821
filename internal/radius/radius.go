// Package radius answers "which records lie within r km of a point" with an
// R-tree prefilter and an exact Haversine check.
package radius

import (
	"cmp"
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"

	"github.com/thomhuang/NearestDrivers/internal/kdtree"
)

// kmPerDegree is the length of one degree of latitude, rounded down so the
// search box never comes out too small.
const kmPerDegree = 111.0

const earthRadiusKm = 6371.0

// pointSize is the side of the rectangle stored for each record; rtreego
// rejects zero-length sides.
var pointSize = 1e-9

type item struct {
	rect rtreego.Rect
	rec  kdtree.Record
}

func (it *item) Bounds() rtreego.Rect {
	return it.rect
}

// Index is an R-tree of records keyed by ID. Like kdtree.Tree it is not
// safe for concurrent use.
type Index struct {
	tree  *rtreego.Rtree
	items map[int]*item
}

// New returns an empty index.
func New() *Index {
	// dim = 2D, points stored as (lng, lat)
	// min children = 25
	// max children = 50
	return &Index{
		tree:  rtreego.NewTree(2, 25, 50),
		items: make(map[int]*item),
	}
}

// Len reports the number of records held.
func (x *Index) Len() int {
	return len(x.items)
}

// Put inserts r, replacing any record with the same ID. On error the index
// is unchanged.
func (x *Index) Put(r kdtree.Record) error {
	rect, err := rtreego.NewRect(rtreego.Point{r.Lng, r.Lat}, []float64{pointSize, pointSize})
	if err != nil {
		return err
	}
	x.Delete(r.ID)
	it := &item{rect: rect, rec: r}
	x.tree.Insert(it)
	x.items[r.ID] = it
	return nil
}

// Delete removes the record with the given ID and reports whether it was
// present.
func (x *Index) Delete(id int) bool {
	it, ok := x.items[id]
	if !ok {
		return false
	}
	x.tree.Delete(it)
	delete(x.items, id)
	return true
}

// Within returns available records no more than km great-circle kilometres
// from (lat, lng), nearest first, ties by ID.
func (x *Index) Within(lat, lng, km float64) []kdtree.Record {
	if km <= 0 || len(x.items) == 0 {
		return nil
	}
	boxes, err := searchBoxes(lat, lng, km)
	if err != nil {
		return nil
	}

	type hit struct {
		km  float64
		rec kdtree.Record
	}
	var hits []hit
	seen := make(map[*item]bool)
	for _, box := range boxes {
		for _, s := range x.tree.SearchIntersect(box) {
			it := s.(*item)
			if seen[it] || !it.rec.Available {
				continue
			}
			seen[it] = true
			// Calculate exact distance using Haversine so it's radius vs square
			d := kdtree.GreatCircleKm(lat, lng, it.rec.Lat, it.rec.Lng)
			if d <= km {
				hits = append(hits, hit{km: d, rec: it.rec})
			}
		}
	}
	if len(hits) == 0 {
		return nil
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.km, b.km); c != 0 {
			return c
		}
		return cmp.Compare(a.rec.ID, b.rec.ID)
	})
	out := make([]kdtree.Record, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out
}

// searchBoxes bounds every point within km of (lat, lng) in degrees. From
// the Haversine formula, sin(Δlng/2) <= sin(d/2R) / cos(φ) where φ is the
// widest latitude in the box. A span crossing ±180 is split in two.
func searchBoxes(lat, lng, km float64) ([]rtreego.Rect, error) {
	dLat := km / kmPerDegree
	minLat := math.Max(lat-dLat, -90)
	maxLat := math.Min(lat+dLat, 90)

	spans := [][2]float64{{-180, 180}}
	edge := math.Max(math.Abs(minLat), math.Abs(maxLat)) * math.Pi / 180
	if s := math.Sin(km/(2*earthRadiusKm)) / math.Cos(edge); km < math.Pi*earthRadiusKm && s < 1 {
		dLng := 2 * math.Asin(s) * 180 / math.Pi * (1 + 1e-6)
		lo, hi := lng-dLng, lng+dLng
		switch {
		case hi-lo >= 360:
		case lo < -180:
			spans = [][2]float64{{-180, hi}, {lo + 360, 180}}
		case hi > 180:
			spans = [][2]float64{{lo, 180}, {-180, hi - 360}}
		default:
			spans = [][2]float64{{lo, hi}}
		}
	}

	boxes := make([]rtreego.Rect, 0, len(spans))
	for _, sp := range spans {
		box, err := rtreego.NewRect(
			rtreego.Point{sp[0], minLat},
			[]float64{sp[1] - sp[0] + pointSize, maxLat - minLat + pointSize},
		)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}
