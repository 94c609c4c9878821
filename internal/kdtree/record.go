package kdtree

// Record is a point of interest stored in the tree, e.g. a driver.
// Two records are the same entity iff their IDs match.
type Record struct {
	ID        int     `json:"id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Name      string  `json:"name,omitempty"`
	Available bool    `json:"available"`
}

// Axis is the coordinate a node splits on.
type Axis uint8

const (
	Lat Axis = iota
	Lng
)

func (a Axis) String() string {
	if a == Lat {
		return "lat"
	}
	return "lng"
}

// next returns the axis used one level below a node splitting on a.
func (a Axis) next() Axis {
	return 1 - a
}

// Coord returns r's coordinate on the given axis.
func (r Record) Coord(a Axis) float64 {
	if a == Lat {
		return r.Lat
	}
	return r.Lng
}
