package kdtree

import (
	"cmp"
	"slices"
)

type candidate struct {
	dist float64
	rec  Record
}

func compareCandidates(a, b candidate) int {
	if c := cmp.Compare(a.dist, b.dist); c != 0 {
		return c
	}
	return cmp.Compare(a.rec.ID, b.rec.ID)
}

type search struct {
	lat, lng float64
	k        int
	best     []candidate
}

// KNearest returns up to k available records closest to (lat, lng) by
// squared planar distance, nearest first. Equal distances are ordered by
// ID so repeated queries on an unchanged tree agree exactly. k <= 0, an
// empty tree, or a tree with no available records give nil.
func (t *Tree) KNearest(lat, lng float64, k int) []Record {
	if k <= 0 || t.root == nil {
		return nil
	}
	s := &search{lat: lat, lng: lng, k: k, best: make([]candidate, 0, min(k, t.size))}
	s.visit(t.root)
	if len(s.best) == 0 {
		return nil
	}
	out := make([]Record, len(s.best))
	for i, c := range s.best {
		out[i] = c.rec
	}
	return out
}

func (s *search) coord(a Axis) float64 {
	if a == Lat {
		return s.lat
	}
	return s.lng
}

func (s *search) visit(n *node) {
	if n == nil {
		return
	}
	if n.rec.Available {
		s.offer(candidate{dist: squaredPlanar(s.lat, s.lng, n.rec.Lat, n.rec.Lng), rec: n.rec})
	}

	q, v := s.coord(n.axis), n.rec.Coord(n.axis)
	near, far := n.right, n.left
	if q < v {
		near, far = n.left, n.right
	}
	s.visit(near)

	// Nothing beyond the split plane is closer than the plane itself. Equal
	// is still visited so an ID tie-break on the far side is not lost.
	plane := (q - v) * (q - v)
	if far != nil && (len(s.best) < s.k || plane <= s.best[len(s.best)-1].dist) {
		s.visit(far)
	}
}

func (s *search) offer(c candidate) {
	if len(s.best) == s.k {
		if compareCandidates(c, s.best[len(s.best)-1]) >= 0 {
			return
		}
		s.best = s.best[:len(s.best)-1]
	}
	i, _ := slices.BinarySearchFunc(s.best, c, compareCandidates)
	s.best = slices.Insert(s.best, i, c)
}
