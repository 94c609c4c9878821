// Package fleet owns the canonical set of drivers and keeps the spatial
// indexes in step with every add, cancel, move and removal.
package fleet

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/thomhuang/NearestDrivers/internal/kdtree"
	"github.com/thomhuang/NearestDrivers/internal/logger"
	"github.com/thomhuang/NearestDrivers/internal/metrics"
	"github.com/thomhuang/NearestDrivers/internal/radius"
)

var (
	ErrUnknownDriver = errors.New("unknown driver")
	ErrDuplicateID   = errors.New("duplicate driver id")
)

// Match is a driver returned from a query with its great-circle distance
// to the query point.
type Match struct {
	kdtree.Record
	Km float64 `json:"km"`
}

// Fleet is safe for concurrent use. Mutations take the write lock; queries
// share the read lock, so the indexes below never see a concurrent writer.
type Fleet struct {
	mu      sync.RWMutex
	drivers map[int]kdtree.Record
	tree    *kdtree.Tree
	area    *radius.Index
	log     *slog.Logger
}

// New returns an empty fleet logging to l, or to logger.L() when l is nil.
func New(l *slog.Logger) *Fleet {
	if l == nil {
		l = logger.L()
	}
	return &Fleet{
		drivers: make(map[int]kdtree.Record),
		tree:    kdtree.New(),
		area:    radius.New(),
		log:     l,
	}
}

// Add inserts a new driver. IDs must be unique among live drivers.
func (f *Fleet) Add(r kdtree.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.drivers[r.ID]; ok {
		f.observe("add", ErrDuplicateID)
		return fmt.Errorf("add %d: %w", r.ID, ErrDuplicateID)
	}
	if err := f.area.Put(r); err != nil {
		f.observe("add", err)
		return fmt.Errorf("add %d: %w", r.ID, err)
	}
	f.tree.Insert(r)
	f.drivers[r.ID] = r
	f.observe("add", nil)
	f.log.Debug("driver_added", "id", r.ID, "lat", r.Lat, "lng", r.Lng, "available", r.Available)
	return nil
}

// Cancel marks a driver unavailable. It stays indexed but is no longer
// returned by any query.
func (f *Fleet) Cancel(id int) error {
	return f.replace("cancel", id, func(r *kdtree.Record) { r.Available = false })
}

// Reinstate marks a cancelled driver available again.
func (f *Fleet) Reinstate(id int) error {
	return f.replace("reinstate", id, func(r *kdtree.Record) { r.Available = true })
}

// Move repositions a driver.
func (f *Fleet) Move(id int, lat, lng float64) error {
	return f.replace("move", id, func(r *kdtree.Record) { r.Lat, r.Lng = lat, lng })
}

func (f *Fleet) replace(op string, id int, change func(*kdtree.Record)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.drivers[id]
	if !ok {
		f.observe(op, ErrUnknownDriver)
		return fmt.Errorf("%s %d: %w", op, id, ErrUnknownDriver)
	}
	updated := old
	change(&updated)
	if err := f.area.Put(updated); err != nil {
		f.observe(op, err)
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	f.tree.Update(old, updated)
	f.drivers[id] = updated
	f.observe(op, nil)
	f.log.Debug("driver_"+op, "id", id, "lat", updated.Lat, "lng", updated.Lng, "available", updated.Available)
	return nil
}

// Remove deletes a driver from the fleet and both indexes.
func (f *Fleet) Remove(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.drivers[id]
	if !ok {
		f.observe("remove", ErrUnknownDriver)
		return fmt.Errorf("remove %d: %w", id, ErrUnknownDriver)
	}
	f.tree.Remove(r)
	f.area.Delete(id)
	delete(f.drivers, id)
	f.observe("remove", nil)
	f.log.Debug("driver_removed", "id", id)
	return nil
}

// Get returns the current record for id.
func (f *Fleet) Get(id int) (kdtree.Record, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.drivers[id]
	return r, ok
}

// Len reports the number of drivers, available or not.
func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.drivers)
}

// Records returns a snapshot of every driver ordered by ID.
func (f *Fleet) Records() []kdtree.Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot()
}

func (f *Fleet) snapshot() []kdtree.Record {
	out := make([]kdtree.Record, 0, len(f.drivers))
	for _, r := range f.drivers {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b kdtree.Record) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Nearest returns up to k available drivers closest to (lat, lng) from the
// KD tree.
func (f *Fleet) Nearest(lat, lng float64, k int) []Match {
	defer f.timed("knn", time.Now())
	f.mu.RLock()
	recs := f.tree.KNearest(lat, lng, k)
	f.mu.RUnlock()
	return annotate("knn", lat, lng, recs)
}

// Scan ranks every available driver by great-circle distance without the
// tree. It is the linear baseline for Nearest.
func (f *Fleet) Scan(lat, lng float64, k int) []Match {
	defer f.timed("scan", time.Now())
	f.mu.RLock()
	recs := kdtree.ScanNearest(f.snapshot(), lat, lng, k, kdtree.GreatCircle)
	f.mu.RUnlock()
	return annotate("scan", lat, lng, recs)
}

// Within returns available drivers no more than km from (lat, lng),
// nearest first.
func (f *Fleet) Within(lat, lng, km float64) []Match {
	defer f.timed("radius", time.Now())
	f.mu.RLock()
	recs := f.area.Within(lat, lng, km)
	f.mu.RUnlock()
	return annotate("radius", lat, lng, recs)
}

// Stats logs and publishes the current shape of the fleet.
func (f *Fleet) Stats() (available, unavailable, height int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.drivers {
		if r.Available {
			available++
		} else {
			unavailable++
		}
	}
	height = f.tree.Height()
	metrics.Drivers.WithLabelValues("available").Set(float64(available))
	metrics.Drivers.WithLabelValues("unavailable").Set(float64(unavailable))
	metrics.TreeHeight.Set(float64(height))
	f.log.Info("fleet_stats", "available", available, "unavailable", unavailable, "tree_height", height)
	return available, unavailable, height
}

func annotate(kind string, lat, lng float64, recs []kdtree.Record) []Match {
	metrics.QueriesTotal.WithLabelValues(kind).Inc()
	metrics.QueryResults.WithLabelValues(kind).Observe(float64(len(recs)))
	if len(recs) == 0 {
		return nil
	}
	out := make([]Match, len(recs))
	for i, r := range recs {
		out[i] = Match{Record: r, Km: kdtree.GreatCircleKm(lat, lng, r.Lat, r.Lng)}
	}
	return out
}

func (f *Fleet) timed(kind string, start time.Time) {
	metrics.QueryDurationMs.WithLabelValues(kind).Observe(float64(time.Since(start).Microseconds()) / 1000)
}

func (f *Fleet) observe(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownDriver):
		outcome = "unknown"
	case errors.Is(err, ErrDuplicateID):
		outcome = "duplicate"
	default:
		outcome = "error"
	}
	metrics.FleetOperationsTotal.WithLabelValues(op, outcome).Inc()
	if err != nil {
		f.log.Debug("driver_"+op+"_rejected", "outcome", outcome, "err", err)
	}
}
