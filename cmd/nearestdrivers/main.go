// Command nearestdrivers loads a set of drivers, indexes them and writes
// the K nearest (and optionally those within a radius) for every query
// point as JSON.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thomhuang/NearestDrivers/internal/config"
	"github.com/thomhuang/NearestDrivers/internal/fleet"
	"github.com/thomhuang/NearestDrivers/internal/logger"
	"github.com/thomhuang/NearestDrivers/internal/metrics"
)

func main() {
	config.LoadDotEnv(".env", filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	cfg, err := config.Load(os.Getenv("NEAREST_CONFIG"))
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_loaded", "source", cfg.Source, "k", cfg.K, "radius_km", cfg.RadiusKm, "workers", cfg.Workers, "scan", cfg.Scan)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, l)
	}

	if err := run(ctx, cfg, l); err != nil {
		l.Error("run_error", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, l *slog.Logger) error {
	start := time.Now()

	drivers, err := loadRecords(ctx, cfg.Source, l)
	if err != nil {
		return err
	}

	// Build the spatial indexes
	f := fleet.New(l)
	for _, d := range drivers {
		if err := f.Add(d); err != nil {
			l.Warn("driver_skipped", "err", err)
		}
	}
	f.Stats()
	l.Info("fleet_loaded", "drivers", f.Len(), "took", time.Since(start))

	var jobs []Job
	if cfg.Queries != "" {
		points, err := loadRecords(ctx, cfg.Queries, l)
		if err != nil {
			return err
		}
		jobs = jobsFor(points)
	} else {
		jobs = jobsFor(f.Records())
	}

	results, err := process(ctx, f, jobs, cfg)
	if err != nil {
		return err
	}

	method := "kdtree"
	if cfg.Scan {
		method = "scan"
	}
	out := Output{
		K:        cfg.K,
		RadiusKm: cfg.RadiusKm,
		Method:   method,
		Drivers:  f.Len(),
		Results:  results,
	}
	return OutputResults(cfg.Output, out, time.Since(start), l)
}

// process answers every job on cfg.Workers goroutines. Each worker writes
// only its own job's slot, so results needs no lock.
func process(ctx context.Context, f *fleet.Fleet, jobs []Job, cfg config.Config) ([]Result, error) {
	results := make([]Result, len(jobs))
	// prevent blocking when there's a temporary imbalance between producers and consumers
	queue := make(chan Job, cfg.Workers*2)

	g, ctx := errgroup.WithContext(ctx)

	// allows feeding jobs while processing happens
	// closing the queue signals when no more jobs are incoming
	g.Go(func() error {
		defer close(queue)
		for _, j := range jobs {
			select {
			case queue <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for n := 0; n < cfg.Workers; n++ {
		g.Go(func() error {
			for j := range queue {
				results[j.Index] = answer(f, j, cfg)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func answer(f *fleet.Fleet, j Job, cfg config.Config) Result {
	res := Result{Label: j.Label, Lat: j.Lat, Lng: j.Lng}
	if cfg.Scan {
		res.Nearest = f.Scan(j.Lat, j.Lng, cfg.K)
	} else {
		res.Nearest = f.Nearest(j.Lat, j.Lng, cfg.K)
	}
	if res.Nearest == nil {
		res.Nearest = []fleet.Match{}
	}
	if cfg.RadiusKm > 0 {
		res.Within = f.Within(j.Lat, j.Lng, cfg.RadiusKm)
	}
	return res
}

func serveMetrics(addr string, l *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	s := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	l.Info("metrics_listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("metrics_server_error", "err", err)
	}
}
