package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomhuang/NearestDrivers/internal/config"
	"github.com/thomhuang/NearestDrivers/internal/fleet"
	"github.com/thomhuang/NearestDrivers/internal/kdtree"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const geonames = "US\t10001\tNew York\tNew York\tNY\tNew York\t061\t\t\t40.7484\t-73.9967\t4\n" +
	"US\t10002\tNew York\tNew York\tNY\tNew York\t061\t\t\t40.7152\t-73.9877\t4\n" +
	"US\t02108\tBoston\tMassachusetts\tMA\tSuffolk\t025\t\t\t42.3576\t-71.0684\t4\n"

const drivers = "# id\tlat\tlng\tname\tavailable\n" +
	"1\t40.0\t-74.0\tJohn\ttrue\n" +
	"2\t40.001\t-74.0\tAlice\ttrue\n" +
	"3\t41.0\t-75.0\tBob\t\n" +
	"4\tnorth\t-75.0\tBroken\ttrue\n" +
	"5\t41.5\t-75.5\tIdle\tfalse\n"

func zipped(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, _ = w.Write([]byte("not data"))
	w, err = zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestProcessDriverFile(t *testing.T) {
	t.Run("GeoNames", func(t *testing.T) {
		recs := processDriverFile(strings.NewReader(geonames), quiet)
		require.Len(t, recs, 3)
		assert.Equal(t, kdtree.Record{ID: 1, Lat: 40.7484, Lng: -73.9967, Name: "10001 New York", Available: true}, recs[0])
		assert.Equal(t, 3, recs[2].ID)
	})

	t.Run("Drivers", func(t *testing.T) {
		recs := processDriverFile(strings.NewReader(drivers), quiet)
		require.Len(t, recs, 4)
		assert.Equal(t, []int{1, 2, 3, 5}, []int{recs[0].ID, recs[1].ID, recs[2].ID, recs[3].ID})
		assert.True(t, recs[2].Available)
		assert.False(t, recs[3].Available)
		assert.Equal(t, "Alice", recs[1].Name)
	})

	t.Run("Points", func(t *testing.T) {
		recs := processDriverFile(strings.NewReader("40.0\t-74.0\n\n1\t2\t3\n41\t-75\n"), quiet)
		require.Len(t, recs, 2)
		assert.Equal(t, 40.0, recs[0].Lat)
		assert.Equal(t, -75.0, recs[1].Lng)
	})
}

func TestLoadRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("PlainFile", func(t *testing.T) {
		p := filepath.Join(dir, "drivers.tsv")
		require.NoError(t, os.WriteFile(p, []byte(drivers), 0o644))
		recs, err := loadRecords(ctx, p, quiet)
		require.NoError(t, err)
		assert.Len(t, recs, 4)
	})

	t.Run("ZipFile", func(t *testing.T) {
		p := filepath.Join(dir, "US.zip")
		require.NoError(t, os.WriteFile(p, zipped(t, "US.txt", geonames), 0o644))
		recs, err := loadRecords(ctx, p, quiet)
		require.NoError(t, err)
		assert.Len(t, recs, 3)
	})

	t.Run("ZipWithoutTable", func(t *testing.T) {
		p := filepath.Join(dir, "empty.zip")
		require.NoError(t, os.WriteFile(p, zipped(t, "data.bin", geonames), 0o644))
		_, err := loadRecords(ctx, p, quiet)
		assert.ErrorIs(t, err, errNoTable)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := loadRecords(ctx, filepath.Join(dir, "nope.tsv"), quiet)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("URL", func(t *testing.T) {
		body := zipped(t, "US.txt", geonames)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/US.zip" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(body)
		}))
		defer srv.Close()

		recs, err := loadRecords(ctx, srv.URL+"/US.zip", quiet)
		require.NoError(t, err)
		assert.Len(t, recs, 3)

		_, err = loadRecords(ctx, srv.URL+"/missing.zip", quiet)
		assert.Error(t, err)
	})
}

func TestProcess(t *testing.T) {
	f := fleet.New(quiet)
	for _, r := range processDriverFile(strings.NewReader(drivers), quiet) {
		require.NoError(t, f.Add(r))
	}
	jobs := jobsFor(f.Records())
	cfg := config.Default()
	cfg.K = 2
	cfg.RadiusKm = 1
	cfg.Workers = 3

	results, err := process(context.Background(), f, jobs, cfg)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "John", results[0].Label)
	require.Len(t, results[0].Nearest, 2)
	assert.Equal(t, 1, results[0].Nearest[0].ID)
	assert.Equal(t, 2, results[0].Nearest[1].ID)
	require.Len(t, results[0].Within, 2)

	// Idle is unavailable; its own query still answers from the others.
	assert.Equal(t, "Idle", results[3].Label)
	assert.Equal(t, 3, results[3].Nearest[0].ID)
	assert.Empty(t, results[3].Within)

	cfg.Scan = true
	scanned, err := process(context.Background(), f, jobs, cfg)
	require.NoError(t, err)
	assert.Equal(t, results[0].Nearest, scanned[0].Nearest)
}

func TestProcessCancelled(t *testing.T) {
	f := fleet.New(quiet)
	require.NoError(t, f.Add(kdtree.Record{ID: 1, Available: true}))
	jobs := make([]Job, 1000)
	for i := range jobs {
		jobs[i] = Job{Index: i}
	}
	cfg := config.Default()
	cfg.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := process(ctx, f, jobs, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "drivers.tsv")
	require.NoError(t, os.WriteFile(src, []byte(drivers), 0o644))
	queries := filepath.Join(dir, "queries.tsv")
	require.NoError(t, os.WriteFile(queries, []byte("40.0\t-74.0\n"), 0o644))

	cfg := config.Default()
	cfg.Source = src
	cfg.Queries = queries
	cfg.Output = filepath.Join(dir, "out.json")
	cfg.K = 5
	cfg.Workers = 2

	require.NoError(t, run(context.Background(), cfg, quiet))

	b, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	var out Output
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "kdtree", out.Method)
	assert.Equal(t, 4, out.Drivers)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "1", out.Results[0].Label)
	got := make([]int, 0, 3)
	for _, m := range out.Results[0].Nearest {
		got = append(got, m.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.NotEmpty(t, out.Took)
}
