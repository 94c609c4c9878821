package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/thomhuang/NearestDrivers/internal/kdtree"
)

var errNoTable = errors.New("zip holds no .txt or .tsv table")

// loadRecords reads src (a local path or URL, plain or zipped) into records.
func loadRecords(ctx context.Context, src string, l *slog.Logger) ([]kdtree.Record, error) {
	var body []byte
	var err error
	if isURL(src) {
		body, err = download(ctx, src, l)
	} else {
		body, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}

	if !bytes.HasPrefix(body, []byte("PK\x03\x04")) {
		return processDriverFile(bytes.NewReader(body), l), nil
	}

	zipReader, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("unzip %s: %w", src, err)
	}
	// Process the first table, ignore `readme.txt`
	for _, f := range zipReader.File {
		name := strings.ToLower(path.Base(f.Name))
		if name == "readme.txt" || !(strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".tsv")) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", f.Name, src, err)
		}
		defer rc.Close()
		l.Debug("zip_table", "src", src, "file", f.Name)
		return processDriverFile(rc, l), nil
	}
	return nil, fmt.Errorf("%s: %w", src, errNoTable)
}

// processDriverFile parses tab separated rows in one of three shapes:
//
//	12 fields  GeoNames postal code dump, lat/lng in columns 9 and 10
//	 5 fields  id, lat, lng, name, available
//	 2 fields  lat, lng
//
// Rows without an id are numbered from 1 in file order. Bad rows are
// logged and skipped.
func processDriverFile(reader io.Reader, l *slog.Logger) []kdtree.Record {
	var records []kdtree.Record

	csvReader := csv.NewReader(reader)
	csvReader.Comma = '\t'
	csvReader.Comment = '#'
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	row := 0
	for {
		fields, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			l.Warn("record_read_error", "row", row, "err", err)
			continue
		}

		r, err := parseRow(fields, row)
		if err != nil {
			l.Warn("record_skipped", "row", row, "err", err)
			continue
		}
		records = append(records, r)
	}

	return records
}

func parseRow(fields []string, row int) (kdtree.Record, error) {
	r := kdtree.Record{ID: row, Available: true}
	var latField, lngField string
	switch len(fields) {
	case 12:
		r.Name = strings.TrimSpace(fields[1] + " " + fields[2])
		latField, lngField = fields[9], fields[10]
	case 5:
		id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return r, fmt.Errorf("id: %w", err)
		}
		r.ID = id
		r.Name = strings.TrimSpace(fields[3])
		if v := strings.TrimSpace(fields[4]); v != "" {
			if r.Available, err = strconv.ParseBool(v); err != nil {
				return r, fmt.Errorf("available: %w", err)
			}
		}
		latField, lngField = fields[1], fields[2]
	case 2:
		latField, lngField = fields[0], fields[1]
	default:
		return r, fmt.Errorf("unexpected field count %d", len(fields))
	}

	var err error
	if r.Lat, err = strconv.ParseFloat(strings.TrimSpace(latField), 64); err != nil {
		return r, fmt.Errorf("latitude: %w", err)
	}
	if r.Lng, err = strconv.ParseFloat(strings.TrimSpace(lngField), 64); err != nil {
		return r, fmt.Errorf("longitude: %w", err)
	}
	return r, nil
}

func jobsFor(records []kdtree.Record) []Job {
	jobs := make([]Job, len(records))
	for i, r := range records {
		label := r.Name
		if label == "" {
			label = strconv.Itoa(r.ID)
		}
		jobs[i] = Job{Index: i, Label: label, Lat: r.Lat, Lng: r.Lng}
	}
	return jobs
}

// OutputResults writes out as indented JSON to path.
func OutputResults(path string, out Output, timeTaken time.Duration, l *slog.Logger) error {
	out.Took = timeTaken.String()
	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize results: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	l.Info("output_written", "path", path, "results", len(out.Results), "took", timeTaken)
	return nil
}
