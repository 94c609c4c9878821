package main

import "github.com/thomhuang/NearestDrivers/internal/fleet"

// Job is one query point; Index is its position in the output.
type Job struct {
	Index int
	Label string
	Lat   float64
	Lng   float64
}

type Result struct {
	Label   string        `json:"label"`
	Lat     float64       `json:"lat"`
	Lng     float64       `json:"lng"`
	Nearest []fleet.Match `json:"nearest"`
	Within  []fleet.Match `json:"within,omitempty"`
}

type Output struct {
	K        int      `json:"k"`
	RadiusKm float64  `json:"radius_km,omitempty"`
	Method   string   `json:"method"`
	Drivers  int      `json:"drivers"`
	Took     string   `json:"took"`
	Results  []Result `json:"results"`
}
