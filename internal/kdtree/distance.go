package kdtree

import "github.com/umahmood/haversine"

// SquaredPlanarDistance is (Δlat)² + (Δlng)². It orders candidates and
// drives pruning; it is not a distance in physical units.
func SquaredPlanarDistance(a, b Record) float64 {
	return squaredPlanar(a.Lat, a.Lng, b.Lat, b.Lng)
}

func squaredPlanar(lat1, lng1, lat2, lng2 float64) float64 {
	dlat := lat1 - lat2
	dlng := lng1 - lng2
	return dlat*dlat + dlng*dlng
}

// GreatCircleDistance returns the Haversine distance between a and b in km.
func GreatCircleDistance(a, b Record) float64 {
	return GreatCircleKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// GreatCircleKm is GreatCircleDistance on bare coordinates.
func GreatCircleKm(lat1, lng1, lat2, lng2 float64) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: lat1, Lon: lng1},
		haversine.Coord{Lat: lat2, Lon: lng2},
	)
	return km
}
