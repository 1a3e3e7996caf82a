package attendance

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two
// (latitude, longitude) points given in degrees, using the haversine
// formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := radians(lat2 - lat1)
	dlon := radians(lon2 - lon1)
	sinDlat := math.Sin(dlat / 2)
	sinDlon := math.Sin(dlon / 2)
	a := sinDlat*sinDlat + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sinDlon*sinDlon
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusMeters * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
