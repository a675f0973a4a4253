package geospatial

import "math"

const (
	earthRadiusKm = 6371.0

	// metres per pixel at zoom 0 on the equator for 256px Web Mercator tiles
	equatorResolution = 156543.03392
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// GroundResolution returns the size in meters of one image pixel at the given
// latitude and zoom level.
func GroundResolution(lat float64, zoom int) float64 {
	return equatorResolution * math.Cos(toRad(lat)) / math.Pow(2, float64(zoom))
}

// Footprint returns the ground width and height in meters covered by an image
// of widthPx x heightPx centred at lat.
func Footprint(lat float64, zoom, widthPx, heightPx int) (widthM, heightM float64) {
	res := GroundResolution(lat, zoom)
	return res * float64(widthPx), res * float64(heightPx)
}

// Extent returns the east-west and north-south size in meters of a bounding box.
func Extent(minLat, minLon, maxLat, maxLon float64) (widthM, heightM float64) {
	midLat := (minLat + maxLat) / 2
	widthM = Haversine(midLat, minLon, midLat, maxLon)
	heightM = Haversine(minLat, minLon, maxLat, minLon)
	return widthM, heightM
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
