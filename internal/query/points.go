package query

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/chrissnell/tempoaqi/internal/types"
)

// EarthRadiusMeters is the mean radius of the spherical Earth model.
const EarthRadiusMeters = 6371000

// RandomPoints returns n points scattered around center. Each point takes a
// uniform bearing and a uniform distance in [0, radius] and is placed along
// the great circle from center, so points stay valid near the poles and
// across the antimeridian.
func RandomPoints(center types.SamplePoint, radius float64, n int, src rand.Source) []types.SamplePoint {
	bearing := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: src}
	distance := distuv.Uniform{Min: 0, Max: radius, Src: src}

	points := make([]types.SamplePoint, n)
	for i := range points {
		theta := bearing.Rand()
		d := distance.Rand()
		if d == 0 {
			points[i] = center
			continue
		}
		points[i] = destination(center, theta, d)
	}
	return points
}

// destination moves d meters from p along the initial bearing theta
// (radians clockwise from north).
func destination(p types.SamplePoint, theta, d float64) types.SamplePoint {
	const rad = math.Pi / 180
	delta := d / EarthRadiusMeters
	phi1, lambda1 := p.Lat*rad, p.Lon*rad

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	sinPhi2 = math.Max(-1, math.Min(1, sinPhi2))
	phi2 := math.Asin(sinPhi2)
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*sinPhi2,
	)

	return types.SamplePoint{
		Lat: phi2 / rad,
		Lon: wrapLongitude(lambda2 / rad),
	}
}

// wrapLongitude maps lon into [-180, 180].
func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// SamplePoints returns just the center for a single point, and random
// points around it otherwise.
func SamplePoints(center types.SamplePoint, radius float64, n int, src rand.Source) []types.SamplePoint {
	if n <= 1 {
		return []types.SamplePoint{center}
	}
	return RandomPoints(center, radius, n, src)
}
