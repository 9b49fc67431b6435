package geomprim

import "math"

// Ellipsoid is a reference ellipsoid used for geodesic distance on
// geographic (lat/lon) grids. Parameterized the way
// github.com/ctessum/geom/proj names its built-in ellipsoid defs
// (semi-major axis + inverse flattening), though that package's type is
// unexported so this is a fresh, exported equivalent.
type Ellipsoid struct {
	A  float64 // semi-major axis, metres
	Rf float64 // inverse flattening
}

// WGS84 is the ellipsoid engine.Run uses when Params.Ellipsoid is unset.
// The IGM header's "datum ellipsoid" field is not read.
var WGS84 = Ellipsoid{A: 6378137.0, Rf: 298.257223563}

func (e Ellipsoid) flattening() float64 {
	if e.Rf == 0 {
		return 0
	}
	return 1 / e.Rf
}

func (e Ellipsoid) b() float64 {
	return e.A * (1 - e.flattening())
}

// InverseGeodesic returns the geodesic distance in metres between two
// points given as (lon, lat) in radians, via Bowring's method, along with
// the forward azimuth and zenith — mirroring
// original_source/src/TreeGrid.h's call into GetGeodesicDistance_Bowring.
// Heights are assumed zero (points taken on the ellipsoid surface), as the
// TreeGrid never needs true 3-D distance.
func (e Ellipsoid) InverseGeodesic(lon1, lat1, lon2, lat2 float64) (distance, azimuth, zenith float64) {
	a := e.A
	f := e.flattening()
	b := e.b()
	_ = b

	if lon1 == lon2 && lat1 == lat2 {
		return 0, 0, 0
	}

	// Reduced (parametric) latitudes.
	beta1 := math.Atan((1 - f) * math.Tan(lat1))
	beta2 := math.Atan((1 - f) * math.Tan(lat2))

	dLon := lon2 - lon1

	sinB1, cosB1 := math.Sincos(beta1)
	sinB2, cosB2 := math.Sincos(beta2)
	sinDLon, cosDLon := math.Sincos(dLon)

	// Spherical (auxiliary sphere) angular distance via the Vincenty-style
	// cosine rule on reduced latitudes — the sphere Bowring's method then
	// corrects for ellipsoidal flattening.
	cosSigma := sinB1*sinB2 + cosB1*cosB2*cosDLon
	cosSigma = math.Max(-1, math.Min(1, cosSigma))
	sigma := math.Acos(cosSigma)

	sinSigma := math.Sin(sigma)
	var sinAlpha, cos2Alpha, cos2SigmaM float64
	if sinSigma != 0 {
		sinAlpha = cosB1 * cosB2 * sinDLon / sinSigma
		cos2Alpha = 1 - sinAlpha*sinAlpha
		if cos2Alpha != 0 {
			cos2SigmaM = cosSigma - 2*sinB1*sinB2/cos2Alpha
		}
	}

	// Bowring's ellipsoidal correction term applied to the spherical arc
	// length, expanded to first order in flattening.
	h1 := (f + f*f) / 4 * cos2Alpha
	h2 := f * f / 8 * cos2Alpha * (1 - cos2Alpha)
	correctedSigma := sigma + h1*sinSigma - h2*sigma*(3*cos2SigmaM*cos2SigmaM-1)/3

	distance = a * (1 - f*sinAlpha*sinAlpha/2) * correctedSigma

	azimuth = math.Atan2(cosB2*sinDLon, cosB1*sinB2-sinB1*cosB2*cosDLon)
	if azimuth < 0 {
		azimuth += 2 * math.Pi
	}
	zenith = math.Pi/2 - sigma

	return distance, azimuth, zenith
}

// InverseGeodesicDeg is InverseGeodesic with (lon, lat) inputs in degrees,
// matching the degree-based IGM longitude/latitude values stored in a
// geographic IGM. It returns only the distance in metres.
func (e Ellipsoid) InverseGeodesicDeg(lon1, lat1, lon2, lat2 float64) (distanceM float64) {
	const deg2rad = math.Pi / 180
	d, _, _ := e.InverseGeodesic(lon1*deg2rad, lat1*deg2rad, lon2*deg2rad, lat2*deg2rad)
	return d
}

// DestinationPoint returns the point reached by travelling distanceM metres
// from (lon, lat) along the given azimuth (radians), using the same
// auxiliary-sphere approximation as InverseGeodesic. Used to build the
// metres→degrees AABB conversion of spec.md §4.4 (east/north azimuths from
// the home point).
func (e Ellipsoid) DestinationPoint(lonDeg, latDeg, azimuthRad, distanceM float64) (lonOut, latOut float64) {
	const deg2rad = math.Pi / 180
	const rad2deg = 180 / math.Pi
	f := e.flattening()
	lat1 := latDeg * deg2rad
	lon1 := lonDeg * deg2rad
	beta1 := math.Atan((1 - f) * math.Tan(lat1))

	sigma := distanceM / e.A
	sinB1, cosB1 := math.Sincos(beta1)
	sinAz, cosAz := math.Sincos(azimuthRad)
	sinSigma, cosSigma := math.Sincos(sigma)

	sinBeta2 := sinB1*cosSigma + cosB1*sinSigma*cosAz
	beta2 := math.Asin(math.Max(-1, math.Min(1, sinBeta2)))
	lat2 := math.Atan(math.Tan(beta2) / (1 - f))

	y := sinSigma * sinAz
	x := cosB1*cosSigma - sinB1*sinSigma*cosAz
	dLon := math.Atan2(y, x)
	lon2 := lon1 + dLon

	return lon2 * rad2deg, lat2 * rad2deg
}
