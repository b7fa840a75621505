package viewshed

// EarthRadiusM is the mean Earth radius used by the curvature correction.
const EarthRadiusM = 6_371_000.0

// CurvatureDrop returns the apparent elevation drop, in metres, of a point
// distanceM metres away on a spherical Earth. No refraction factor is
// applied.
func CurvatureDrop(distanceM float64) float64 {
	return distanceM * distanceM / (2.0 * EarthRadiusM)
}

// effective subtracts the curvature drop at distanceM when enabled.
func effective(elevation, distanceM float64, curvature bool) float64 {
	if curvature && distanceM > 0 {
		return elevation - CurvatureDrop(distanceM)
	}
	return elevation
}
