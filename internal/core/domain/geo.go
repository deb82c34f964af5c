package domain

// DMSToDecimal converts degrees, minutes and seconds to decimal degrees.
// The result is negated for the southern and western hemispheres.
func DMSToDecimal(deg, minutes, seconds float64, ref string) float64 {
	dd := deg + minutes/60 + seconds/3600
	if ref == "S" || ref == "W" {
		dd = -dd
	}
	return dd
}
