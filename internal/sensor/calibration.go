package sensor

const (
	// MaxADC is the full-scale code of the normalised 16-bit analog reading.
	MaxADC = 65535
	// ReferenceVoltage is the analog reference the raw code is scaled against.
	ReferenceVoltage = 3.3

	// Anemometer transfer function anchors (volts → m/s).
	anchorLowVolts  = 0.418
	anchorLowMS     = 0.0
	anchorHighVolts = 2.0
	anchorHighMS    = 32.4

	FeetPerSecondPerMS = 3.28084
	MPHPerMS           = 2.23694
)

// Voltage converts a raw analog code to volts.
func Voltage(raw uint16) float64 {
	return float64(raw) / MaxADC * ReferenceVoltage
}

// WindSpeed maps anemometer output voltage to m/s along the line through
// the two calibration anchors. Out-of-range voltages are extrapolated, not
// clamped, so a reading below 0.418 V yields a negative speed.
func WindSpeed(volts float64) float64 {
	// Normalise first so both anchors map exactly: t is 0 at the low anchor
	// and 1 at the high anchor.
	t := (volts - anchorLowVolts) / (anchorHighVolts - anchorLowVolts)
	return anchorLowMS + t*(anchorHighMS-anchorLowMS)
}

func MSToFtS(ms float64) float64 { return ms * FeetPerSecondPerMS }

func MSToMPH(ms float64) float64 { return ms * MPHPerMS }

func CelsiusToFahrenheit(c float64) float64 { return c*1.8 + 32.0 }

// Derived holds the values computed from a Sample. It has no storage of its
// own; call Derive again for every sample.
type Derived struct {
	WindSpeedMS  float64
	WindSpeedFtS float64
	WindSpeedMPH float64
	TemperatureF float64
}

func Derive(s Sample) Derived {
	ms := WindSpeed(Voltage(s.RawADC))
	return Derived{
		WindSpeedMS:  ms,
		WindSpeedFtS: MSToFtS(ms),
		WindSpeedMPH: MSToMPH(ms),
		TemperatureF: CelsiusToFahrenheit(s.TemperatureC),
	}
}
