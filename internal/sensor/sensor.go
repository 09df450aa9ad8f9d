// Package sensor samples the node's peripherals and converts raw readings
// into engineering units.
package sensor

// Identity names the device. It is fixed at boot and passed by value.
type Identity struct {
	Name         string
	WiFiSSID     string
	BoundAddress string
}

// Environment is one barometer reading.
type Environment struct {
	PressureHPa  float64
	TemperatureC float64
}

// Sample is everything the metrics document needs, read fresh per request.
type Sample struct {
	RawADC            uint16
	PressureHPa       float64
	TemperatureC      float64
	SignalStrengthDBm int
	CPUTemperatureC   float64
}

// Health is the reduced sample behind the status page; it never touches the
// anemometer or the barometer.
type Health struct {
	CPUTemperatureC   float64
	SignalStrengthDBm int
}

// AnalogInput returns a 16-bit code in [0, MaxADC].
type AnalogInput interface {
	ReadRaw() (uint16, error)
}

type Barometer interface {
	Sense() (Environment, error)
}

type HealthSource interface {
	CPUTemperature() (float64, error)
	SignalStrength() (int, error)
}

// Named lets a peripheral report the name used in fault messages and metric
// labels. Peripherals without it fall back to a generic name.
type Named interface {
	Name() string
}

type Reader struct {
	adc    AnalogInput
	baro   Barometer
	health HealthSource
}

func NewReader(adc AnalogInput, baro Barometer, health HealthSource) *Reader {
	return &Reader{adc: adc, baro: baro, health: health}
}

// BarometerName is the sensor_name label for pressure and ambient
// temperature metrics.
func (r *Reader) BarometerName() string {
	return nameOf(r.baro, "barometer")
}

// Sample performs a blocking read of every peripheral. Any failure is
// returned as a *PeripheralError and the partial sample is discarded.
func (r *Reader) Sample() (Sample, error) {
	raw, err := r.adc.ReadRaw()
	if err != nil {
		return Sample{}, peripheralErr(nameOf(r.adc, "adc"), "read", err)
	}

	env, err := r.baro.Sense()
	if err != nil {
		return Sample{}, peripheralErr(r.BarometerName(), "sense", err)
	}

	h, err := r.Health()
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		RawADC:            raw,
		PressureHPa:       env.PressureHPa,
		TemperatureC:      env.TemperatureC,
		SignalStrengthDBm: h.SignalStrengthDBm,
		CPUTemperatureC:   h.CPUTemperatureC,
	}, nil
}

func (r *Reader) Health() (Health, error) {
	cpu, err := r.health.CPUTemperature()
	if err != nil {
		return Health{}, peripheralErr("cpu", "temperature", err)
	}
	rssi, err := r.health.SignalStrength()
	if err != nil {
		return Health{}, peripheralErr("wifi", "signal strength", err)
	}
	return Health{CPUTemperatureC: cpu, SignalStrengthDBm: rssi}, nil
}

func nameOf(v any, fallback string) string {
	if n, ok := v.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fallback
}
