package hardware

import (
	"math/rand"
	"time"

	"cloudpico-node/internal/sensor"
)

// Simulated provides plausible readings on a host without I2C hardware.
// It is used only from the loop goroutine.
type Simulated struct {
	rand     *rand.Rand
	baroName string
}

func NewSimulated(barometerName string) *Simulated {
	return &Simulated{
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		baroName: barometerName,
	}
}

func (s *Simulated) Name() string { return s.baroName }

// ReadRaw returns an anemometer voltage between 0.418 V (calm) and about
// 1.2 V (16 m/s).
func (s *Simulated) ReadRaw() (uint16, error) {
	volts := 0.418 + s.rand.Float64()*0.78
	return voltsToCode(volts), nil
}

func (s *Simulated) Sense() (sensor.Environment, error) {
	return sensor.Environment{
		PressureHPa:  1013.25 + (s.rand.Float64()-0.5)*10.0, // ±5 hPa
		TemperatureC: 22.0 + (s.rand.Float64()-0.5)*10.0,    // 17-27°C
	}, nil
}

func (s *Simulated) CPUTemperature() (float64, error) {
	return 45.0 + (s.rand.Float64()-0.5)*6.0, nil
}

func (s *Simulated) SignalStrength() (int, error) {
	return -55 - s.rand.Intn(20), nil
}
