package hardware

import (
	"math"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"

	"cloudpico-node/internal/sensor"
)

const (
	// ±4.096 V full scale covers the anemometer's 0.4–2.0 V output with
	// headroom.
	adcFullScale  = 4096 * physic.MilliVolt
	adcSampleRate = 128 * physic.Hertz
)

var adcChannels = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

type adcPin interface {
	Read() (analog.Sample, error)
}

// ads1115Input reads one single-ended ADS1115 channel and rescales it to the
// 16-bit code the calibration expects.
type ads1115Input struct {
	pin adcPin
}

func (a *ads1115Input) Name() string { return "ads1115" }

func (a *ads1115Input) ReadRaw() (uint16, error) {
	s, err := a.pin.Read()
	if err != nil {
		return 0, err
	}
	return voltsToCode(float64(s.V) / float64(physic.Volt)), nil
}

// voltsToCode is the inverse of sensor.Voltage, clamped to the code range.
func voltsToCode(v float64) uint16 {
	code := math.Round(v / sensor.ReferenceVoltage * sensor.MaxADC)
	switch {
	case code <= 0 || math.IsNaN(code):
		return 0
	case code >= sensor.MaxADC:
		return sensor.MaxADC
	default:
		return uint16(code)
	}
}
