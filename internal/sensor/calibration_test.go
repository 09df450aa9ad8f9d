package sensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindSpeed_Anchors(t *testing.T) {
	assert.Equal(t, 0.0, WindSpeed(0.418))
	assert.Equal(t, 32.4, WindSpeed(2.0))
}

func TestWindSpeed_NotClamped(t *testing.T) {
	t.Run("below low anchor is negative", func(t *testing.T) {
		// (0 - 0.418) / 1.582 * 32.4
		assert.InDelta(t, -8.5608, WindSpeed(0), 1e-4)
		assert.Less(t, WindSpeed(0.2), 0.0)
	})

	t.Run("above high anchor exceeds 32.4", func(t *testing.T) {
		assert.Greater(t, WindSpeed(2.5), 32.4)
		assert.InDelta(t, 59.0245, WindSpeed(ReferenceVoltage), 1e-4)
	})
}

func TestWindSpeed_LinearAndMonotonic(t *testing.T) {
	slope := 32.4 / (2.0 - 0.418)
	prev := math.Inf(-1)
	for v := -1.0; v <= 4.0; v += 0.05 {
		got := WindSpeed(v)
		assert.Greater(t, got, prev, "not increasing at %v V", v)
		assert.InDelta(t, (v-0.418)*slope, got, 1e-9, "off the line at %v V", v)
		prev = got
	}
}

func TestVoltage(t *testing.T) {
	assert.Equal(t, 0.0, Voltage(0))
	assert.Equal(t, ReferenceVoltage, Voltage(MaxADC))
	assert.InDelta(t, 1.65, Voltage(32767), 1e-4)
}

func TestConversionsAreExact(t *testing.T) {
	for _, ms := range []float64{-8.5, 0, 0.1, 1, 12.75, 32.4, 1e6} {
		assert.Equal(t, ms*3.28084, MSToFtS(ms))
		assert.Equal(t, ms*2.23694, MSToMPH(ms))
	}
	for _, c := range []float64{-40, -17.5, 0, 21.3, 100} {
		assert.Equal(t, c*1.8+32.0, CelsiusToFahrenheit(c))
	}
	assert.Equal(t, 32.0, CelsiusToFahrenheit(0))
	assert.Equal(t, 212.0, CelsiusToFahrenheit(100))
	assert.Equal(t, -40.0, CelsiusToFahrenheit(-40))
}

func TestDerive(t *testing.T) {
	t.Run("raw zero extrapolates below the anchor", func(t *testing.T) {
		d := Derive(Sample{RawADC: 0, TemperatureC: 20})
		assert.InDelta(t, -8.5608, d.WindSpeedMS, 1e-4)
		assert.Equal(t, d.WindSpeedMS*3.28084, d.WindSpeedFtS)
		assert.Equal(t, d.WindSpeedMS*2.23694, d.WindSpeedMPH)
		assert.Equal(t, 68.0, d.TemperatureF)
	})

	t.Run("two volts is the high anchor", func(t *testing.T) {
		ms := WindSpeed(2.0)
		assert.Equal(t, 32.4, ms)
		assert.InDelta(t, 106.30, MSToFtS(ms), 0.01)
		assert.InDelta(t, 72.48, MSToMPH(ms), 0.01)
	})

	t.Run("raw code nearest two volts", func(t *testing.T) {
		// 2.0 / 3.3 * 65535 = 39718.18
		d := Derive(Sample{RawADC: 39718})
		assert.InDelta(t, 32.4, d.WindSpeedMS, 0.01)
	})

	t.Run("deterministic", func(t *testing.T) {
		s := Sample{RawADC: 12345, TemperatureC: 3.25}
		assert.Equal(t, Derive(s), Derive(s))
	})
}
