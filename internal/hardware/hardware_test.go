package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"cloudpico-node/drivers/lps22"
	"cloudpico-node/internal/config"
	"cloudpico-node/internal/sensor"
)

func TestVoltsToCode(t *testing.T) {
	tests := []struct {
		volts float64
		want  uint16
	}{
		{0, 0},
		{-0.2, 0},
		{3.3, 65535},
		{4.0, 65535},
		{1.65, 32768},
		{2.0, 39718},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, voltsToCode(tt.volts), "voltsToCode(%v)", tt.volts)
	}
}

type fakeADCPin struct {
	sample analog.Sample
	err    error
}

func (f *fakeADCPin) Read() (analog.Sample, error) { return f.sample, f.err }

func TestADS1115Input(t *testing.T) {
	in := &ads1115Input{pin: &fakeADCPin{sample: analog.Sample{V: 2 * physic.Volt}}}
	raw, err := in.ReadRaw()
	require.NoError(t, err)
	assert.InDelta(t, 32.4, sensor.WindSpeed(sensor.Voltage(raw)), 0.01)
	assert.Equal(t, "ads1115", in.Name())

	busErr := errors.New("i2c: nack")
	in = &ads1115Input{pin: &fakeADCPin{err: busErr}}
	_, err = in.ReadRaw()
	assert.ErrorIs(t, err, busErr)
}

type fakeSenser struct {
	env physic.Env
	err error
}

func (f *fakeSenser) Sense(e *physic.Env) error {
	*e = f.env
	return f.err
}

func TestBMX280Barometer(t *testing.T) {
	b := &bmx280Barometer{dev: &fakeSenser{env: physic.Env{
		Pressure:    101325 * physic.Pascal,
		Temperature: physic.ZeroCelsius + 21500*physic.MilliKelvin,
	}}}
	env, err := b.Sense()
	require.NoError(t, err)
	assert.InDelta(t, 1013.25, env.PressureHPa, 1e-9)
	assert.InDelta(t, 21.5, env.TemperatureC, 1e-6)
	assert.Equal(t, "bmx280", b.Name())

	busErr := errors.New("i2c: timeout")
	b = &bmx280Barometer{dev: &fakeSenser{err: busErr}}
	_, err = b.Sense()
	assert.ErrorIs(t, err, busErr)
}

// lps22Bus serves a fixed burst for the output registers.
type lps22Bus struct {
	data []byte
	err  error
}

func (b *lps22Bus) Tx(_ uint16, _, r []byte) error {
	if b.err != nil {
		return b.err
	}
	copy(r, b.data)
	return nil
}

func TestLPS22Barometer(t *testing.T) {
	// 1013.25 hPa = 0x3F5400, 18.25 °C = 1825 = 0x0721
	b := &lps22Barometer{dev: lps22.New(&lps22Bus{data: []byte{0x00, 0x54, 0x3F, 0x21, 0x07}})}
	env, err := b.Sense()
	require.NoError(t, err)
	assert.Equal(t, 1013.25, env.PressureHPa)
	assert.Equal(t, 18.25, env.TemperatureC)
	assert.Equal(t, "lps22", b.Name())

	busErr := errors.New("i2c: remote i/o error")
	b = &lps22Barometer{dev: lps22.New(&lps22Bus{err: busErr})}
	_, err = b.Sense()
	assert.ErrorIs(t, err, busErr)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const wirelessStats = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
 wlan0: 0000   49.  -61.  -256        0      0      0      0      0        0
`

func newTestHealth(t *testing.T) (*SystemHealth, string, string) {
	t.Helper()
	sys := t.TempDir()
	proc := t.TempDir()

	zone := filepath.Join(sys, "class", "thermal", "thermal_zone0")
	writeFile(t, filepath.Join(zone, "type"), "cpu-thermal\n")
	writeFile(t, filepath.Join(zone, "policy"), "step_wise\n")
	writeFile(t, filepath.Join(zone, "temp"), "41855\n")
	writeFile(t, filepath.Join(proc, "net", "wireless"), wirelessStats)

	h, err := NewSystemHealth(sys, proc, "0", "wlan0")
	require.NoError(t, err)
	return h, sys, proc
}

func TestSystemHealth(t *testing.T) {
	h, _, _ := newTestHealth(t)

	cpu, err := h.CPUTemperature()
	require.NoError(t, err)
	assert.InDelta(t, 41.855, cpu, 1e-9)

	rssi, err := h.SignalStrength()
	require.NoError(t, err)
	assert.Equal(t, -61, rssi)
}

func TestSystemHealth_missing(t *testing.T) {
	t.Run("unknown zone", func(t *testing.T) {
		h, sys, proc := newTestHealth(t)
		h, err := NewSystemHealth(sys, proc, "3", "wlan0")
		require.NoError(t, err)
		_, err = h.CPUTemperature()
		assert.ErrorContains(t, err, "thermal zone 3")
	})

	t.Run("unknown interface", func(t *testing.T) {
		_, sys, proc := newTestHealth(t)
		h, err := NewSystemHealth(sys, proc, "0", "wlan1")
		require.NoError(t, err)
		_, err = h.SignalStrength()
		assert.ErrorContains(t, err, "wlan1")
	})

	t.Run("no wireless file", func(t *testing.T) {
		_, sys, proc := newTestHealth(t)
		require.NoError(t, os.Remove(filepath.Join(proc, "net", "wireless")))
		h, err := NewSystemHealth(sys, proc, "0", "wlan0")
		require.NoError(t, err)
		_, err = h.SignalStrength()
		assert.Error(t, err)
	})
}

type recordingPin struct {
	mu     sync.Mutex
	levels []gpio.Level
}

func (p *recordingPin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels = append(p.levels, l)
	return nil
}

func (p *recordingPin) snapshot() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Level(nil), p.levels...)
}

func TestLED_Blink(t *testing.T) {
	pin := &recordingPin{}
	led := NewLED(pin)
	led.pulse = 5 * time.Millisecond

	start := time.Now()
	led.Blink()
	assert.Less(t, time.Since(start), led.pulse, "Blink must not wait for the pattern")

	// Dropped: the first blink is still running.
	led.Blink()

	require.Eventually(t, func() bool { return !led.busy.Load() }, time.Second, time.Millisecond)
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low}, pin.snapshot())

	led.Blink()
	require.Eventually(t, func() bool { return len(pin.snapshot()) == 8 }, time.Second, time.Millisecond)
}

func TestLED_OnOff(t *testing.T) {
	pin := &recordingPin{}
	led := NewLED(pin)
	require.NoError(t, led.On())
	require.NoError(t, led.Off())
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low}, pin.snapshot())
}

func TestSimulated(t *testing.T) {
	sim := NewSimulated("lps22")
	reader := sensor.NewReader(sim, sim, sim)
	assert.Equal(t, "lps22", reader.BarometerName())

	for i := 0; i < 100; i++ {
		s, err := reader.Sample()
		require.NoError(t, err)
		d := sensor.Derive(s)
		assert.GreaterOrEqual(t, d.WindSpeedMS, -0.01)
		assert.LessOrEqual(t, d.WindSpeedMS, 16.1)
		assert.InDelta(t, 1013.25, s.PressureHPa, 5)
		assert.InDelta(t, 22, s.TemperatureC, 5)
		assert.LessOrEqual(t, s.SignalStrengthDBm, -55)
		assert.Greater(t, s.SignalStrengthDBm, -75)
	}
}

func TestOpen_simulated(t *testing.T) {
	p, err := Open(config.Config{SensorBackend: config.BackendSimulated, Barometer: config.BarometerBMX280}, nil)
	require.NoError(t, err)
	assert.Nil(t, p.Indicator)
	assert.Equal(t, "bmx280", sensor.NewReader(p.ADC, p.Barometer, p.Health).BarometerName())
	assert.NoError(t, p.Close())
}

func TestPeripherals_Close(t *testing.T) {
	var order []string
	closeErr := errors.New("halt failed")
	p := &Peripherals{closers: []func() error{
		func() error { order = append(order, "bus"); return nil },
		func() error { order = append(order, "adc"); return closeErr },
		func() error { order = append(order, "led"); return nil },
	}}

	err := p.Close()
	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, []string{"led", "adc", "bus"}, order)
	assert.NoError(t, p.Close(), "second Close is a no-op")
}
