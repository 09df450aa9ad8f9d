package hardware

import (
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"cloudpico-node/drivers/lps22"
	"cloudpico-node/internal/config"
	"cloudpico-node/internal/sensor"
)

type lps22Barometer struct {
	dev lps22.Device
}

func (b *lps22Barometer) Name() string { return config.BarometerLPS22 }

func (b *lps22Barometer) Sense() (sensor.Environment, error) {
	var s lps22.Sample
	if err := b.dev.Read(&s); err != nil {
		return sensor.Environment{}, err
	}
	return sensor.Environment{
		PressureHPa:  s.PressureHPa(),
		TemperatureC: s.TemperatureC(),
	}, nil
}

type envSenser interface {
	Sense(e *physic.Env) error
}

type bmx280Barometer struct {
	dev envSenser
}

func (b *bmx280Barometer) Name() string { return config.BarometerBMX280 }

func (b *bmx280Barometer) Sense() (sensor.Environment, error) {
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return sensor.Environment{}, err
	}
	return envToEnvironment(env), nil
}

// env.Pressure is nano Pascal and env.Temperature nano Kelvin.
func envToEnvironment(env physic.Env) sensor.Environment {
	return sensor.Environment{
		PressureHPa:  float64(env.Pressure) / float64(100*physic.Pascal),
		TemperatureC: env.Temperature.Celsius(),
	}
}

var _ envSenser = (*bmxx80.Dev)(nil)
