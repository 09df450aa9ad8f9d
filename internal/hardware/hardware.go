// Package hardware brings up the node's peripherals once at boot and hands
// them to the sensor reader as interfaces.
package hardware

import (
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"cloudpico-node/drivers/lps22"
	"cloudpico-node/internal/config"
	"cloudpico-node/internal/sensor"
)

type Peripherals struct {
	ADC       sensor.AnalogInput
	Barometer sensor.Barometer
	Health    sensor.HealthSource
	// Indicator is nil when no LED is configured.
	Indicator *LED

	closers []func() error
}

// Close releases everything Open acquired, in reverse order.
func (p *Peripherals) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Open initialises the configured backend. On error nothing is left open.
func Open(cfg config.Config, logger *slog.Logger) (*Peripherals, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.SensorBackend {
	case config.BackendSimulated:
		logger.Warn("using simulated sensors")
		sim := NewSimulated(cfg.Barometer)
		return &Peripherals{ADC: sim, Barometer: sim, Health: sim}, nil
	default:
		return openPeriph(cfg, logger)
	}
}

func openPeriph(cfg config.Config, logger *slog.Logger) (p *Peripherals, err error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	for _, d := range state.Loaded {
		logger.Debug("periph driver loaded", "driver", d.String())
	}
	for _, f := range state.Failed {
		logger.Warn("periph driver failed", "driver", f.D.String(), "err", f.Err)
	}

	p = &Peripherals{}
	defer func() {
		if err != nil && p != nil {
			_ = p.Close()
			p = nil
		}
	}()

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return p, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	p.closers = append(p.closers, bus.Close)
	logger.Info("i2c bus open", "bus", bus.String())

	adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: cfg.ADCAddress})
	if err != nil {
		return p, fmt.Errorf("ads1115 at %#x: %w", cfg.ADCAddress, err)
	}
	pin, err := adc.PinForChannel(adcChannels[cfg.ADCChannel], adcFullScale, adcSampleRate, ads1x15.SaveEnergy)
	if err != nil {
		return p, fmt.Errorf("ads1115 channel %d: %w", cfg.ADCChannel, err)
	}
	p.closers = append(p.closers, pin.Halt)
	p.ADC = &ads1115Input{pin: pin}

	switch cfg.Barometer {
	case config.BarometerBMX280:
		dev, err := bmxx80.NewI2C(bus, cfg.BarometerAddress, &bmxx80.DefaultOpts)
		if err != nil {
			return p, fmt.Errorf("bmx280 at %#x: %w", cfg.BarometerAddress, err)
		}
		p.closers = append(p.closers, dev.Halt)
		p.Barometer = &bmx280Barometer{dev: dev}
	default:
		dev := lps22.New(bus)
		if err := dev.Configure(lps22.Config{Address: cfg.BarometerAddress}); err != nil {
			return p, fmt.Errorf("lps22 at %#x: %w", cfg.BarometerAddress, err)
		}
		p.Barometer = &lps22Barometer{dev: dev}
	}

	health, err := NewSystemHealth(cfg.SysPath, cfg.ProcPath, cfg.ThermalZone, cfg.WiFiInterface)
	if err != nil {
		return p, err
	}
	p.Health = health

	if cfg.LEDPin != "" {
		led := gpioreg.ByName(cfg.LEDPin)
		if led == nil {
			return p, fmt.Errorf("unknown LED_PIN %q", cfg.LEDPin)
		}
		p.Indicator = NewLED(led)
		p.closers = append(p.closers, p.Indicator.Off)
	}

	logger.Info("peripherals ready",
		"adc", fmt.Sprintf("ads1115@%#x/ch%d", cfg.ADCAddress, cfg.ADCChannel),
		"barometer", fmt.Sprintf("%s@%#x", cfg.Barometer, cfg.BarometerAddress),
		"led", cfg.LEDPin,
	)
	return p, nil
}
