// Package lps22 provides a driver for the ST LPS22HB/LPS22HH barometric
// pressure sensor over I2C.
//
//	d := lps22.New(bus)
//	if err := d.Configure(lps22.Config{}); err != nil { ... }
//	var s lps22.Sample
//	err := d.Read(&s)
//
// The device runs in continuous mode at the configured output data rate with
// block data update enabled, so Read only fetches the latest registers.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package lps22

import (
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/drivers"
)

// I2C addresses (SA0 high / low).
const (
	Address    = 0x5D
	AddressAlt = 0x5C
)

const (
	regWhoAmI   = 0x0F
	regCtrl1    = 0x10
	regCtrl2    = 0x11
	regStatus   = 0x27
	regPressXL  = 0x28

	whoAmILPS22HB = 0xB1
	whoAmILPS22HH = 0xB3

	ctrl1BDU      = 0x02
	ctrl2SWReset  = 0x04
	ctrl2IfAddInc = 0x10

	statusPressureReady    = 0x01
	statusTemperatureReady = 0x02

	pressureLSBPerHPa    = 4096
	temperatureLSBPerDeg = 100
)

// Rate is the output data rate written to CTRL_REG1[6:4].
type Rate uint8

const (
	RateOneShot Rate = 0
	Rate1Hz     Rate = 1
	Rate10Hz    Rate = 2
	Rate25Hz    Rate = 3
	Rate50Hz    Rate = 4
	Rate75Hz    Rate = 5
)

var (
	ErrNotFound = errors.New("lps22: device not found")
	ErrTimeout  = errors.New("lps22: timeout")
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x5D if zero.
	Address uint16
	// Rate defaults to 10 Hz.
	Rate Rate
	// ReadyTimeout bounds the wait for the first conversion after
	// Configure. Default 250 ms.
	ReadyTimeout time.Duration
}

// Sample holds raw register values. Use the helpers for engineering units.
type Sample struct {
	RawPressure    int32 // 24-bit two's complement, LSB = 1/4096 hPa
	RawTemperature int16 // LSB = 0.01 °C
}

func (s Sample) PressureHPa() float64 {
	return float64(s.RawPressure) / pressureLSBPerHPa
}

func (s Sample) TemperatureC() float64 {
	return float64(s.RawTemperature) / temperatureLSBPerDeg
}

// Device wraps an I2C connection to an LPS22 device.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg Config
	buf [5]byte
}

// New creates a new LPS22 connection. The I2C bus must already be
// configured. It does not touch the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure checks WHO_AM_I, resets the device and starts continuous
// conversion. It waits until the first pressure and temperature values are
// available.
func (d *Device) Configure(cfg Config) error {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	if cfg.Rate == RateOneShot {
		cfg.Rate = Rate10Hz
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 250 * time.Millisecond
	}
	d.cfg = cfg

	id, err := d.readReg(regWhoAmI)
	if err != nil {
		return err
	}
	// HB and HH share the registers used here.
	if id != whoAmILPS22HB && id != whoAmILPS22HH {
		return fmt.Errorf("%w: WHO_AM_I = %#02x at %#02x", ErrNotFound, id, d.Address)
	}

	if err := d.writeReg(regCtrl2, ctrl2SWReset|ctrl2IfAddInc); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)

	if err := d.writeReg(regCtrl1, byte(cfg.Rate)<<4|ctrl1BDU); err != nil {
		return err
	}
	return d.waitReady()
}

func (d *Device) waitReady() error {
	const want = statusPressureReady | statusTemperatureReady
	deadline := time.Now().Add(d.cfg.ReadyTimeout)
	for {
		st, err := d.readReg(regStatus)
		if err != nil {
			return err
		}
		if st&want == want {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Read fetches the latest pressure and temperature registers in one burst.
// Any bus error is returned as-is.
func (d *Device) Read(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.Address, []byte{regPressXL}, data); err != nil {
		return err
	}

	p := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
	// Sign-extend from 24 bits.
	out.RawPressure = int32(p<<8) >> 8
	out.RawTemperature = int16(uint16(data[3]) | uint16(data[4])<<8)
	return nil
}

func (d *Device) readReg(reg byte) (byte, error) {
	data := []byte{0}
	if err := d.bus.Tx(d.Address, []byte{reg}, data); err != nil {
		return 0, err
	}
	return data[0], nil
}

func (d *Device) writeReg(reg, val byte) error {
	return d.bus.Tx(d.Address, []byte{reg, val}, nil)
}
