package lps22

import (
	"errors"
	"testing"
	"time"
)

// fakeBus emulates the register file of one LPS22 with auto-increment.
type fakeBus struct {
	addr   uint16
	regs   [256]byte
	writes [][]byte
	err    error
}

func newFakeBus() *fakeBus {
	b := &fakeBus{addr: Address}
	b.regs[regWhoAmI] = whoAmILPS22HB
	b.regs[regStatus] = statusPressureReady | statusTemperatureReady
	return b
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	if addr != b.addr {
		return errors.New("nack")
	}
	if len(w) == 0 {
		return nil
	}
	reg := w[0]
	if len(w) > 1 {
		b.writes = append(b.writes, append([]byte(nil), w...))
		copy(b.regs[reg:], w[1:])
	}
	for i := range r {
		r[i] = b.regs[int(reg)+i]
	}
	return nil
}

func (b *fakeBus) setSample(rawP int32, rawT int16) {
	p := uint32(rawP)
	b.regs[regPressXL] = byte(p)
	b.regs[regPressXL+1] = byte(p >> 8)
	b.regs[regPressXL+2] = byte(p >> 16)
	b.regs[regPressXL+3] = byte(uint16(rawT))
	b.regs[regPressXL+4] = byte(uint16(rawT) >> 8)
}

func TestConfigure(t *testing.T) {
	bus := newFakeBus()
	d := New(bus)
	if err := d.Configure(Config{}); err != nil {
		t.Fatalf("Configure() = %v; want nil", err)
	}
	if d.Address != Address {
		t.Errorf("Address = %#x; want %#x", d.Address, Address)
	}
	if len(bus.writes) != 2 {
		t.Fatalf("writes = %d; want 2 (reset, ctrl1)", len(bus.writes))
	}
	if got := bus.writes[1]; got[0] != regCtrl1 || got[1] != byte(Rate10Hz)<<4|ctrl1BDU {
		t.Errorf("CTRL_REG1 write = %#v; want 10 Hz with BDU", got)
	}
}

func TestConfigure_chipVariants(t *testing.T) {
	for _, tc := range []struct {
		name string
		id   byte
	}{
		{"LPS22HB", whoAmILPS22HB},
		{"LPS22HH", whoAmILPS22HH},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bus := newFakeBus()
			bus.regs[regWhoAmI] = tc.id
			d := New(bus)
			if err := d.Configure(Config{}); err != nil {
				t.Fatalf("Configure() = %v; want nil", err)
			}
		})
	}
}

func TestConfigure_wrongDevice(t *testing.T) {
	bus := newFakeBus()
	bus.regs[regWhoAmI] = 0x33
	d := New(bus)
	err := d.Configure(Config{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Configure() = %v; want ErrNotFound", err)
	}
}

func TestConfigure_altAddress(t *testing.T) {
	bus := newFakeBus()
	bus.addr = AddressAlt
	d := New(bus)
	if err := d.Configure(Config{Address: AddressAlt}); err != nil {
		t.Fatalf("Configure(alt) = %v; want nil", err)
	}
}

func TestConfigure_notReady(t *testing.T) {
	bus := newFakeBus()
	bus.regs[regStatus] = 0
	d := New(bus)
	err := d.Configure(Config{ReadyTimeout: 20 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Configure() = %v; want ErrTimeout", err)
	}
}

func TestRead(t *testing.T) {
	tests := []struct {
		name  string
		rawP  int32
		rawT  int16
		wantP float64
		wantT float64
	}{
		{"sea level", 1013 * 4096, 2150, 1013, 21.5},
		{"fractional", 4150272, -525, 1013.25, -5.25},
		{"negative raw pressure", -4096, 0, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			bus.setSample(tt.rawP, tt.rawT)
			d := New(bus)

			var s Sample
			if err := d.Read(&s); err != nil {
				t.Fatalf("Read() = %v; want nil", err)
			}
			if s.RawPressure != tt.rawP {
				t.Errorf("RawPressure = %d; want %d", s.RawPressure, tt.rawP)
			}
			if got := s.PressureHPa(); got != tt.wantP {
				t.Errorf("PressureHPa() = %v; want %v", got, tt.wantP)
			}
			if got := s.TemperatureC(); got != tt.wantT {
				t.Errorf("TemperatureC() = %v; want %v", got, tt.wantT)
			}
		})
	}
}

func TestRead_busError(t *testing.T) {
	bus := newFakeBus()
	bus.err = errors.New("i2c: remote i/o error")
	d := New(bus)

	var s Sample
	if err := d.Read(&s); err != bus.err {
		t.Fatalf("Read() = %v; want %v", err, bus.err)
	}
}
