package hardware

import (
	"fmt"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
)

// SystemHealth reads CPU temperature from a sysfs thermal zone and Wi-Fi
// signal level from /proc/net/wireless.
type SystemHealth struct {
	sys   sysfs.FS
	proc  procfs.FS
	zone  string
	iface string
}

func NewSystemHealth(sysPath, procPath, zone, iface string) (*SystemHealth, error) {
	sys, err := sysfs.NewFS(sysPath)
	if err != nil {
		return nil, fmt.Errorf("open sysfs %q: %w", sysPath, err)
	}
	proc, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("open procfs %q: %w", procPath, err)
	}
	return &SystemHealth{sys: sys, proc: proc, zone: zone, iface: iface}, nil
}

// CPUTemperature returns the thermal zone temperature in °C.
func (h *SystemHealth) CPUTemperature() (float64, error) {
	zones, err := h.sys.ClassThermalZoneStats()
	if err != nil {
		return 0, fmt.Errorf("read thermal zones: %w", err)
	}
	for _, z := range zones {
		if z.Name == h.zone {
			return float64(z.Temp) / 1000, nil
		}
	}
	return 0, fmt.Errorf("thermal zone %s not found", h.zone)
}

// SignalStrength returns the interface's signal level in dBm.
func (h *SystemHealth) SignalStrength() (int, error) {
	ifaces, err := h.proc.Wireless()
	if err != nil {
		return 0, fmt.Errorf("read wireless stats: %w", err)
	}
	for _, w := range ifaces {
		if w.Name == h.iface {
			return w.QualityLevel, nil
		}
	}
	return 0, fmt.Errorf("wireless interface %s not found", h.iface)
}
