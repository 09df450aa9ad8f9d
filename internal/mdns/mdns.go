// Package mdns advertises the node as <name>.local with an _http._tcp
// service record.
package mdns

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/grandcat/zeroconf"
)

const (
	ServiceType = "_http._tcp"
	Domain      = "local."
)

type Advertiser struct {
	server *zeroconf.Server
	logger *slog.Logger
}

// Record is what gets announced.
type Record struct {
	Name string
	IP   string
	Port int
	// TXT holds key=value pairs, e.g. "path=/metrics".
	TXT []string
}

func (r Record) validate() error {
	if r.Name == "" {
		return errors.New("mdns: missing instance name")
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("mdns: invalid port %d", r.Port)
	}
	if net.ParseIP(r.IP) == nil {
		return fmt.Errorf("mdns: invalid address %q", r.IP)
	}
	return nil
}

// Advertise starts answering mDNS queries for the record. The responder runs
// on zeroconf's own goroutines until Shutdown.
func Advertise(rec Record, logger *slog.Logger) (*Advertiser, error) {
	if err := rec.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	server, err := zeroconf.RegisterProxy(rec.Name, ServiceType, Domain, rec.Port, rec.Name, []string{rec.IP}, rec.TXT, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}

	logger.Info("mdns advertising",
		"host", rec.Name+"."+Domain,
		"service", ServiceType,
		"ip", rec.IP,
		"port", rec.Port,
	)
	return &Advertiser{server: server, logger: logger}, nil
}

// Shutdown withdraws the record. Safe on a nil Advertiser.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.logger.Info("mdns stopped")
}
