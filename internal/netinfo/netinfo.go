// Package netinfo finds the address the node reports as its own.
package netinfo

import (
	"fmt"
	"net"
)

// InterfaceIPv4 returns the first IPv4 address assigned to the named
// interface.
func InterfaceIPv4(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", fmt.Errorf("interface %q: %w", name, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", fmt.Errorf("interface %q addresses: %w", name, err)
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok {
			if ip4 := ipn.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", fmt.Errorf("interface %q has no IPv4 address", name)
}

// BoundAddress picks, in order: the explicit override, the interface's IPv4
// address, then the listener's IP if it is not a wildcard. It returns "" if
// none applies.
func BoundAddress(override, iface string, listen net.Addr) string {
	if override != "" {
		return override
	}
	if iface != "" {
		if ip, err := InterfaceIPv4(iface); err == nil {
			return ip
		}
	}
	if tcp, ok := listen.(*net.TCPAddr); ok && tcp.IP != nil && !tcp.IP.IsUnspecified() {
		return tcp.IP.String()
	}
	return ""
}

// Port returns the TCP port of a listener address, or 0.
func Port(listen net.Addr) int {
	if tcp, ok := listen.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
