package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device is the TV found by discovery
type Device struct {
	// IP is the IPv4 address taken from the description LOCATION (e.g., "192.168.1.50")
	IP string

	// Name is the friendlyName from the description document (e.g., "LivingRoomTV")
	Name string

	// Location is the description URL the device advertised
	Location string

	// DiscoveredAt is when the device was accepted
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	if d.Name == "" {
		return d.IP
	}
	return fmt.Sprintf("%s at %s", d.Name, d.IP)
}

// ControlAddr returns the host:port of the device's control service
func (d *Device) ControlAddr(port int) string {
	return net.JoinHostPort(d.IP, strconv.Itoa(port))
}
