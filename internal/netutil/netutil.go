// Package netutil selects which local network address can reach a given
// target host, so the media URL advertised to a renderer is actually
// reachable from the renderer's subnet on a multi-homed machine.
package netutil

import (
	"fmt"
	"net"
)

// LocalIPFor "connects" a UDP socket to target:80 without sending any
// datagram, then reads back the socket's local address. The kernel's
// routing table picks the outbound interface for us; that's the interface
// address we advertise to the renderer.
func LocalIPFor(target string) (net.IP, error) {
	conn, err := net.Dial("udp4", net.JoinHostPort(target, "80"))
	if err != nil {
		return nil, fmt.Errorf("resolve local address for %s: %w", target, err)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return localAddr.IP, nil
}
