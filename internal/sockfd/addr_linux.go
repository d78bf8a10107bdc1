//go:build linux
// +build linux

// File: internal/sockfd/addr_linux.go
// Author: momentics <momentics@gmail.com>
//
// Address resolution and sockaddr formatting helpers.

package sockfd

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// resolveInet turns host/port into a sockaddr plus address family.
// Hostname lookup goes through the stdlib resolver; an empty host binds
// the IPv4 wildcard.
func resolveInet(host string, port int) (unix.Sockaddr, int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, 0, fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}
	ip := tcpAddr.IP
	if ip4 := ip.To4(); ip == nil || ip4 != nil {
		sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 := ip.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return sa, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: tcpAddr.Port}
	copy(sa.Addr[:], ip.To16())
	return sa, unix.AF_INET6, nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrVM:
		return fmt.Sprintf("vsock:%d:%d", a.CID, a.Port)
	default:
		return ""
	}
}
