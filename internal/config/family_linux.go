//go:build linux

package config

import (
	"github.com/nylssoft/godrop/internal/nft"
	"golang.org/x/sys/unix"
)

// Returns whether the kernel provides sockets for the address family.
func hostSupports(family nft.Family) bool {
	domain := unix.AF_INET
	if family == nft.FamilyIPv6 {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return false
	}
	unix.Close(fd)
	return true
}
