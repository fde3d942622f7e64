package tcpnet

import (
	"net"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

func htons(port uint16) uint16 {
	return port<<8 | port>>8
}

// resolve turns a "host:port" string into a raw sockaddr usable directly
// by connect(2)/the ring's Connect opcode, mirroring
// original_source/src/tcp.rs's connect, which reinterprets a resolved
// std::net::SocketAddr as its underlying libc sockaddr bytes. The
// returned pointer is heap-allocated (its address escapes this
// function), so it stays valid for as long as the caller holds it, which
// is exactly as long as the async connect operation needs it.
func resolve(address string) (domain int, sockaddr unsafe.Pointer, sockaddrLen uint32, err error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0, nil, 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, nil, 0, err
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return 0, nil, 0, err
	}
	if len(ips) == 0 {
		return 0, nil, 0, &net.AddrError{Err: "no such host", Addr: host}
	}
	ip := ips[0]

	if v4 := ip.To4(); v4 != nil {
		sa := &unix.RawSockaddrInet4{}
		sa.Family = unix.AF_INET
		sa.Port = htons(uint16(port))
		copy(sa.Addr[:], v4)
		return unix.AF_INET, unsafe.Pointer(sa), uint32(unsafe.Sizeof(*sa)), nil
	}

	v6 := ip.To16()
	sa := &unix.RawSockaddrInet6{}
	sa.Family = unix.AF_INET6
	sa.Port = htons(uint16(port))
	copy(sa.Addr[:], v6)
	return unix.AF_INET6, unsafe.Pointer(sa), uint32(unsafe.Sizeof(*sa)), nil
}
