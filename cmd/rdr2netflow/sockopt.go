package main

import (
	"syscall"
)

// socketBufferControl returns a net.ListenConfig.Control hook that applies
// size as a hint to the listening socket's send and receive buffers, best
// effort: a failure to set either option is not fatal.
func socketBufferControl(size int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		return c.Control(func(fd uintptr) {
			syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, size)
			syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, size)
		})
	}
}
