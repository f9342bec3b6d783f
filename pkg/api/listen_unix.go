//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package api

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if reusePort {
		lc.Control = func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		}
	}
	return lc.Listen(ctx, "tcp", addr)
}
