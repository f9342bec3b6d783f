//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package api

import (
	"context"
	"net"

	"github.com/marmos91/hotschema/internal/logger"
)

func listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	if reusePort {
		logger.Debug("SO_REUSEPORT unsupported on this platform, binding exclusively", logger.Addr(addr))
	}
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}
