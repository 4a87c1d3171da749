package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/machinelog/internal/core"
)

// channelHTTP tags submissions received through this server in the log.
const channelHTTP = "http"

// withRequestMetadata adds the client IP and channel to the context for the
// submission log.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	return core.ContextWithChannel(ctx, channelHTTP)
}

// clientIP strips the port from RemoteAddr. TrustedRealIP has already
// replaced it with the forwarded address when the peer is a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
