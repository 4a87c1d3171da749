package core

import "context"

type contextKey string

const (
	ctxKeyClientIP contextKey = "client_ip"
	ctxKeyChannel  contextKey = "channel"
)

// ContextWithClientIP records the submitting client's address for logging.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ContextWithChannel records how a submission arrived ("http", "cli").
func ContextWithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ctxKeyChannel, channel)
}

func clientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

func channelFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyChannel).(string); ok {
		return v
	}
	return "api"
}
