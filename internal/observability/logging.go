package observability

import (
	"context"
	"log/slog"
)

// WSLogger provides structured logging for WebSocket hub lifecycle events.
type WSLogger struct {
	hubName string
	logger  *slog.Logger
}

// NewWSLogger creates a WSLogger for the given hub writing to l (slog.Default when nil).
func NewWSLogger(hubName string, l *slog.Logger) *WSLogger {
	if l == nil {
		l = slog.Default()
	}
	return &WSLogger{hubName: hubName, logger: l}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, userID uint, room string) {
	l.logger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("room", room),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, room, reason string) {
	l.logger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("room", room),
		slog.String("reason", reason),
	)
}

// LogRejected logs a connection refused by a hub limit.
func (l *WSLogger) LogRejected(ctx context.Context, userID uint, reason string) {
	l.logger.WarnContext(ctx, "websocket rejected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
	)
}
