package service

import (
	"context"
	"log/slog"

	"github.com/brightcart/storefront/internal/ports"
)

// NoticeEvents translates transport-level invalidation events into one-time
// user notices. The transport never navigates; the route guard picks the
// notice up and redirects on the next request.
type NoticeEvents struct {
	Notifier ports.Notifier
	Logger   *slog.Logger
}

var _ ports.SessionEvents = (*NoticeEvents)(nil)

func (e *NoticeEvents) SessionInvalidated(ctx context.Context, sessionID, reason string) {
	if e.Logger != nil {
		e.Logger.InfoContext(ctx, "session invalidated", "session_id", sessionID, "reason", reason)
	}
	if e.Notifier == nil {
		return
	}
	e.Notifier.Push(ctx, sessionID, ports.Notice{
		Level:   ports.NoticeWarning,
		Message: "Your session has expired. Please sign in again.",
	})
}
