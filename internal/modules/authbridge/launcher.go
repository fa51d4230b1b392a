package authbridge

import (
	"context"
	"log/slog"

	"github.com/VNZray/capstone-project-sub008/internal/events"
)

// EventLauncher does not open anything itself: the app reads the redirect
// URL from the session and opens its own browser. Opening and closing are
// announced as events.
type EventLauncher struct {
	Publisher events.Publisher
	Logger    *slog.Logger
}

func (l EventLauncher) Launch(ctx context.Context, req Request) (Window, error) {
	ev := events.New(events.TypeRedirectOpened)
	ev.SessionID = req.Key
	ev.Detail = req.ReturnURL
	l.publish(ctx, ev)
	return &eventWindow{l: l, key: req.Key}, nil
}

func (l EventLauncher) publish(ctx context.Context, ev events.Event) {
	if l.Publisher == nil {
		return
	}
	if err := l.Publisher.Publish(ctx, ev); err != nil && l.Logger != nil {
		l.Logger.WarnContext(ctx, "publish redirect event failed", "type", ev.Type, "err", err)
	}
}

type eventWindow struct {
	l   EventLauncher
	key string
}

func (w *eventWindow) Close() error {
	ev := events.New(events.TypeRedirectClosed)
	ev.SessionID = w.key
	// the opening context may already be done
	w.l.publish(context.Background(), ev)
	return nil
}
