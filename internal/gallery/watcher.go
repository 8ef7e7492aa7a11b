package gallery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"imageshelf/internal/domain/events"
)

// Watcher follows the server's image event feed and reconnects with
// backoff when the connection drops.
type Watcher struct {
	url      string
	dialer   *websocket.Dialer
	log      *zap.Logger
	minDelay time.Duration
	maxDelay time.Duration
}

func NewWatcher(baseURL string, log *zap.Logger) (*Watcher, error) {
	u, err := EventsURL(baseURL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		url:      u,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      log,
		minDelay: DefaultBaseDelay,
		maxDelay: DefaultMaxDelay,
	}, nil
}

// EventsURL maps an http(s) API base URL to its websocket event feed.
func EventsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path += "/api/v1/images/events"
	return u.String(), nil
}

// Run calls onEvent for every event until ctx is done.
func (w *Watcher) Run(ctx context.Context, onEvent func(events.Event)) error {
	delay := w.minDelay
	for {
		connected, err := w.session(ctx, onEvent)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = w.minDelay
		}
		w.log.Warn("event feed disconnected", zap.Error(err), zap.Duration("reconnect_in", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, w.maxDelay)
	}
}

func (w *Watcher) session(ctx context.Context, onEvent func(events.Event)) (bool, error) {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", w.url, err)
	}
	defer conn.Close()
	w.log.Info("event feed connected", zap.String("url", w.url))

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var event events.Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, errors.New("server closed the feed")
			}
			return true, err
		}
		onEvent(event)
	}
}
