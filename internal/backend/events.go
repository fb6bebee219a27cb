package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
)

// InvalidationEvent is the server's notice that entity data changed out
// from under connected clients. One is emitted after every merge and
// undo; the subscriber uses it to drop the local entity snapshot so the
// next dialog opening refetches.
type InvalidationEvent struct {
	Type      string  `json:"type"` // "merge", "undo", "analysis"
	ProjectID int64   `json:"project_id"`
	EntityIDs []int64 `json:"entity_ids,omitempty"`
}

// Subscriber maintains a websocket connection to the server's event
// stream and dispatches invalidation events to a callback.
type Subscriber struct {
	url       string
	projectID int64
	onEvent   func(InvalidationEvent)

	// reconnectWait is the pause between connection attempts.
	reconnectWait time.Duration
}

// NewSubscriber creates a subscriber for the given websocket URL
// (e.g. ws://localhost:8765/ws/events). Events for other projects are
// filtered out before the callback runs.
func NewSubscriber(url string, projectID int64, onEvent func(InvalidationEvent)) *Subscriber {
	return &Subscriber{
		url:           url,
		projectID:     projectID,
		onEvent:       onEvent,
		reconnectWait: 5 * time.Second,
	}
}

// Run connects and processes events until the context is cancelled,
// reconnecting after connection loss. It only returns the context's
// error; individual connection failures are logged and retried.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		if err := s.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("backend: event stream disconnected: %v (reconnecting in %s)", err, s.reconnectWait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectWait):
		}
	}
}

// listen holds one websocket connection open and dispatches its events.
func (s *Subscriber) listen(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil) //nolint:staticcheck
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var event InvalidationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("backend: skipping malformed event: %v", err)
			continue
		}
		if event.ProjectID != s.projectID {
			continue
		}
		s.onEvent(event)
	}
}
