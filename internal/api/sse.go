package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/canscope/canscope/internal/events"
	"github.com/canscope/canscope/internal/logging"
)

// registerSSERoutes registers the native Huma SSE endpoints for control
// events and the live frame stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of connection, capture, trace and replay events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"bus-connected":        events.BusConnectedEvent{},
		"bus-disconnected":     events.BusDisconnectedEvent{},
		"capture-started":      events.CaptureStartedEvent{},
		"capture-stopped":      events.CaptureStoppedEvent{},
		"player-state-changed": events.PlayerStateChangedEvent{},
		"delivery-error":       events.DeliveryErrorEvent{},
		"trace-saved":          events.TraceSavedEvent{},
		"trace-loaded":         events.TraceLoadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.BusConnectedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.BusDisconnectedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PlayerStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeliveryErrorEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TraceSavedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TraceLoadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "frames-stream",
		Method:      http.MethodGet,
		Path:        "/api/frames/stream",
		Summary:     "Frame Stream",
		Description: "Real-time stream of live or replayed frames. Frames are dropped rather than stalling the stream when the client falls behind.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"frame": events.FrameEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Frames arrive at bus rate; give this channel more headroom than
		// the control event stream.
		eventCh := make(chan any, 256)

		unsubscribe := events.SubscribeToChannel[events.FrameEvent](s.eventBus, eventCh)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// registerLogRoutes registers the log streaming SSE endpoint.
func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				event := events.LogEntryEvent{
					Seq:        entry.Seq,
					Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}

		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
