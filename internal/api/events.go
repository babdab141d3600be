package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/pcileds/internal/events"
)

// registerEventRoutes registers the native Huma SSE endpoint streaming
// device attach/detach and indication changes.
func (s *Server) registerEventRoutes() {
	if s.bus == nil {
		s.logger.Debug("Event bus not available, skipping event stream route")
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of device attach/detach and indication changes",
		Tags:        []string{"events"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, map[string]any{
		"device-attached":    events.DeviceAttachedEvent{},
		"device-detached":    events.DeviceDetachedEvent{},
		"indication-changed": events.IndicationChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.DeviceAttachedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.DeviceDetachedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.IndicationChangedEvent](s.bus, eventCh),
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
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					// Client went away.
					return
				}
			}
		}
	})
}
