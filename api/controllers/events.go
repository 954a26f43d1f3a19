package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/internal/events"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
)

const (
	eventBuffer       = 32
	heartbeatInterval = 25 * time.Second
)

// StreamEvents relays bus events to the caller as server-sent events.
// Per-user events (notifications, profile) are only sent to their owner.
// The subscription lives exactly as long as the connection. A slow client
// loses events rather than holding up publishers.
func StreamEvents(bus events.Bus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bus == nil {
			serviceUnavailable(w, r, logg, "events")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		ch := make(chan events.Event, eventBuffer)
		unsubscribe := bus.Subscribe("", func(evt events.Event) {
			if !visibleTo(evt, identity.UserID) {
				return
			}
			select {
			case ch <- evt:
			default:
			}
		})
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		ctx := r.Context()
		if logg != nil {
			logg.Debug(ctx, "events.stream_opened")
		}

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if logg != nil {
					logg.Debug(ctx, "events.stream_closed")
				}
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case evt := <-ch:
				payload, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, payload)
				flusher.Flush()
			}
		}
	}
}

func visibleTo(evt events.Event, userID string) bool {
	switch evt.Name {
	case events.NotificationsChanged, events.ProfileChanged:
		return evt.UserID == "" || evt.UserID == userID
	default:
		return true
	}
}
