package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"slotrecycler/engine"
	"slotrecycler/recycler"
)

type SSEEvent struct {
	Event string
	Data  string
}

// EventHub fans engine events out to connected SSE clients. Slow clients
// lose events rather than block the engine.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.fanOut(evt)
		case <-keepalive.C:
			h.fanOut(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

func (h *EventHub) fanOut(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *EventHub) Broadcast(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("sse: encode %s: %v", event, err)
		return
	}
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: string(data)}:
	default:
	}
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type reclaimedMessage struct {
	recycler.Reclamation
	Actions string `json:"actions"`
}

// SetupEngineListeners wires engine events to SSE broadcasts.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast(evt.Type.String(), evt.Payload.(engine.PassCompletedEvent).Summary)
	}, engine.EventPassCompleted)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		r := evt.Payload.(engine.SlotReclaimedEvent).Reclamation
		h.Broadcast(evt.Type.String(), reclaimedMessage{Reclamation: r, Actions: recycler.FormatAttempts(r.Attempts)})
	}, engine.EventSlotReclaimed)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.RecyclerStateEvent)
		h.Broadcast("recycler-state", map[string]any{
			"running": evt.Type == engine.EventRecyclerStarted,
			"actor":   ev.Actor,
		})
	}, engine.EventRecyclerStarted, engine.EventRecyclerStopped)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.ConnectionEvent)
		h.Broadcast("system-status", map[string]any{
			"bus":    evt.Type == engine.EventBusConnected,
			"detail": ev.Detail,
		})
	}, engine.EventBusConnected, engine.EventBusDisconnected)
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.stopChan:
			return
		case evt := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
