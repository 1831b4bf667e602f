package api

import (
	"encoding/json"
	"log"

	"github.com/rawblock/rete-engine/internal/action"
	"github.com/rawblock/rete-engine/internal/diagnostics"
)

// wsSink adapts a Hub into an action.Sink and a diagnostics.EventHook, so
// every log/alert/notification side effect and every sampled diagnostics
// event reaches connected dashboard clients the same way the teacher's
// Hub streamed BroadcastCoinJoinAlert — just with the engine's own event
// vocabulary instead of CoinJoin detections.
type wsSink struct {
	hub *Hub
}

// NewWebSocketSink wraps hub as an action.Sink.
func NewWebSocketSink(hub *Hub) action.Sink { return wsSink{hub: hub} }

func (s wsSink) broadcast(kind string, payload any) {
	data, err := json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{Type: kind, Payload: payload})
	if err != nil {
		log.Printf("api: failed to marshal %s for broadcast: %v", kind, err)
		return
	}
	s.hub.Broadcast(data)
}

func (s wsSink) Log(entry action.LogEntry)              { s.broadcast("log", entry) }
func (s wsSink) TriggerAlert(alert action.Alert)        { s.broadcast("alert", alert) }
func (s wsSink) SendNotification(n action.Notification) { s.broadcast("notification", n) }

// wsEventHook adapts a Hub into a diagnostics.EventHook, streaming the
// debug event trace (rule evaluations, firings, token propagation) live.
type wsEventHook struct {
	hub *Hub
}

// NewWebSocketEventHook wraps hub as a diagnostics.EventHook.
func NewWebSocketEventHook(hub *Hub) diagnostics.EventHook { return wsEventHook{hub: hub} }

func (h wsEventHook) OnEvent(e diagnostics.Event) {
	data, err := json.Marshal(struct {
		Type    string            `json:"type"`
		Payload diagnostics.Event `json:"payload"`
	}{Type: "diagnostics_event", Payload: e})
	if err != nil {
		log.Printf("api: failed to marshal diagnostics event for broadcast: %v", err)
		return
	}
	h.hub.Broadcast(data)
}

func (h wsEventHook) Name() string { return "websocket_hub" }
