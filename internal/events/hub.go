package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cocsc-web/api/internal/ws"
)

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(topic string, event ws.Event)
}

// HubPublisher pushes events to the admin feed and to the order's own room.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := ws.Event{Type: e.Type, Payload: payload}
	p.hub.Broadcast(ws.TopicOrders, msg)
	p.hub.Broadcast(ws.OrderTopic(e.OrderID), msg)
	return nil
}
