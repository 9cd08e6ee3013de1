package service

import (
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
)

// EventPublisher pushes realtime events to connected dashboards
type EventPublisher interface {
	PublishToUser(userID uint, event ws.Event)
	PublishToRole(role string, event ws.Event)
	InvalidateSession(userID uint, event ws.Event)
}

type noopPublisher struct{}

func (noopPublisher) PublishToUser(uint, ws.Event)     {}
func (noopPublisher) PublishToRole(string, ws.Event)   {}
func (noopPublisher) InvalidateSession(uint, ws.Event) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
