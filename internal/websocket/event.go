package websocket

import "time"

// 서버 → 클라이언트 이벤트 타입
const (
	EventMaterialStatusChanged   = "material.status_changed"
	EventMaterialReviewRequested = "material.review_requested"
	EventNotificationCreated     = "notification.created"
	EventSessionInvalidated      = "session.invalidated"
	EventPong                    = "pong"
)

// Event 소켓으로 전달되는 메시지
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

func NewEvent(eventType string, data interface{}) Event {
	return Event{Type: eventType, Data: data, At: time.Now().UTC()}
}
