package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ikkim/cpportal-backend/internal/metrics"
	"github.com/ikkim/cpportal-backend/pkg/logger"
)

const (
	// Rate limiting: 최대 메시지 수 (1초당)
	maxMessagesPerSecond = 10

	sendBufferSize = 256
	opsBufferSize  = 1024

	// 로그아웃 브로드캐스트는 버리지 않고 이 시간까지 큐 자리를 기다린다
	invalidateWait = 5 * time.Second
)

// ClientMessage 클라이언트로부터 받은 메시지
type ClientMessage struct {
	Type string `json:"type"` // ping
}

// Client WebSocket 클라이언트 (탭/디바이스 1개)
type Client struct {
	Hub           *Hub
	Conn          *Conn
	UserID        uint
	Role          string
	Send          chan []byte
	MessageCount  int       // 최근 1초간 받은 메시지 수
	LastResetTime time.Time // 마지막 카운터 리셋 시간
	RateMu        sync.Mutex
}

// NewClient 소켓 없이도 만들 수 있어 테스트에서 Send 채널만 읽는다
func NewClient(hub *Hub, conn *Conn, userID uint, role string) *Client {
	return &Client{
		Hub:           hub,
		Conn:          conn,
		UserID:        userID,
		Role:          role,
		Send:          make(chan []byte, sendBufferSize),
		LastResetTime: time.Now(),
	}
}

// outbound 전달 대상과 메시지
type outbound struct {
	userID     uint
	role       string
	message    []byte
	disconnect bool // 전달 후 해당 사용자의 모든 세션 종료
}

// op는 register/unregister/전달을 한 채널로 받아 순서를 보장한다
type op struct {
	register   *Client
	unregister *Client
	deliver    *outbound
}

// Hub WebSocket 연결 관리자
type Hub struct {
	// 등록된 클라이언트들 (UserID -> []*Client - 멀티 디바이스 지원)
	clients map[uint][]*Client

	ops  chan op
	done chan struct{}

	mu sync.RWMutex
}

// NewHub Hub 생성
func NewHub() *Hub {
	return newHub(opsBufferSize)
}

func newHub(queueSize int) *Hub {
	return &Hub{
		clients: make(map[uint][]*Client),
		ops:     make(chan op, queueSize),
		done:    make(chan struct{}),
	}
}

// Run Hub 실행 (ctx 종료 시 모든 연결 정리)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		case o := <-h.ops:
			switch {
			case o.register != nil:
				h.add(o.register)
			case o.unregister != nil:
				h.remove(o.unregister)
			case o.deliver != nil:
				h.deliver(o.deliver)
			}
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	// 멀티 디바이스 지원: 클라이언트 리스트에 추가
	h.clients[client.UserID] = append(h.clients[client.UserID], client)
	total := len(h.clients[client.UserID])
	h.mu.Unlock()

	metrics.WebsocketClients.Inc()
	logger.Info("WebSocket client registered", map[string]interface{}{
		"user_id":        client.UserID,
		"total_sessions": total,
	})
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	removed := h.detach(client)
	remaining := len(h.clients[client.UserID])
	h.mu.Unlock()

	if !removed {
		return
	}
	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"user_id":            client.UserID,
		"remaining_sessions": remaining,
	})
}

// detach must be called with h.mu held
func (h *Hub) detach(client *Client) bool {
	clientList, ok := h.clients[client.UserID]
	if !ok {
		return false
	}

	newList := make([]*Client, 0, len(clientList))
	found := false
	for _, c := range clientList {
		if c == client {
			found = true
			continue
		}
		newList = append(newList, c)
	}
	if !found {
		return false
	}

	if len(newList) == 0 {
		delete(h.clients, client.UserID)
	} else {
		h.clients[client.UserID] = newList
	}
	close(client.Send)
	metrics.WebsocketClients.Dec()
	return true
}

func (h *Hub) deliver(msg *outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var targets []*Client
	if msg.role != "" {
		for _, list := range h.clients {
			for _, c := range list {
				if c.Role == msg.role {
					targets = append(targets, c)
				}
			}
		}
	} else {
		targets = append(targets, h.clients[msg.userID]...)
	}

	for _, client := range targets {
		select {
		case client.Send <- msg.message:
		default:
			// Send 채널이 막혀있음 - 연결 정리
			logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
				"user_id": client.UserID,
			})
			h.detach(client)
		}
	}

	if msg.disconnect {
		// 큐에 남은 메시지는 WritePump가 모두 쓴 뒤 연결을 닫는다
		for _, client := range h.clients[msg.userID] {
			h.detach(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, list := range h.clients {
		for _, c := range list {
			h.detach(c)
		}
	}
}

func (h *Hub) enqueue(o op) {
	select {
	case h.ops <- o:
	default:
		logger.Warn("Hub queue full, operation dropped")
	}
}

func marshalEvent(event Event) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal websocket event", err, map[string]interface{}{
			"type": event.Type,
		})
		return nil, false
	}
	return data, true
}

// PublishToUser 사용자의 모든 세션에 이벤트 전송
func (h *Hub) PublishToUser(userID uint, event Event) {
	if data, ok := marshalEvent(event); ok {
		h.enqueue(op{deliver: &outbound{userID: userID, message: data}})
	}
}

// PublishToRole 특정 권한의 모든 접속자에게 이벤트 전송
func (h *Hub) PublishToRole(role string, event Event) {
	if data, ok := marshalEvent(event); ok {
		h.enqueue(op{deliver: &outbound{role: role, message: data}})
	}
}

// InvalidateSession 이벤트를 보낸 뒤 사용자의 모든 세션을 끊는다.
// 큐가 가득 차도 버리지 않고 hub 종료 또는 invalidateWait까지 기다린다.
func (h *Hub) InvalidateSession(userID uint, event Event) {
	data, ok := marshalEvent(event)
	if !ok {
		return
	}

	timer := time.NewTimer(invalidateWait)
	defer timer.Stop()
	select {
	case h.ops <- op{deliver: &outbound{userID: userID, message: data, disconnect: true}}:
	case <-h.done:
	case <-timer.C:
		logger.Error("Session invalidation not queued, sockets stay open", nil, map[string]interface{}{
			"user_id": userID,
		})
	}
}

// Register 클라이언트 등록
func (h *Hub) Register(client *Client) {
	select {
	case h.ops <- op{register: client}:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 클라이언트 등록 해제
func (h *Hub) Unregister(client *Client) {
	select {
	case h.ops <- op{unregister: client}:
	case <-h.done:
	}
}

// IsUserOnline 사용자 온라인 여부 확인
func (h *Hub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SessionCount 사용자의 접속 세션 수
func (h *Hub) SessionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// HandleClientMessage 클라이언트 메시지 처리
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	// Rate limiting 체크
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	if msg.Type == "ping" {
		if data, ok := marshalEvent(NewEvent(EventPong, nil)); ok {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}
