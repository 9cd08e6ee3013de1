package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/cpportal-backend/internal/middleware"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
)

// WSController 대시보드 실시간 이벤트 스트림
type WSController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWSController allowedOrigins에 "*"가 있으면 모든 Origin 허용
func NewWSController(hub *ws.Hub, allowedOrigins []string) *WSController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WSController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// HandleWebSocket 인증된 사용자의 소켓을 허브에 등록
// GET /api/v1/ws?token=
func (ctrl *WSController) HandleWebSocket(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		log.Warn("Failed to upgrade to WebSocket", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, userID, string(role))
	client.Serve()

	log.Info("WebSocket connection established", map[string]interface{}{
		"user_id": userID,
		"role":    role,
	})
}
