package ws

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	triageservice "github.com/dodohu918/Medical-chatbot/internal/service/triage"
)

// Handler 提供与 REST 轮次语义一致的 WebSocket 聊天通道。
type Handler struct {
	store    triageservice.SessionStore
	engine   *triageservice.Engine
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(store triageservice.SessionStore, engine *triageservice.Engine) *Handler {
	return &Handler{
		store:  store,
		engine: engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chatbot/ws", h.handleWebSocket)
}

type inboundFrame struct {
	Message string `json:"message"`
}

type outboundFrame struct {
	UserID   string `json:"user_id,omitempty"`
	Response string `json:"response"`
}

// handleWebSocket 为一条连接绑定一个新会话：连上即下发问候语，
// 之后每收到一帧消息就推进一轮对话并回写回复。
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, err := h.store.Create(ctx)
	if err != nil {
		log.Printf("[ws] failed to create session: %v", err)
		return
	}

	if err := conn.WriteJSON(outboundFrame{UserID: session.ID, Response: h.engine.Greeting()}); err != nil {
		log.Printf("[ws] failed to send greeting: %v", err)
		return
	}

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] session %s read error: %v", session.ID, err)
			}
			return
		}

		reply := h.engine.Turn(ctx, &session, frame.Message)

		if err := h.store.Put(ctx, session); err != nil {
			log.Printf("[ws] failed to persist session %s: %v", session.ID, err)
		}

		if err := conn.WriteJSON(outboundFrame{Response: reply}); err != nil {
			log.Printf("[ws] session %s write error: %v", session.ID, err)
			return
		}
	}
}
