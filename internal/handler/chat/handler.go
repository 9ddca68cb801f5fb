package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dodohu918/Medical-chatbot/internal/model/triage"
	triageservice "github.com/dodohu918/Medical-chatbot/internal/service/triage"
)

// Handler 聊天机器人的HTTP处理器
type Handler struct {
	store  triageservice.SessionStore
	engine *triageservice.Engine
}

// New 创建聊天处理器
func New(store triageservice.SessionStore, engine *triageservice.Engine) *Handler {
	return &Handler{
		store:  store,
		engine: engine,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chatbot/start", h.handleStart)
	r.Post("/chatbot", h.handleTurn)
}

// handleStart 开启一个新会话并回传问候语
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.Create(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"user_id":  session.ID,
		"greeting": h.engine.Greeting(),
	})
}

// handleTurn 处理一轮用户消息
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"response": "invalid request body"})
		return
	}

	if payload.UserID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"response": "No user_id provided"})
		return
	}

	session, err := h.store.Get(r.Context(), payload.UserID)
	if errors.Is(err, triageservice.ErrSessionNotFound) {
		// 未知 user_id 直接以该 id 起一个新会话，保持旧版前端的使用方式。
		session = triage.Session{
			ID:          payload.UserID,
			CurrentNode: triageservice.EntryNodeID,
			CreatedAt:   time.Now().UTC(),
		}
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	reply := h.engine.Turn(r.Context(), &session, payload.Message)

	if err := h.store.Put(r.Context(), session); err != nil {
		log.Printf("[chat] failed to persist session %s: %v", session.ID, err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

// respondJSON 发送JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError 发送错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
