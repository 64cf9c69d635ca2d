package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/middleware"
	"github.com/pliu/chatapp/internal/models"
	"github.com/pliu/chatapp/internal/store"
)

// Emitter pushes realtime events to a user's live connections.
type Emitter interface {
	Emit(userID, event string, payload any) error
}

type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type MessageHandler struct {
	Store store.Store
	Hub   Emitter
	Log   *zap.Logger
}

// GetUsersForSidebar lists everyone but the caller along with per-sender unseen counts.
func (h *MessageHandler) GetUsersForSidebar(w http.ResponseWriter, r *http.Request) {
	me, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	users, err := h.Store.ListUsersExcept(r.Context(), me.ID)
	if err != nil {
		h.Log.Error("list users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	unseen, err := h.Store.UnseenCounts(r.Context(), me.ID)
	if err != nil {
		h.Log.Error("count unseen", zap.String("user_id", me.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users":          users,
		"unseenMessages": unseen,
	})
}

// GetMessages returns the conversation with {id} and marks what {id} sent as seen.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	me, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	otherID := mux.Vars(r)["id"]

	messages, err := h.Store.GetConversation(r.Context(), me.ID, otherID)
	if err != nil {
		h.Log.Error("load conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.Store.MarkConversationSeen(r.Context(), otherID, me.ID); err != nil {
		h.Log.Error("mark conversation seen", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// SendMessage stores a message to {id} and pushes it to the receiver if online.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	me, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	receiverID := mux.Vars(r)["id"]

	var req SendMessageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.Image) == "" {
		writeError(w, http.StatusBadRequest, "Message is empty")
		return
	}

	if _, err := h.Store.GetUserByID(r.Context(), receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.Log.Error("load receiver", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg := &models.Message{
		SenderID:   me.ID,
		ReceiverID: receiverID,
		Text:       req.Text,
		Image:      req.Image,
	}
	if err := h.Store.SaveMessage(r.Context(), msg); err != nil {
		h.Log.Error("save message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.Hub.Emit(receiverID, models.EventNewMessage, msg); err != nil {
		h.Log.Warn("emit new message", zap.String("receiver_id", receiverID), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, map[string]any{"newMessage": msg})
}

// MarkMessageAsSeen flags message {id} as seen when the caller is its receiver.
func (h *MessageHandler) MarkMessageAsSeen(w http.ResponseWriter, r *http.Request) {
	me, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	err := h.Store.MarkMessageSeen(r.Context(), mux.Vars(r)["id"], me.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}
	if err != nil {
		h.Log.Error("mark message seen", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{})
}
