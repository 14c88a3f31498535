package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pliu/chatvideo/internal/store"
)

type MessageHandler struct {
	Store store.Store
}

// GetConversations lists the users the caller has exchanged live messages
// with, most recent first.
func (h *MessageHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	conversations, err := h.Store.GetConversations(r.Context(), userID)
	if err != nil {
		internalError(w, err, "listing conversations")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

// GetHistory returns the conversation with {user_id} in chronological order.
// Reading history does not mark anything read; clients send mark_read.
func (h *MessageHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	otherID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	limit, offset, ok := paging(r)
	if !ok {
		http.Error(w, "Invalid paging parameters", http.StatusBadRequest)
		return
	}

	if _, err := h.Store.GetUserByID(r.Context(), otherID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	} else if err != nil {
		internalError(w, err, "loading user")
		return
	}

	messages, err := h.Store.GetConversation(r.Context(), userID, otherID, limit, offset)
	if err != nil {
		internalError(w, err, "loading conversation")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
