package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pliu/chatvideo/internal/store"
)

type GroupHandler struct {
	Store store.Store
}

// GetMessages returns the live messages of {group_id} to its members only.
func (h *GroupHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	groupID, err := strconv.ParseInt(mux.Vars(r)["group_id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid group id", http.StatusBadRequest)
		return
	}
	limit, offset, ok := paging(r)
	if !ok {
		http.Error(w, "Invalid paging parameters", http.StatusBadRequest)
		return
	}

	if _, err := h.Store.GetGroupMember(r.Context(), groupID, userID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, "You are not a member of this group", http.StatusForbidden)
		return
	} else if err != nil {
		internalError(w, err, "checking group membership")
		return
	}

	messages, err := h.Store.GetGroupMessages(r.Context(), groupID, limit, offset)
	if err != nil {
		internalError(w, err, "loading group messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
