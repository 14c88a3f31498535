package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pliu/chatvideo/internal/presence"
)

// PresenceSource answers whether a user is online across processes.
type PresenceSource interface {
	Get(ctx context.Context, userID int64) (presence.Status, error)
}

// OnlineChecker is the in-process view, used when no PresenceSource is set.
type OnlineChecker interface {
	Online(userID int64) bool
}

type PresenceHandler struct {
	Source   PresenceSource
	Registry OnlineChecker
}

type presenceResponse struct {
	UserID   int64  `json:"user_id"`
	Status   string `json:"status"`
	LastSeen *int64 `json:"last_seen"`
}

func (h *PresenceHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	resp := presenceResponse{UserID: userID, Status: presence.StatusOffline}
	if h.Source != nil {
		st, err := h.Source.Get(r.Context(), userID)
		if err != nil {
			internalError(w, err, "reading presence")
			return
		}
		resp.Status = st.Status
		if st.LastSeen != 0 {
			resp.LastSeen = &st.LastSeen
		}
	} else if h.Registry.Online(userID) {
		resp.Status = presence.StatusOnline
	}
	writeJSON(w, http.StatusOK, resp)
}
