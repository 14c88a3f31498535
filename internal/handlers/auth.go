package handlers

import (
	"errors"
	"net/http"

	"github.com/pliu/chatvideo/internal/auth"
	"github.com/pliu/chatvideo/internal/models"
	"github.com/pliu/chatvideo/internal/store"
	"github.com/rs/zerolog/log"
)

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

type AuthHandler struct {
	Store  store.Store
	Issuer *auth.Issuer
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), creds.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		internalError(w, err, "loading user")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, creds.Password) {
		log.Info().Str("username", creds.Username).Msg("Login failed.")
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	if !user.IsActive {
		http.Error(w, "User account is inactive", http.StatusForbidden)
		return
	}

	token, err := h.Issuer.Issue(user)
	if err != nil {
		internalError(w, err, "issuing access token")
		return
	}
	log.Info().Int64("user_id", user.ID).Msg("Login succeeded.")
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer", User: user})
}
