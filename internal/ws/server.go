package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pliu/chatvideo/internal/auth"
	"github.com/pliu/chatvideo/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// IdentityVerifier turns the connection token into a user identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

type Server struct {
	registry   *Registry
	dispatcher *Dispatcher
	verifier   IdentityVerifier
	upgrader   websocket.Upgrader
	cfg        config.WSConfig
}

func NewServer(r *Registry, d *Dispatcher, v IdentityVerifier, cfg config.WSConfig) *Server {
	s := &Server{registry: r, dispatcher: d, verifier: v, cfg: cfg}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return lo.Contains(s.cfg.AllowedOrigins, origin) || lo.Contains(s.cfg.AllowedOrigins, u.Host)
}

// ServeWs handles GET /api/messages/ws/{user_id}?token=. The socket is
// upgraded before the token is checked so that a rejection can be reported
// with a close code.
func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("An error occurred when upgrading websocket connection.")
		return
	}
	c := newConn(ws, s.cfg.WriteTimeout)

	userID, err := s.authenticate(r)
	if err != nil {
		var policy *policyError
		if errors.As(err, &policy) {
			log.Debug().Err(err).Str("conn_id", c.ID()).Msg("Rejected websocket connection.")
			c.closeWith(websocket.ClosePolicyViolation, policy.reason)
			return
		}
		log.Error().Err(err).Str("conn_id", c.ID()).Msg("An error occurred when authenticating websocket connection.")
		c.closeWith(websocket.CloseInternalServerErr, "Internal server error")
		return
	}

	s.registry.Bind(userID, c)
	log.Info().Int64("user_id", userID).Str("conn_id", c.ID()).Msg("User connected.")
	s.registry.Deliver(userID, Connected{Type: TypeConnected, UserID: userID})

	s.serve(r.Context(), userID, c)

	s.registry.Release(userID, c)
	_ = c.Close()
	log.Info().Int64("user_id", userID).Str("conn_id", c.ID()).Msg("User disconnected.")
}

type policyError struct {
	reason string
	err    error
}

func (e *policyError) Error() string {
	if e.err != nil {
		return e.reason + ": " + e.err.Error()
	}
	return e.reason
}

func (e *policyError) Unwrap() error { return e.err }

func (s *Server) authenticate(r *http.Request) (int64, error) {
	userID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil {
		return 0, &policyError{reason: "Unauthorized", err: err}
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		return 0, &policyError{reason: "Unauthorized"}
	}

	identity, err := s.verifier.Verify(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return 0, &policyError{reason: "Invalid token", err: err}
	case errors.Is(err, auth.ErrInactiveUser):
		return 0, &policyError{reason: "Unauthorized", err: err}
	case err != nil:
		return 0, err
	}
	if !identity.IsActive || identity.UserID != userID {
		return 0, &policyError{reason: "Unauthorized"}
	}
	return userID, nil
}

// serve runs the receive loop of one connection until it fails or closes.
// Frames are handled one at a time in arrival order.
func (s *Server) serve(ctx context.Context, userID int64, c *conn) {
	c.ws.SetReadLimit(s.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(c, done)

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Int64("user_id", userID).Str("conn_id", c.ID()).Msg("Websocket read failed.")
			}
			return
		}
		s.dispatcher.Dispatch(ctx, userID, frame)
	}
}

func (s *Server) keepAlive(c *conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
