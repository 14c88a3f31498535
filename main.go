package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pliu/chatvideo/internal/auth"
	"github.com/pliu/chatvideo/internal/config"
	"github.com/pliu/chatvideo/internal/handlers"
	"github.com/pliu/chatvideo/internal/middleware"
	"github.com/pliu/chatvideo/internal/models"
	"github.com/pliu/chatvideo/internal/presence"
	"github.com/pliu/chatvideo/internal/store"
	"github.com/pliu/chatvideo/internal/store/sqlstore"
	"github.com/pliu/chatvideo/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when loading settings.")
	}
	setupLogger(cfg)

	st, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connecting to database.")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrapAdmin(ctx, st, cfg.Security.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when creating the default admin.")
	}

	metrics := ws.NewMetrics(prometheus.DefaultRegisterer)
	observers := []ws.Observer{metrics}

	var mirror *presence.Mirror
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("An error occurred when connecting to redis.")
		}
		defer client.Close()
		mirror = presence.NewMirror(client, cfg.Redis.Prefix, cfg.Redis.TTL)
		observers = append(observers, mirror)
	}

	registry := ws.NewRegistry(observers...)
	if mirror != nil {
		go mirror.Run(ctx, cfg.Redis.TTL/2, registry.OnlineIDs)
	}
	dispatcher := ws.NewDispatcher(st, registry, ws.WithDispatchObserver(metrics))
	verifier := auth.NewVerifier(cfg.Security.SecretKey, st)

	presenceHandler := &handlers.PresenceHandler{Registry: registry}
	if mirror != nil {
		presenceHandler.Source = mirror
	}
	router := newRouter(routes{
		auth:     &handlers.AuthHandler{Store: st, Issuer: auth.NewIssuer(cfg.Security.SecretKey, cfg.Security.AccessTokenTTL)},
		messages: &handlers.MessageHandler{Store: st},
		groups:   &handlers.GroupHandler{Store: st},
		presence: presenceHandler,
		ws:       ws.NewServer(registry, dispatcher, verifier, cfg.WS),
		verifier: verifier,
		metrics:  promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Chatvideo is started...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("An error occurred when serving http.")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Chatvideo is quitting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("An error occurred when shutting down http server.")
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	registry.CloseAll()
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, falling back to info.")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.Debug {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

type routes struct {
	auth     *handlers.AuthHandler
	messages *handlers.MessageHandler
	groups   *handlers.GroupHandler
	presence *handlers.PresenceHandler
	ws       *ws.Server
	verifier middleware.IdentityVerifier
	metrics  http.Handler
}

func newRouter(rt routes) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	r.HandleFunc("/api/health", handlers.Health).Methods("GET")
	r.HandleFunc("/api/auth/login", rt.auth.Login).Methods("POST")
	r.Handle("/metrics", rt.metrics).Methods("GET")

	// The socket authenticates with a query token after the upgrade.
	r.HandleFunc("/api/messages/ws/{user_id:[0-9]+}", rt.ws.ServeWs)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(rt.verifier))
	api.HandleFunc("/messages/conversations", rt.messages.GetConversations).Methods("GET")
	api.HandleFunc("/messages/{user_id:[0-9]+}", rt.messages.GetHistory).Methods("GET")
	api.HandleFunc("/groups/{group_id:[0-9]+}/messages", rt.groups.GetMessages).Methods("GET")
	api.HandleFunc("/users/{user_id:[0-9]+}/presence", rt.presence.GetPresence).Methods("GET")
	return r
}

// bootstrapAdmin creates the "admin" account on first start.
func bootstrapAdmin(ctx context.Context, st store.Store, password string) error {
	_, err := st.GetUserByUsername(ctx, "admin")
	if err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{Username: "admin", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true}
	if err := st.CreateUser(ctx, admin); err != nil {
		return err
	}
	log.Info().Int64("user_id", admin.ID).Msg("Created default admin user.")
	return nil
}
