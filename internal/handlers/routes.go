package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/auth"
	"github.com/pliu/chatapp/internal/middleware"
	"github.com/pliu/chatapp/internal/store"
	"github.com/pliu/chatapp/internal/ws"
)

type RouterConfig struct {
	Store        store.Store
	Hub          *ws.Hub
	Signer       *auth.Signer
	Log          *zap.Logger
	MaxBodyBytes int64
}

// NewRouter wires every API endpoint and the websocket upgrade.
func NewRouter(cfg RouterConfig) *mux.Router {
	authn := &middleware.Authenticator{Tokens: cfg.Signer, Users: cfg.Store, Log: cfg.Log}
	authHandler := &AuthHandler{Store: cfg.Store, Tokens: cfg.Signer, Log: cfg.Log}
	messageHandler := &MessageHandler{Store: cfg.Store, Hub: cfg.Hub, Log: cfg.Log}

	r := mux.NewRouter()
	r.Use(middleware.Logging(cfg.Log))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.MaxBytes(cfg.MaxBodyBytes))
	}

	r.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Server is live"))
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Account endpoints
	api.HandleFunc("/auth/signup", authHandler.Signup).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	protected := api.NewRoute().Subrouter()
	protected.Use(authn.ProtectRoute)
	protected.HandleFunc("/auth/check", authHandler.CheckAuth).Methods("GET")
	protected.HandleFunc("/auth/update-profile", authHandler.UpdateProfile).Methods("PUT")

	// Message endpoints; /users must be registered before /{id}.
	protected.HandleFunc("/messages/users", messageHandler.GetUsersForSidebar).Methods("GET")
	protected.HandleFunc("/messages/send/{id}", messageHandler.SendMessage).Methods("POST")
	protected.HandleFunc("/messages/mark/{id}", messageHandler.MarkMessageAsSeen).Methods("PUT")
	protected.HandleFunc("/messages/{id}", messageHandler.GetMessages).Methods("GET")

	// WebSocket Endpoint
	r.HandleFunc("/ws", ws.Handler(cfg.Hub, authn)).Methods("GET")

	return r
}
