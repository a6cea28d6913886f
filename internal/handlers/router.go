package handlers

import (
	"net/http"

	"wallet/internal/config"
	"wallet/internal/middleware"
	"wallet/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg     config.Config
	service WalletService
	hub     *websocket.Hub
}

func New(cfg config.Config, service WalletService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:     cfg,
		service: service,
		hub:     hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	authenticated := func(r chi.Router) chi.Router {
		return r.With(middleware.Auth(h.cfg.JWTSecret), middleware.RequireAccount(h.service))
	}

	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		authenticated(r).Get("/me", h.Me)
	})
	router.Route("/wallet", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAccount(h.service))
		r.Get("/", h.GetWallet)
		r.Post("/balance", h.InitializeBalance)
		r.Post("/transactions", h.CreateTransaction)
		r.Get("/transactions", h.ListTransactions)
		r.Delete("/transactions/{id}", h.DeleteTransaction)
		r.Post("/undo", h.UndoLast)
		r.Put("/goal", h.SetGoal)
		r.Put("/job", h.SetJob)
		r.Get("/paycheck", h.GetPaycheck)
		r.Post("/paycheck", h.CollectPaycheck)
		r.Get("/spending", h.Spending)
		r.Put("/avatar", h.SetAvatar)
		r.Get("/self-check", h.SelfCheck)
		r.Get("/activity", h.Activity)
	})
	authenticated(router).Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
