package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"eventbooking/internal/config"
	"eventbooking/internal/database"
	"eventbooking/internal/handlers"
	"eventbooking/internal/middleware"
	"eventbooking/internal/repositories"
	"eventbooking/internal/services"
	"eventbooking/internal/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// App holds the wired services of one running instance
type App struct {
	DB       *database.DB
	Auth     *services.AuthService
	Carts    *services.CartStore
	Tickets  *services.TicketService
	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Admin    *services.AdminService
	Logger   *slog.Logger
}

// NewApp wires repositories and services on top of db
func NewApp(db *database.DB, hasher services.PasswordHasher, logger *slog.Logger) *App {
	if hasher == nil {
		hasher = utils.NewHasher(utils.DefaultArgon2Params())
	}

	userRepo := repositories.NewUserRepository(db.DB)
	eventRepo := repositories.NewEventRepository(db.DB)
	cartRepo := repositories.NewCartRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)

	carts := services.NewCartStore(db, cartRepo, eventRepo, logger)
	return &App{
		DB:       db,
		Auth:     services.NewAuthService(userRepo, hasher, logger),
		Carts:    carts,
		Tickets:  services.NewTicketService(eventRepo, carts, logger),
		Checkout: services.NewCheckoutService(carts, orderRepo, logger),
		Orders:   services.NewOrderService(orderRepo),
		Admin:    services.NewAdminService(db, eventRepo, orderRepo, cartRepo, carts, logger),
		Logger:   logger,
	}
}

// NewRouter builds the HTTP routes for app
func NewRouter(app *App, sessions *middleware.SessionManager) http.Handler {
	logger := app.Logger
	authMiddleware := middleware.NewAuthMiddleware(app.Auth, sessions, logger)
	loginLimiter := middleware.NewLoginRateLimiter(10, time.Minute)

	authHandler := handlers.NewAuthHandler(app.Auth, sessions, logger)
	cartHandler := handlers.NewCartHandler(app.Tickets, app.Carts, app.Checkout, app.Orders, logger)
	adminHandler := handlers.NewAdminHandler(app.Admin, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer(logger))
	r.Use(authMiddleware.LoadUser)
	r.Use(middleware.Logging(logger))

	r.NotFound(middleware.NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler().ServeHTTP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := app.DB.PingContext(r.Context()); err != nil {
			middleware.JSONError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.With(middleware.LoginRateLimit(loginLimiter)).Post("/login", authHandler.Login)
	r.Post("/signup", authHandler.Signup)
	r.Post("/logout", authHandler.Logout)
	r.Get("/events", cartHandler.ListEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/account", authHandler.Account)
		r.Post("/account/password", authHandler.ChangePassword)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.ViewCart)
			r.Delete("/", cartHandler.EmptyCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{eventID}", cartHandler.UpdateItem)
			r.Delete("/items/{eventID}", cartHandler.RemoveItem)
		})
		r.Post("/checkout", cartHandler.Checkout)
		r.Get("/orders", cartHandler.ListOrders)
		r.Get("/orders/{orderNumber}", cartHandler.GetOrder)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)

		r.Get("/events", adminHandler.ListEvents)
		r.Get("/events/grouped", adminHandler.GroupedEvents)
		r.Post("/events", adminHandler.CreateEvent)
		r.Get("/events/{id}", adminHandler.GetEvent)
		r.Put("/events/{id}", adminHandler.UpdateEvent)
		r.Delete("/events/{id}", adminHandler.DeleteEvent)
		r.Post("/events/{id}/enable", adminHandler.EnableEvent)
		r.Post("/events/{id}/disable", adminHandler.DisableEvent)
		r.Get("/orders", adminHandler.ListOrders)
		r.Get("/inventory", adminHandler.Inventory)
	})

	return r
}

// Server is the HTTP front of an App
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New creates a server for cfg
func New(cfg *config.Config, app *App) *Server {
	sessions := middleware.NewSessionManager(middleware.SessionOptions{
		Name:   cfg.Session.Name,
		Secret: cfg.Session.Secret,
		MaxAge: cfg.Session.MaxAge,
		Secure: cfg.Session.Secure,
	})

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
			Handler:           NewRouter(app, sessions),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		logger: app.Logger.With("component", "server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
