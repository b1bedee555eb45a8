package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/vvukelic/ripple/internal/config"
	"github.com/vvukelic/ripple/internal/database"
	"github.com/vvukelic/ripple/internal/media"
	postgresrepo "github.com/vvukelic/ripple/internal/repository/postgres"
	"github.com/vvukelic/ripple/internal/service"
	"github.com/vvukelic/ripple/internal/transport/http/handlers"
	"github.com/vvukelic/ripple/internal/transport/http/middleware"
	"github.com/vvukelic/ripple/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// Media collaborator
	uploader := media.NewUploader(cfg.MediaURL, cfg.MediaToken)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	userService := service.NewUserService(userRepo, messageRepo, uploader)
	messageService := service.NewMessageService(messageRepo, userRepo, uploader)

	// Realtime hub; the user repo doubles as the last-seen store.
	hub := ws.NewHub(userRepo)
	go hub.Run()
	messageService.SetNotifier(ws.NewHubNotifier(hub))

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	messageHandler := handlers.NewMessageHandler(messageService)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	// Realtime
	mux.HandleFunc("GET /ws", ws.ServeWS(hub))

	// Protected
	mux.Handle("GET /api/v1/auth/me", auth(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /api/v1/users", auth(http.HandlerFunc(userHandler.Sidebar)))
	mux.Handle("PATCH /api/v1/users/me/avatar", auth(http.HandlerFunc(userHandler.UpdateAvatar)))
	mux.Handle("GET /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Thread)))
	mux.Handle("POST /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Send)))

	// Start server with CORS
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("Starting server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, middleware.CORS(mux)))
}
