package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Samijain03/Collab-X/internal/bot"
	"github.com/Samijain03/Collab-X/internal/chat"
	"github.com/Samijain03/Collab-X/internal/config"
	"github.com/Samijain03/Collab-X/internal/db"
	myMiddleware "github.com/Samijain03/Collab-X/internal/middleware"
	"github.com/Samijain03/Collab-X/internal/room"
	"github.com/Samijain03/Collab-X/internal/runner"
	"github.com/Samijain03/Collab-X/internal/user"
	"github.com/Samijain03/Collab-X/internal/workspace"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// 1. Config
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DB_DSN is not set")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is not set")
	}

	// 2. Platform layer: postgres
	database, err := db.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	logger.Info().Msg("connected to postgres")

	if err := database.AutoMigrate(); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Msg("database schema initialized")

	// 3. Platform layer: redis (optional; without it, fan-out is local only)
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		logger.Info().Msg("connected to redis")
	}

	// 4. User feature (identity/authorization provider)
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)

	// 5. Room infrastructure
	registry := room.NewRegistry()
	broadcaster := room.NewBroadcaster(registry, redisClient, logger)
	go broadcaster.SubscribeLoop(context.Background())

	// 6. Workspace feature
	nodeStore := workspace.NewPostgresStore(database.Conn)
	tree := workspace.NewTree(nodeStore)
	presence := workspace.NewPresenceTracker()

	// 7. Code execution + AI collaborator
	exec := runner.NewSubprocess(cfg.PythonBin, logger)
	provider := bot.NewCollaborator(cfg.BotProvider, cfg.BotAPIKey, cfg.BotModel)
	pipeline := bot.NewPipeline(broadcaster, tree, provider, logger)

	// 8. Chat feature
	chatRepo := chat.NewRepository(database.Conn)
	chatHandler := chat.NewHandler(registry, broadcaster, chatRepo, userService, pipeline, exec, logger)
	workspaceHandler := workspace.NewHandler(registry, broadcaster, tree, presence, userService, exec, logger)

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 9. Routes
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(myMiddleware.RequestLogger(logger))

	// Public
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "index.html")
	})

	// Protected (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/users/search", userHandler.SearchUsers)
		r.Get("/api/contacts", userHandler.ListContacts)
		r.Post("/api/contacts/requests", userHandler.SendContactRequest)
		r.Get("/api/contacts/requests", userHandler.ListContactRequests)
		r.Post("/api/contacts/requests/{requestID}/accept", userHandler.AcceptContactRequest)
		r.Post("/api/contacts/requests/{requestID}/decline", userHandler.DeclineContactRequest)
		r.Post("/api/groups", userHandler.CreateGroup)
		r.Get("/api/groups", userHandler.ListGroups)
		r.Get("/api/messages", chatHandler.GetChatHistory)

		// WebSocket (real-time)
		r.Get("/ws/chat/{contactID}", chatHandler.ServeChat)
		r.Get("/ws/group/{groupID}", chatHandler.ServeGroup)
		r.Get("/ws/workspace/{key}", workspaceHandler.ServeWs)
	})

	logger.Info().Str("addr", cfg.Addr).Msg("server starting")
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
