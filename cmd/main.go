package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"VolunteerHub/server/internal/appMiddleware"
	"VolunteerHub/server/internal/config"
	"VolunteerHub/server/internal/db"
	"VolunteerHub/server/internal/events"
	"VolunteerHub/server/internal/handlers"
	"VolunteerHub/server/internal/pool"
	"VolunteerHub/server/internal/presence"
	"VolunteerHub/server/internal/services"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %s\n", err)
	}
	if err := db.InitDB(ctx, cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %s\n", err)
	}
	defer db.Close()

	rdb := presence.Open(cfg.RedisAddr)
	adminPresence := presence.NewRegistry(rdb, 60*time.Second)

	clock := clockwork.NewRealClock()
	userService := services.NewUserService()
	chatService := services.NewChatService(userService, clock)
	messageService := services.NewMessageService(chatService, userService, clock)
	projectService := services.NewProjectService()
	bookingService := services.NewBookingService()

	clientPool := pool.NewPool()

	emitter := events.NewEmitter(cfg.EventProducer)
	emitter.AddSink(events.NewPoolSink(clientPool, chatService, adminPresence))

	dialCtx, cancelDial := context.WithTimeout(ctx, 30*time.Second)
	rabbit, err := events.NewRabbitSink(dialCtx, cfg.AMQPURL, cfg.AMQPExchange)
	cancelDial()
	if err != nil {
		// notifications over the broker are best-effort; the websocket
		// sink still delivers to connected clients
		log.Printf("RabbitMQ unavailable, events limited to websocket delivery: %v", err)
	} else {
		emitter.AddSink(rabbit)
		defer rabbit.Close()
	}

	handlers.Init(handlers.Deps{
		UserService:      userService,
		ChatService:      chatService,
		MessageService:   messageService,
		ProjectService:   projectService,
		BookingService:   bookingService,
		Emitter:          emitter,
		ClientPool:       clientPool,
		AdminPresence:    adminPresence,
		JWTSecret:        []byte(cfg.JWTSecret),
		AdminSignupToken: cfg.AdminSignupToken,
	})

	r := chi.NewRouter()

	r.Use(appMiddleware.CorsMiddleware)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appMiddleware.Metrics)

	r.Post("/register", handlers.Register)
	r.Post("/login", handlers.Login)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth([]byte(cfg.JWTSecret)))
		r.Get("/api/profile", handlers.GetProfile)

		r.Post("/api/chats", handlers.CreateOrGetChat)
		r.Get("/api/chats", handlers.GetChats)
		r.Get("/api/chats/{chat_id}", handlers.GetChatById)
		r.Post("/api/chats/{chat_id}/messages", handlers.PostMessage)
		r.Post("/api/chats/{chat_id}/read", handlers.MarkRead)
		r.Post("/api/chats/{chat_id}/assign", handlers.AssignChat)
		r.Post("/api/chats/{chat_id}/end", handlers.EndChat)

		r.Get("/api/projects", handlers.ListProjects)
		r.Post("/api/projects", handlers.CreateProject)
		r.Get("/api/projects/{project_id}", handlers.GetProjectById)
		r.Post("/api/projects/{project_id}/publish", handlers.PublishProject)
		r.Post("/api/projects/{project_id}/archive", handlers.ArchiveProject)

		r.Post("/api/projects/{project_id}/bookings", handlers.BookProject)
		r.Get("/api/bookings", handlers.GetBookings)
		r.Post("/api/bookings/{booking_id}/deposit", handlers.SetDeposit)
	})

	r.Get("/ws", handlers.WebSocketHandler)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server started on port %s\n", cfg.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %s\n", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Println("Stopping the server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %s\n", err)
	}
	log.Println("Server has been successfully stopped")
}
