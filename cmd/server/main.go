package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizparty/config"
	"quizparty/internal/cache"
	"quizparty/internal/events"
	"quizparty/internal/game"
	"quizparty/internal/repository"
	"quizparty/internal/service"
	"quizparty/internal/transport/rest"
	"quizparty/internal/transport/ws"
	"quizparty/internal/voice"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database("quizparty")

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Repositories and caches
	roomRepo := repository.NewRoomRepo(db)
	partRepo := repository.NewParticipantRepo(db)
	answerRepo := repository.NewAnswerRepo(db)
	roomCache := cache.NewRoomCache(rdb)
	scores := cache.NewScoreCache(rdb)
	publisher := events.NewPublisher(rdb)

	// Voice transport
	voiceMgr := voice.NewManager(voice.NewChannelClient(cfg.VoiceSignalURL))

	// Services
	authSvc := service.NewAuthService(cfg.HostUsername, cfg.HostPassword, cfg.JWTSecret)
	roomSvc := service.NewRoomService(
		game.Timings{
			Reading:        cfg.ReadingDuration,
			Answering:      cfg.AnsweringDuration,
			ResolvedDwell:  cfg.ResolvedDwell,
			FinishedLinger: cfg.FinishedLinger,
		},
		roomRepo, partRepo, answerRepo,
		roomCache, scores, publisher, voiceMgr, authSvc,
	)
	roomSvc.SetBroadcaster(wsHub)

	// Pub/sub bridge: published snapshots fan out to websocket observers.
	go func() {
		if err := events.Bridge(ctx, rdb, wsHub); err != nil && ctx.Err() == nil {
			log.Printf("pub/sub bridge stopped: %v", err)
		}
	}()

	// Periodic full-snapshot reconciliation pass.
	go roomSvc.RunReconciler(ctx, cfg.ReconcileInterval)

	router := rest.NewRouter(&rest.Container{
		AuthService: authSvc,
		RoomService: roomSvc,
		WSHub:       wsHub,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
