package main

import (
	"circleup/backend/internal/api/handler"
	"circleup/backend/internal/attachment"
	"circleup/backend/internal/auth"
	"circleup/backend/internal/cache"
	"circleup/backend/internal/chathub"
	"circleup/backend/internal/config"
	"circleup/backend/internal/livesync"
	"circleup/backend/internal/localization"
	"circleup/backend/internal/messages"
	"circleup/backend/internal/models"
	"circleup/backend/internal/rooms"
	"circleup/backend/internal/session"
	"circleup/backend/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Перевірка з'єднання Redis
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	// 3. Міграції (Створення таблиць)
	err = db.AutoMigrate(
		&models.ChatRoom{},
		&models.User{},
		&models.Message{},
		&models.Reply{},
		&models.UserMessage{},
	)
	if err != nil {
		// Якщо міграція не спрацювала, зупиняємо додаток
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func setupAttachments(cfg config.Config) *attachment.JetStreamBlobStore {
	blobs, err := attachment.NewJetStreamBlobStore(cfg.NATSURL, cfg.AttachmentBucket)
	if err != nil {
		log.Fatalf("Failed to connect NATS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := blobs.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize attachment bucket %s: %v", cfg.AttachmentBucket, err)
	}
	return blobs
}

func main() {
	log.Println("Starting CircleUp Backend...")
	cfg := config.Load()

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)
	blobs := setupAttachments(cfg)

	hasher := rooms.NewPasswordHasher(cfg.BcryptCost)
	directory := rooms.NewDirectory(s, hasher)
	ledger := rooms.NewLedger(s, hasher)

	if cfg.SeedRooms {
		if err := directory.SeedInitialRooms(context.Background()); err != nil {
			log.Printf("WARNING: Failed to seed rooms: %v", err)
		}
	}

	scope := models.ReactionScope(cfg.ReactionScope)
	if scope != models.ScopeUser && scope != models.ScopeGlobal {
		log.Printf("WARNING: Unknown REACTION_SCOPE %q, using %q", cfg.ReactionScope, models.ScopeUser)
		scope = models.ScopeUser
	}
	store := messages.NewStore(s, messages.Options{
		ReactionScope:   scope,
		WriteRetries:    cfg.WriteRetries,
		WriteRetryDelay: cfg.WriteRetryDelay,
	})
	pipeline := attachment.NewPipeline(blobs, attachment.Options{
		MaxBytes:      cfg.MaxAttachmentBytes,
		UploadTimeout: cfg.UploadTimeout,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	// Один Builder на процес: однакові збірки знімків об'єднуються.
	builder := livesync.NewBuilder(s, cfg.ReplyFetchConcurrency)

	localizer, err := localization.Default()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	// 2. Ініціалізація Chat Hub
	hub := chathub.NewManagerService()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	newSession := func(user models.User, deviceID string, render session.Renderer) *session.Session {
		deviceCache := cache.NewRedisCache(rdb, user.ID, deviceID)
		return session.New(user, session.Deps{
			Ledger:   ledger,
			Sync:     livesync.NewEngine(s, deviceCache, livesync.Options{UserID: user.ID, Builder: builder}),
			Messages: store,
			Cache:    deviceCache,
		}, render)
	}

	// 3. Налаштування Gin та роутингу
	r := gin.Default()
	h := handler.NewHandler(handler.Handler{
		Hub:        hub,
		Auth:       auth.NewIssuer(cfg.JWTSecret, cfg.GuestTokenTTL),
		Directory:  directory,
		Ledger:     ledger,
		Messages:   store,
		Pipeline:   pipeline,
		Blobs:      blobs,
		Localizer:  localizer,
		NewSession: newSession,
	})
	h.Routes(r)

	// Запуск HTTP-сервера
	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   cfg.UploadTimeout + 10*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("INFO: HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"circleup": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				httpErr := server.Shutdown(ctx)

				// Хаб закриває всі з'єднання та їхні підписки.
				stopHub()
				select {
				case <-hub.Done():
				case <-ctx.Done():
				}

				store.Flush()
				return errors.Join(httpErr, rdb.Close(), blobs.Close())
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}
