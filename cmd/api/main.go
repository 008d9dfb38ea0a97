package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"otp-auth/internal/config"
	"otp-auth/internal/db"
	"otp-auth/internal/email"
	apihttp "otp-auth/internal/http"
	"otp-auth/internal/repository"
	"otp-auth/internal/service"
	"otp-auth/internal/upload"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		logger.Fatal("image store init", zap.Error(err), zap.String("kind", cfg.ImageStore))
	}

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	} else {
		logger.Warn("smtp not configured, login otp delivery will fail")
	}
	emailSender = email.NewRetryingSender(emailSender, logger, cfg.EmailSendTimeout, cfg.EmailSendRetries)

	var (
		ipLimiter   service.RateLimiter
		otpLimiter  service.RateLimiter
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory rate limits", zap.Error(err))
		} else {
			ipLimiter = service.NewRedisRateLimiter(redisClient, logger, "rl:ip:", cfg.RateLimitWindow, cfg.RateLimitMax)
			otpLimiter = service.NewRedisRateLimiter(redisClient, logger, "rl:otp:", cfg.LoginLimitWindow, cfg.LoginLimitMax)
		}
		cancel()
	}
	if ipLimiter == nil {
		ipLimiter = service.NewMemoryRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
		otpLimiter = service.NewMemoryRateLimiter(cfg.LoginLimitWindow, cfg.LoginLimitMax)
	}

	jwtSvc, err := service.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Fatal("jwt init", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	authSvc := service.NewAuthService(logger, userRepo, images, emailSender, jwtSvc, otpLimiter)
	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	imageHandler := apihttp.NewImageHandler(logger, images)
	router, err := apihttp.NewRouter(logger, authHandler, imageHandler, ipLimiter, cfg.TrustedProxies)
	if err != nil {
		logger.Fatal("router init", zap.Error(err))
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("image_store", cfg.ImageStore))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newImageStore(ctx context.Context, cfg *config.Config) (upload.Store, error) {
	switch cfg.ImageStore {
	case "s3":
		return upload.NewS3Store(ctx, upload.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
	case "", "local":
		return upload.NewLocalStore(cfg.UploadDir)
	default:
		return nil, errors.New("unknown IMAGE_STORE, expected local or s3")
	}
}
