package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"

	apicontext "github.com/ciphergram/ciphergram-server/internal/api/http/context"
	"github.com/ciphergram/ciphergram-server/internal/api/http/router"
	"github.com/ciphergram/ciphergram-server/internal/api/ws"
	"github.com/ciphergram/ciphergram-server/internal/config"
	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/metrics"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/ratelimit"
	"github.com/ciphergram/ciphergram-server/internal/registry"
	"github.com/ciphergram/ciphergram-server/internal/repository/postgres"
	"github.com/ciphergram/ciphergram-server/internal/server"
	"github.com/ciphergram/ciphergram-server/internal/service"
	storage "github.com/ciphergram/ciphergram-server/internal/storage/minio"
	"github.com/ciphergram/ciphergram-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	tokenManager := token.NewJWT(cfg.JWT.Secret)

	tokenService := service.NewTokenService(tokenManager, refreshTokenRepo, logger)
	authService := service.NewAuth(userRepo, tokenService, logger)
	ctxMgr := apicontext.NewManager()

	reg := registry.New()
	m := metrics.New(prometheus.NewRegistry(), reg.Len)

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	storageClient, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	dispatch := service.NewDispatch(userRepo, messageRepo, reg, m, logger)
	userService := service.NewUser(userRepo, messageRepo, logger)
	attachmentService := service.NewAttachment(storageClient, logger)
	adminService := service.NewAdmin(userRepo, messageRepo, reg, tokenService, logger)

	limiter := ratelimit.New(cfg.Rate.MessagesPerSecond, cfg.Rate.Burst, 10*time.Minute)
	sessionHandler := ws.NewHandler(reg, dispatch, ctxMgr, limiter, m, logger, ws.Options{
		ReadLimitBytes: cfg.WS.ReadLimitBytes,
		PongWait:       time.Duration(cfg.WS.PongWaitSeconds) * time.Second,
	})

	r := router.New(
		authService,
		tokenService,
		userService,
		dispatch,
		attachmentService,
		adminService,
		userRepo,
		sessionHandler,
		ctxMgr,
		m,
		logger,
	)
	httpServer := server.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(httpServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
