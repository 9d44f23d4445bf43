package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/auth-system/internal/api"
	"github.com/99minutos/auth-system/internal/core/ports"
	"github.com/99minutos/auth-system/internal/core/service"
	"github.com/99minutos/auth-system/internal/core/token"
	"github.com/99minutos/auth-system/internal/infrastructure/config"
	mongodb "github.com/99minutos/auth-system/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/auth-system/internal/infrastructure/db/redis"
	"github.com/99minutos/auth-system/internal/infrastructure/mail"
	"github.com/99minutos/auth-system/internal/infrastructure/queue"
	"github.com/99minutos/auth-system/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "authd",
		Env:     cfg.Env,
	})

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	identities := mongodb.NewIdentityRepository(db)
	sessions := mongodb.NewSessionRepository(db)
	ledger := redisdb.NewRotationLedger(rdb)

	// --- Token primitives ---
	signer, err := token.NewSigner(token.SignerConfig{
		Secret: []byte(cfg.Token.Secret),
		Issuer: cfg.Token.Issuer,
		TTL:    cfg.Token.AccessTTL,
	})
	if err != nil {
		return err
	}
	opaque := token.NewOpaque()
	hasher := token.NewBcryptHasher(0)

	// --- Mail ---
	mailer, err := newMailer(cfg.Mail, log)
	if err != nil {
		return err
	}
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, 0, mailer, logger.Component("mail_dispatcher"))
	// Workers outlive the signal context so Shutdown can drain the queue.
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()
	dispatcher.Start(workerCtx)

	// --- Services ---
	creds := service.NewCredentialStore(identities, hasher)
	registry := service.NewSessionRegistry(sessions, ledger, opaque, cfg.Token.RefreshTTL, logger.Component("session_registry"))
	proofs := service.NewProofState(identities, creds, opaque, cfg.Token.VerificationTTL, cfg.Token.ResetTTL)

	authService := service.NewAuthService(service.AuthDeps{
		Credentials: creds,
		Sessions:    registry,
		Proofs:      proofs,
		Signer:      signer,
		Notifier:    dispatcher,
		Mail:        service.NewMailTemplates(cfg.FrontendURL),
	}, logger.Component("auth_service"))
	userService := service.NewUserService(identities, creds, registry, logger.Component("user_service"))
	gate := service.NewGate(signer, creds, logger.Component("gate"))

	e := api.NewRouter(api.Deps{
		Auth:         authService,
		Users:        userService,
		Gate:         gate,
		Mongo:        db,
		Redis:        rdb,
		CookieSecure: cfg.CookieSecure,
		Logger:       logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("mail queue not fully drained")
	}

	log.Info().Msg("stopped")
	return nil
}

// newMailer falls back to logging messages when no SMTP host is configured.
func newMailer(cfg config.MailConfig, log zerolog.Logger) (ports.Mailer, error) {
	if cfg.Host == "" {
		log.Warn().Msg("SMTP_HOST not set, mails will only be logged")
		return mail.NewLogMailer(logger.Component("log_mailer")), nil
	}
	return mail.NewSMTPSender(mail.Config{
		Host:       cfg.Host,
		Port:       cfg.Port,
		User:       cfg.User,
		Password:   cfg.Password,
		FromName:   cfg.FromName,
		MaxRetries: cfg.MaxRetries,
	})
}
