package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aspireabroad/visa-portal-api/internal/config"
	"github.com/aspireabroad/visa-portal-api/internal/database"
	"github.com/aspireabroad/visa-portal-api/internal/handler"
	"github.com/aspireabroad/visa-portal-api/internal/middleware"
	"github.com/aspireabroad/visa-portal-api/internal/models"
	"github.com/aspireabroad/visa-portal-api/internal/notify"
	"github.com/aspireabroad/visa-portal-api/internal/ratelimit"
	"github.com/aspireabroad/visa-portal-api/internal/repository"
	"github.com/aspireabroad/visa-portal-api/internal/router"
	"github.com/aspireabroad/visa-portal-api/internal/service"
	"github.com/aspireabroad/visa-portal-api/internal/session"
	cloud "github.com/aspireabroad/visa-portal-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.StudentProfile{},
		&models.Document{},
		&models.Notification{},
		&models.PasswordResetAuditLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	var emailSender notify.EmailSender
	if cfg.SendEmailEnabled && cfg.SMTPHost != "" {
		smtpSender, err := notify.NewSMTPEmailSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create smtp sender: %v", err)
		}
		emailSender = smtpSender
	} else {
		emailSender = notify.NewLogEmailSender(logger)
	}
	dispatcher := notify.NewDispatcher(emailSender, notify.NewLogSMSSender(logger), cfg.SendEmailEnabled, cfg.SendSMSEnabled, logger)

	sessions := session.NewStore(redisClient, cfg.SessionTTL)
	limiter := ratelimit.New(redisClient, "visa")

	issueToken := func(sess session.Session) (string, error) {
		return middleware.IssueToken(cfg.JWTSecret, sess, cfg.SessionTTL)
	}

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewStudentProfileRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewResetAuditRepository(db)

	authService := service.NewAuthService(userRepo, auditRepo, limiter, sessions, dispatcher, issueToken, validate, service.AuthConfig{
		AppName:                cfg.AppName,
		TempPasswordValidity:   cfg.TempPasswordValidity,
		ResetMaxPerUserPerDay:  cfg.ResetMaxPerUserPerDay,
		ResetMaxPerIPPerHour:   cfg.ResetMaxPerIPPerHour,
		PasswordChangeMaxFails: cfg.PasswordChangeMaxFails,
		PasswordChangeLockout:  cfg.PasswordChangeLockout,
	}, logger)
	documentService := service.NewDocumentService(documentRepo, profileRepo, notificationRepo, uploader, validate, cfg.UploadMaxMB, logger)
	studentService := service.NewStudentService(profileRepo, documentRepo, notificationRepo, uploader, validate, logger)
	adminService := service.NewAdminStudentService(userRepo, profileRepo, documentRepo, notificationRepo, sessions, uploader, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) << 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Setup(app, router.Handlers{
		Health:   handler.NewHealthHandler(db, redisClient),
		Auth:     handler.NewAuthHandler(authService, logger),
		Student:  handler.NewStudentHandler(studentService, logger),
		Document: handler.NewDocumentHandler(documentService, logger),
		Admin:    handler.NewAdminStudentHandler(adminService, logger),
	}, cfg.JWTSecret, sessions)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
