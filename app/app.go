// Package app wires configuration, storage and services together. Both the
// HTTP server and the grievctl command build their dependencies here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"grievance/config"
	"grievance/notification"
	"grievance/repository"
	"grievance/schema"
	"grievance/service"
	"grievance/worker"
)

// App holds every long-lived dependency of the process
type App struct {
	Config *config.Config
	DB     *sql.DB

	Complaints *repository.ComplaintRepository
	Admins     *repository.AdminRepository
	Audit      *repository.AuditRepository
	NotifyLogs *repository.NotificationLogRepository

	Policy        *service.SLAPolicy
	Detector      *service.DuplicateDetector
	Notifications *service.NotificationService
	Complaint     *service.ComplaintService
	Escalation    *service.EscalationService
	Admin         *service.AdminService
	Worker        *worker.EscalationWorker
}

// OpenDatabase opens and pings the configured store
func OpenDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.Driver == schema.DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// LoadPolicy reads SLA_POLICY_FILE or falls back to the built-in targets
// with the configured default entry.
func LoadPolicy(cfg config.SLAConfig) (*service.SLAPolicy, error) {
	if cfg.PolicyFile != "" {
		policy, err := service.LoadSLAPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		log.Printf("[SLA] loaded policy from %s", cfg.PolicyFile)
		return policy, nil
	}
	policy := service.DefaultSLAPolicy()
	policy.Default = service.SLATarget{
		TargetHours:  cfg.DefaultTargetHours,
		WarningHours: cfg.DefaultWarningHours,
	}
	return policy, nil
}

// New connects to the database, prepares the schema and builds the services.
// The notification dispatcher is started; the escalation worker is not.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := OpenDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, db *sql.DB) (*App, error) {
	driver := cfg.Database.Driver
	if err := schema.InitializeDatabase(db, driver); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := schema.ValidateRequiredColumns(db, driver, schema.DefaultRequiredColumns); err != nil {
		return nil, err
	}

	policy, err := LoadPolicy(cfg.SLA)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		DB:         db,
		Complaints: repository.NewComplaintRepository(db, driver),
		Admins:     repository.NewAdminRepository(db),
		Audit:      repository.NewAuditRepository(db),
		NotifyLogs: repository.NewNotificationLogRepository(db),
		Policy:     policy,
	}
	clock := service.SystemClock{}

	a.Notifications, err = newNotificationService(ctx, cfg.Notification, a.NotifyLogs)
	if err != nil {
		return nil, err
	}
	if err := a.Notifications.Start(ctx); err != nil {
		return nil, err
	}

	a.Detector = service.NewDuplicateDetector(a.Complaints, a.Audit, clock, service.DuplicateDetectorConfig{
		RadiusMeters: cfg.Duplicate.RadiusMeters,
		Window:       cfg.Duplicate.Window,
		Timeout:      cfg.Duplicate.Timeout,
	})
	ids := service.NewIDGenerator(cfg.Complaint.IDPrefix, cfg.Complaint.IDLocation, a.Complaints)
	a.Complaint = service.NewComplaintService(a.Complaints, a.Detector, policy, ids, a.Admins, a.Audit, a.Notifications, clock)
	a.Complaint.SetNotifyTimeout(cfg.Notification.Timeout)
	a.Escalation = service.NewEscalationService(a.Complaints, policy, a.Admins, a.Audit, a.Notifications, clock, service.EscalationServiceConfig{
		Workers:       cfg.Escalation.Workers,
		DryRun:        cfg.Escalation.DryRun,
		NotifyTimeout: cfg.Notification.Timeout,
	})
	a.Admin = service.NewAdminService(a.Admins, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryHours)
	a.Worker = worker.NewEscalationWorker(a.Escalation, cfg.Escalation.Interval, cfg.Escalation.StartupDelay)
	return a, nil
}

// newNotificationService registers a sender for every channel with credentials.
// Email is always registered; without an API key it only logs.
func newNotificationService(ctx context.Context, cfg config.NotificationConfig, logs service.NotificationLogger) (*service.NotificationService, error) {
	senders := []notification.Sender{
		notification.NewEmailSender(notification.EmailConfig{
			APIKey:        cfg.SendGridAPIKey,
			FromEmail:     cfg.FromEmail,
			FromName:      cfg.FromName,
			ShadowAddress: cfg.EmailShadowAddress,
		}),
	}
	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneID != "" {
		senders = append(senders, notification.NewWhatsAppSender(notification.WhatsAppConfig{
			Token:         cfg.WhatsAppToken,
			PhoneNumberID: cfg.WhatsAppPhoneID,
		}))
	}
	if cfg.TelegramBotToken != "" {
		senders = append(senders, notification.NewTelegramSender(notification.TelegramConfig{
			BotToken: cfg.TelegramBotToken,
		}))
	}

	var translator notification.Translator
	if cfg.TranslateEnabled {
		gt, err := notification.NewGoogleTranslator(ctx, true)
		if err != nil {
			return nil, err
		}
		translator = gt
	}

	return service.NewNotificationService(senders, translator, logs, service.SystemClock{}, service.NotificationConfig{
		TelegramChatID:  cfg.TelegramChatID,
		AdminAlertEmail: cfg.AdminAlertEmail,
		Timeout:         cfg.Timeout,
	}), nil
}

// Close stops the dispatcher and closes the database. Callers stop the
// worker and drain notifications first.
func (a *App) Close() {
	a.Notifications.Stop()
	if err := a.DB.Close(); err != nil {
		log.Printf("failed to close database: %v", err)
	}
}
