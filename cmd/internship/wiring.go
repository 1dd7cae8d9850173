package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/example/internship-platform/internal/application"
	"github.com/example/internship-platform/internal/config"
	httptransport "github.com/example/internship-platform/internal/http"
	"github.com/example/internship-platform/internal/notification"
	"github.com/example/internship-platform/internal/persistence/memory"
	"github.com/example/internship-platform/internal/persistence/redis"
	"github.com/example/internship-platform/internal/persistence/sqlite"
	"github.com/example/internship-platform/internal/scheduler"
)

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openJobStore selects the job store backend named by cfg.
func openJobStore(ctx context.Context, cfg config.Config, now func() time.Time, logger *slog.Logger) (scheduler.JobStore, io.Closer, error) {
	switch cfg.JobStore {
	case config.JobStoreSQLite:
		db, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlite.NewJobStore(ctx, db, now, logger)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db, nil
	case config.JobStoreRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis: ping %s: %w", cfg.RedisAddr, err)
		}
		return redis.NewJobStore(client, cfg.RedisPrefix, now, logger), client, nil
	default:
		return scheduler.NewMemoryStore(now), closerFunc(func() error { return nil }), nil
	}
}

// openMailSender selects the mail transport named by cfg.
func openMailSender(cfg config.Config, logger *slog.Logger) (notification.MailSender, io.Closer, error) {
	if cfg.MailTransport == config.MailTransportAMQP {
		sender, err := notification.NewAMQPSender(cfg.AMQPURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, sender, nil
	}
	return notification.NewLogSender(logger), closerFunc(func() error { return nil }), nil
}

// app is the assembled service graph behind the HTTP API.
type app struct {
	handler   http.Handler
	scheduler *scheduler.Scheduler
	sessions  *application.SessionService
	adminID   string
}

// newApp wires storage adapters, services and the router around store and
// sender, then seeds the default administrator and its bootstrap session.
func newApp(ctx context.Context, cfg config.Config, store scheduler.JobStore, sender notification.MailSender, now func() time.Time, logger *slog.Logger) (*app, string, error) {
	if now == nil {
		now = time.Now
	}

	jobs := scheduler.New(store, scheduler.Config{
		Workers:           cfg.SchedulerWorkers,
		PollInterval:      cfg.PollInterval,
		MaxRetries:        cfg.MaxRetries,
		FallbackRecipient: cfg.FallbackRecipient,
	}, uuid.NewString, now, logger)
	dispatcher := notification.NewDispatcher(sender, notification.DefaultTemplates(), notification.DefaultBreakerConfig(), now, logger)
	notification.Register(jobs, dispatcher)

	storage := memory.New()
	directory := newDirectoryAdapter(storage, storage, now)
	seasons := newSeasonAdapter(storage, now)
	requests := newRequestAdapter(storage, now)
	sessionStore := newSessionAdapter(storage)

	access := application.NewAccessControlResolver(requests)
	principals := application.NewPrincipalLoader(directory, directory, logger)
	notifier := application.NewSeasonLifecycleNotifier(jobs, directory, now, logger, application.WithSeasonLister(seasons))

	users := application.NewUserService(directory, access, uuid.NewString, logger, application.WithUserObserver(notifier))
	seasonService := application.NewSeasonService(seasons, directory, access, notifier, uuid.NewString, logger)
	sessions := application.NewSessionService(sessionStore, directory, principals, uuid.NewString, now, logger,
		application.WithSessionTTL(cfg.SessionTTL))
	events := application.NewEventRequestLifecycle(requests, directory, access, jobs, logger)
	absences := application.NewAbsenceLifecycle(requests, directory, access, jobs, now, logger)
	queries := application.NewRequestQueryService(requests, access, logger)
	submission := application.NewRequestSubmission(requests, seasons, directory, access, jobs, uuid.NewString, now, logger)

	adminID, err := seedDefaultAdmin(ctx, directory, cfg.AdminEmail)
	if err != nil {
		return nil, "", err
	}
	session, err := sessions.Bootstrap(ctx, adminID, cfg.AdminToken)
	if err != nil {
		return nil, "", fmt.Errorf("bootstrap admin session: %w", err)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Sessions: httptransport.NewSessionHandler(sessions, logger),
		Users:    httptransport.NewUserHandler(users, logger),
		Seasons:  httptransport.NewSeasonHandler(seasonService, logger),
		Requests: httptransport.NewRequestHandler(events, absences, queries, submission, logger),
		Jobs:     httptransport.NewJobHandler(jobs, access, logger),
		Auth:     httptransport.RequireSession(sessions, logger),
		Metrics:  promhttp.Handler(),
		Ready:    jobs.IsRunning,
		Logger:   logger,
	})

	return &app{handler: router, scheduler: jobs, sessions: sessions, adminID: adminID}, session.Token, nil
}

// seedDefaultAdmin stores the protected administrator unless a user with
// the same e-mail exists, and returns its ID.
func seedDefaultAdmin(ctx context.Context, users *directoryAdapter, email string) (string, error) {
	existing, err := users.users.GetUserByEmail(ctx, email)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(translateError(err), application.ErrNotFound) {
		return "", err
	}

	admin := application.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    "Default",
		LastName:     "Administrator",
		Role:         application.RoleAdmin,
		Active:       true,
		DefaultAdmin: true,
	}
	created, err := users.CreateUser(ctx, admin)
	if err != nil {
		return "", fmt.Errorf("seed default admin: %w", err)
	}
	return created.ID, nil
}
