package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/internship-platform/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	envFile string
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.envFile != "" {
		return config.LoadFile(o.envFile)
	}
	return config.Load()
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "internship",
		Short:         "Internship program coordination service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "read INTERNSHIP_* variables from this file")

	root.AddCommand(newServeCommand(opts), newJobsCommand(opts))
	return root
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg.LogLevel))
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, storeCloser, err := openJobStore(ctx, cfg, time.Now, logger)
	if err != nil {
		logger.Error("failed to open job store", "error", err, "job_store", cfg.JobStore)
		return err
	}
	defer func() {
		if cerr := storeCloser.Close(); cerr != nil {
			logger.Error("failed to close job store", "error", cerr)
		}
	}()

	sender, senderCloser, err := openMailSender(cfg, logger)
	if err != nil {
		logger.Error("failed to open mail transport", "error", err, "mail_transport", cfg.MailTransport)
		return err
	}
	defer func() {
		if cerr := senderCloser.Close(); cerr != nil {
			logger.Error("failed to close mail transport", "error", cerr)
		}
	}()

	service, adminToken, err := newApp(ctx, cfg, store, sender, time.Now, logger)
	if err != nil {
		logger.Error("failed to initialise service", "error", err)
		return err
	}
	if cfg.AdminToken == "" {
		logger.Warn("generated admin token; set INTERNSHIP_ADMIN_TOKEN to pin it", "admin_id", service.adminID, "admin_token", adminToken)
	}

	if err := service.scheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return err
	}
	defer service.scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           service.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("internship API listening", "addr", server.Addr, "job_store", cfg.JobStore, "mail_transport", cfg.MailTransport)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}
