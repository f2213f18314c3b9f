package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nudge/internal/auth"
	"nudge/internal/handlers"
	"nudge/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var withoutWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reminder scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if a.cfg.JWTSecret == "" {
			return auth.ErrNoSecret
		}
		if a.cfg.IsRelease() {
			gin.SetMode(gin.ReleaseMode)
		}

		vapidKey := ""
		if a.pusher != nil {
			vapidKey = a.pusher.PublicKey()
		}
		h := handlers.New(handlers.Deps{
			Reminders:      services.NewReminderService(a.db, a.cipher, a.log, nil),
			Interactions:   services.NewInteractionService(a.db, a.cipher, a.log, nil),
			Preferences:    services.NewPreferenceService(a.db),
			Analytics:      services.NewAnalyticsService(a.db),
			Subscriptions:  services.NewSubscriptionService(a.db, a.log),
			VAPIDPublicKey: vapidKey,
			Log:            a.log,
		})
		router := handlers.NewRouter(h, auth.NewTokenService(a.cfg.JWTSecret), a.cfg.AllowedOrigins)

		if !withoutWorker {
			worker := a.worker()
			worker.Start(ctx)
			defer worker.Stop()
		}

		srv := &http.Server{
			Addr:              a.cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			a.log.Info("server starting", "addr", a.cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withoutWorker, "no-worker", false, "serve the API only; run ticks with the tick command instead")
	rootCmd.AddCommand(serveCmd)
}
