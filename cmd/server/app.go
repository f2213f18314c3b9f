package main

import (
	"context"
	"fmt"

	"nudge/internal/auth"
	"nudge/internal/config"
	"nudge/internal/database"
	"nudge/internal/logger"
	"nudge/internal/services"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// app holds the process-wide dependencies shared by every command
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *gorm.DB
	rdb    *redis.Client
	cipher *auth.MetadataCipher
	pusher *services.WebPushService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	caps := cfg.Capabilities()
	for _, reason := range caps.Degraded() {
		log.Warn("running degraded", "reason", reason)
	}

	cipher, err := auth.NewMetadataCipher(cfg.MetadataKey)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db, cipher: cipher}

	if caps.DistributedLock {
		rdb, err := database.OpenRedis(ctx, cfg, log)
		if err != nil {
			// a process-local lock still keeps one instance correct
			log.Warn("redis unavailable, falling back to a process-local tick lock", "error", err)
		}
		a.rdb = rdb
	}

	if caps.Push {
		a.pusher = services.NewWebPushService(services.WebPushOptions{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subscriber:      cfg.VAPIDSubject,
			TTL:             cfg.PushTTL,
		})
	}
	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	a.log.Sync()
}

func (a *app) tickLock() services.TickLock {
	if a.rdb != nil {
		return services.NewRedisTickLock(a.rdb, a.cfg.TickLockTTL)
	}
	return services.NewLocalTickLock()
}

// worker assembles the generate, dispatch and sweep pipeline
func (a *app) worker() *services.ReminderWorker {
	var pusher services.Pusher
	if a.pusher != nil {
		pusher = a.pusher
	}

	generator := services.NewGenerator(a.db, a.cipher, a.log, services.GeneratorOptions{
		BatchSize:         a.cfg.BatchSize,
		DeadlineLookahead: a.cfg.DeadlineLookahead,
	})
	dispatcher := services.NewDispatcher(a.db, pusher, a.log, services.DispatcherOptions{
		Window:    a.cfg.DispatchWindow,
		BatchSize: a.cfg.BatchSize,
	})
	sweeper := services.NewSweeper(a.db, a.log, services.SweeperOptions{
		RetentionAfter: a.cfg.RetentionAfter,
		StaleAfter:     a.cfg.StaleAfter,
		BatchSize:      a.cfg.BatchSize,
	})
	return services.NewReminderWorker(generator, dispatcher, sweeper, a.tickLock(), a.log, a.cfg.TickInterval)
}
