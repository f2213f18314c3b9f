package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"nudge/internal/logger"
	"nudge/internal/models"
)

// TickReport summarizes one scheduler tick
type TickReport struct {
	StartedAt time.Time                             `json:"started_at"`
	Duration  time.Duration                         `json:"duration"`
	Skipped   bool                                  `json:"skipped"`
	Generated map[models.ReminderType]GenerateStats `json:"generated,omitempty"`
	Dispatch  DispatchStats                         `json:"dispatch"`
	Sweep     SweepStats                            `json:"sweep"`
}

type ReminderWorker struct {
	generator  *Generator
	dispatcher *Dispatcher
	sweeper    *Sweeper
	lock       TickLock
	log        *logger.Logger
	interval   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReminderWorker(generator *Generator, dispatcher *Dispatcher, sweeper *Sweeper, lock TickLock, log *logger.Logger, interval time.Duration) *ReminderWorker {
	if lock == nil {
		lock = NewLocalTickLock()
	}
	if interval <= 0 {
		interval = time.Minute * 5 // Tick every 5 minutes
	}
	return &ReminderWorker{
		generator:  generator,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		lock:       lock,
		log:        log.With("component", "reminder_worker"),
		interval:   interval,
	}
}

// Start runs a tick immediately and then on every interval until Stop
func (w *ReminderWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)
}

// Stop cancels the loop and waits for an in-flight tick to finish
func (w *ReminderWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *ReminderWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunTick(ctx)
		}
	}
}

// RunTick generates candidates, dispatches due reminders and sweeps old ones.
// Only one instance runs a tick at a time; the others skip it.
func (w *ReminderWorker) RunTick(ctx context.Context) TickReport {
	report := TickReport{StartedAt: time.Now().UTC()}

	release, err := w.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			w.log.Debug("tick skipped, lock held elsewhere")
		} else {
			w.log.Error("failed to acquire tick lock", "error", err)
		}
		TicksSkipped.Inc()
		report.Skipped = true
		return report
	}
	defer release()

	report.Generated = w.generator.Generate(ctx)
	report.Dispatch = w.dispatcher.Dispatch(ctx)
	report.Sweep = w.sweeper.Sweep(ctx)

	report.Duration = time.Since(report.StartedAt)
	TickDuration.Observe(report.Duration.Seconds())

	w.log.Info("reminder tick finished",
		"duration", report.Duration,
		"created", totalCreated(report.Generated),
		"dispatched", report.Dispatch.Sent,
		"swept", report.Sweep.Expired+report.Sweep.Stale+report.Sweep.AutoCompleted,
	)
	return report
}

func totalCreated(stats map[models.ReminderType]GenerateStats) int {
	n := 0
	for _, s := range stats {
		n += s.Created
	}
	return n
}
