package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nudge/internal/auth"
	"nudge/internal/logger"
	"nudge/internal/models"

	"gorm.io/gorm"
)

const (
	// accounts idle longer than the largest allowed threshold are not scanned
	inactivityScanHorizon = 90 * 24 * time.Hour
	// analytics older than the largest allowed lookback are not scanned
	behaviourScanHorizon = 365 * 24 * time.Hour
)

// GeneratorOptions tunes candidate generation
type GeneratorOptions struct {
	BatchSize         int
	DeadlineLookahead time.Duration
	Clock             Clock
}

// Generator produces candidate reminders from the three signal sources and
// submits each through dedup/upsert.
type Generator struct {
	store     *store
	cipher    *auth.MetadataCipher
	log       *logger.Logger
	now       Clock
	batchSize int
	lookahead time.Duration
}

func NewGenerator(db *gorm.DB, cipher *auth.MetadataCipher, log *logger.Logger, opts GeneratorOptions) *Generator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.DeadlineLookahead <= 0 {
		opts.DeadlineLookahead = 48 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = systemClock
	}
	return &Generator{
		store:     newStore(db),
		cipher:    cipher,
		log:       log.With("component", "generator"),
		now:       opts.Clock,
		batchSize: opts.BatchSize,
		lookahead: opts.DeadlineLookahead,
	}
}

// GenerateStats counts what happened to the candidates of one generator
type GenerateStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type submitOutcome string

const (
	outcomeCreated   submitOutcome = "created"
	outcomeUpdated   submitOutcome = "updated"
	outcomeUnchanged submitOutcome = "unchanged"
	outcomeSkipped   submitOutcome = "skipped"
	outcomeFailed    submitOutcome = "failed"
)

func (s *GenerateStats) add(o submitOutcome) {
	switch o {
	case outcomeCreated:
		s.Created++
	case outcomeUpdated:
		s.Updated++
	case outcomeUnchanged:
		s.Unchanged++
	case outcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Generate runs all three generators in order
func (g *Generator) Generate(ctx context.Context) map[models.ReminderType]GenerateStats {
	policies := newPolicyCache(g.store)
	return map[models.ReminderType]GenerateStats{
		models.ReminderDeadline:   g.generateDeadline(ctx, policies),
		models.ReminderInactivity: g.generateInactivity(ctx, policies),
		models.ReminderBehavioral: g.generateBehavioral(ctx, policies),
	}
}

// GenerateDeadline scans assignments due within the lookahead window
func (g *Generator) GenerateDeadline(ctx context.Context) GenerateStats {
	return g.generateDeadline(ctx, newPolicyCache(g.store))
}

// GenerateInactivity scans accounts for an upcoming inactivity nudge
func (g *Generator) GenerateInactivity(ctx context.Context) GenerateStats {
	return g.generateInactivity(ctx, newPolicyCache(g.store))
}

// GenerateBehavioral scans tenants with learned timing for a daily nudge
func (g *Generator) GenerateBehavioral(ctx context.Context) GenerateStats {
	return g.generateBehavioral(ctx, newPolicyCache(g.store))
}

func (g *Generator) generateDeadline(ctx context.Context, policies *policyCache) GenerateStats {
	var stats GenerateStats
	now := g.now()

	assignments, err := g.store.assignments.ListDueBetween(ctx, now, now.Add(g.lookahead), g.batchSize)
	if err != nil {
		g.log.Error("failed to list upcoming assignments", "error", err)
		return stats
	}

	for _, a := range assignments {
		if a.IsComplete() {
			continue
		}
		policy, err := policies.get(ctx, a.TenantID)
		if err != nil {
			g.log.Error("failed to load tenant policy", "tenant_id", a.TenantID, "error", err)
			stats.add(g.record(models.ReminderDeadline, outcomeFailed))
			continue
		}
		if !policy.pref.SmartRemindersEnabled {
			stats.add(g.record(models.ReminderDeadline, outcomeSkipped))
			continue
		}

		due := a.DueDate
		sched := SuggestSchedule(ScheduleInput{
			Now:        now,
			DueDate:    &due,
			Preference: policy.pref,
			Analytics:  policy.analytics,
		})

		loc := policy.pref.Location()
		candidate := &models.Reminder{
			TenantID:     a.TenantID,
			Type:         models.ReminderDeadline,
			ForeignID:    a.ID,
			ScheduledFor: sched.At,
			Title:        fmt.Sprintf("Upcoming: %s", a.Title),
			Message:      fmt.Sprintf("%s is due %s. Don't leave it to the last minute!", a.Title, a.DueDate.In(loc).Format("Mon Jan 2, 3:04 PM")),
		}
		stats.add(g.submit(ctx, candidate, sched, map[string]interface{}{
			"assignmentId": a.ID,
			"dueDate":      a.DueDate.UTC().Format(time.RFC3339),
		}))
	}
	return stats
}

func (g *Generator) generateInactivity(ctx context.Context, policies *policyCache) GenerateStats {
	var stats GenerateStats
	now := g.now()

	accounts, err := g.store.accounts.ListReminderEligible(ctx, now.Add(-inactivityScanHorizon), g.batchSize)
	if err != nil {
		g.log.Error("failed to list accounts", "error", err)
		return stats
	}

	for _, acct := range accounts {
		if acct.ReminderOptOut {
			continue
		}
		policy, err := policies.get(ctx, acct.ID)
		if err != nil {
			g.log.Error("failed to load tenant policy", "tenant_id", acct.ID, "error", err)
			stats.add(g.record(models.ReminderInactivity, outcomeFailed))
			continue
		}

		loc := policy.pref.Location()
		threshold := time.Duration(policy.pref.InactivityThresholdHours) * time.Hour
		target := SnapForward(acct.LastLoginAt.In(loc).Add(threshold), PreferredHour(policy.analytics))
		target = AvoidQuietHours(target, policy.pref.QuietHours)
		if target.Before(now) {
			stats.add(g.record(models.ReminderInactivity, outcomeSkipped))
			continue
		}

		sched := Schedule{At: target.UTC()}
		candidate := &models.Reminder{
			TenantID:     acct.ID,
			Type:         models.ReminderInactivity,
			ForeignID:    acct.ID,
			ScheduledFor: sched.At,
			Title:        "Pick up where you left off",
			Message:      "It's been a while since your last study session. A few minutes today keeps you on track.",
		}
		stats.add(g.submit(ctx, candidate, sched, map[string]interface{}{
			"lastLoginAt":    acct.LastLoginAt.UTC().Format(time.RFC3339),
			"thresholdHours": policy.pref.InactivityThresholdHours,
		}))
	}
	return stats
}

func (g *Generator) generateBehavioral(ctx context.Context, policies *policyCache) GenerateStats {
	var stats GenerateStats
	now := g.now()

	rows, err := g.store.analytics.ListComputedSince(ctx, now.Add(-behaviourScanHorizon), g.batchSize)
	if err != nil {
		g.log.Error("failed to list analytics", "error", err)
		return stats
	}

	for i := range rows {
		a := &rows[i]
		policy, err := policies.get(ctx, a.TenantID)
		if err != nil {
			g.log.Error("failed to load tenant policy", "tenant_id", a.TenantID, "error", err)
			stats.add(g.record(models.ReminderBehavioral, outcomeFailed))
			continue
		}
		pref := policy.pref
		lookback := time.Duration(pref.BehaviourLookbackDays) * 24 * time.Hour

		sched := SuggestSchedule(ScheduleInput{
			Now:             now,
			Preference:      pref,
			Analytics:       a,
			FallbackMinutes: int(a.AverageCompletionLeadHours * 60),
		})
		// bucket by the local day the nudge fires, not the day of the tick
		fireDay := sched.At.In(pref.Location())

		switch {
		case !pref.SmartRemindersEnabled,
			a.LastComputedAt.Before(now.Add(-lookback)),
			len(pref.PreferredWeekdays) > 0 && !pref.PreferredWeekdays.Contains(int(fireDay.Weekday())):
			stats.add(g.record(models.ReminderBehavioral, outcomeSkipped))
			continue
		}

		candidate := &models.Reminder{
			TenantID:     a.TenantID,
			Type:         models.ReminderBehavioral,
			ForeignID:    BehaviourKey(fireDay),
			ScheduledFor: sched.At,
			Title:        "Time for a focused session",
			Message:      "This is usually when you get things done. Ready for a quick session?",
		}
		stats.add(g.submit(ctx, candidate, sched, map[string]interface{}{
			"preferredHour": PreferredHour(a),
			"sampleSize":    a.SampleSize,
		}))
	}
	return stats
}

// BehaviourKey is the date-bucketed foreign id limiting behavioural nudges to one per day
func BehaviourKey(day time.Time) string {
	return "behaviour_" + day.Format("2006-01-02")
}

// submit runs a candidate through dedup/upsert
func (g *Generator) submit(ctx context.Context, candidate *models.Reminder, sched Schedule, metadata map[string]interface{}) submitOutcome {
	existing, err := g.store.reminders.FindLiveByKey(ctx, candidate.Key())
	switch {
	case err != nil && !errors.Is(err, ErrNotFound):
		g.log.Error("failed to look up live reminder", "tenant_id", candidate.TenantID, "type", candidate.Type, "error", err)
		return g.record(candidate.Type, outcomeFailed)
	case err == nil && existing.ScheduledFor.Equal(candidate.ScheduledFor):
		return g.record(candidate.Type, outcomeUnchanged)
	case err == nil && sched.Clamped && !existing.ScheduledFor.Before(g.now()):
		// a clamped time is relative to now; re-submitting it every tick would
		// keep pushing an existing reminder out of the dispatch window
		return g.record(candidate.Type, outcomeUnchanged)
	}

	sealed, encrypted, err := sealMetadata(g.cipher, metadata)
	if err != nil {
		g.log.Warn("failed to seal reminder metadata, storing without it", "tenant_id", candidate.TenantID, "error", err)
	} else {
		candidate.Metadata = sealed
		candidate.MetadataEncrypted = encrypted
	}
	candidate.Status = models.StatusScheduled
	candidate.Channel = models.ChannelPush

	live, created, err := g.store.reminders.UpsertLive(ctx, candidate)
	if err != nil {
		g.log.Error("dedup upsert failed", "tenant_id", candidate.TenantID, "type", candidate.Type, "foreign_id", candidate.ForeignID, "error", err)
		return g.record(candidate.Type, outcomeFailed)
	}

	switch {
	case created:
		g.log.Debug("reminder scheduled", "reminder_id", live.ID, "tenant_id", live.TenantID, "type", live.Type, "scheduled_for", live.ScheduledFor)
		return g.record(candidate.Type, outcomeCreated)
	case live.ScheduledFor.Equal(candidate.ScheduledFor):
		return g.record(candidate.Type, outcomeUpdated)
	default:
		return g.record(candidate.Type, outcomeUnchanged)
	}
}

func (g *Generator) record(t models.ReminderType, o submitOutcome) submitOutcome {
	RemindersGenerated.WithLabelValues(string(t), string(o)).Inc()
	return o
}

type tenantPolicy struct {
	pref      *models.ReminderPreference
	analytics *models.ReminderAnalytics
}

// policyCache loads each tenant's preference and analytics once per tick
type policyCache struct {
	store    *store
	policies map[string]tenantPolicy
}

func newPolicyCache(s *store) *policyCache {
	return &policyCache{store: s, policies: make(map[string]tenantPolicy)}
}

func (c *policyCache) get(ctx context.Context, tenantID string) (tenantPolicy, error) {
	if p, ok := c.policies[tenantID]; ok {
		return p, nil
	}
	pref, err := c.store.preferences.GetOrCreate(ctx, tenantID)
	if err != nil {
		return tenantPolicy{}, err
	}
	analytics, err := c.store.analytics.Get(ctx, tenantID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return tenantPolicy{}, err
	}
	p := tenantPolicy{pref: pref, analytics: analytics}
	c.policies[tenantID] = p
	return p, nil
}
