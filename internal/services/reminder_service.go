package services

import (
	"context"
	"fmt"
	"time"

	"nudge/internal/auth"
	"nudge/internal/logger"
	"nudge/internal/models"

	"gorm.io/gorm"
)

// DefaultListWindow is how far ahead reminders are listed when no window is given
const DefaultListWindow = 7 * 24 * time.Hour

// ReminderView is a reminder as returned to its tenant, with metadata opened.
// Metadata is null when it cannot be decrypted.
type ReminderView struct {
	models.Reminder
	Metadata map[string]interface{} `json:"metadata"`
}

func newReminderView(c *auth.MetadataCipher, log *logger.Logger, r *models.Reminder) *ReminderView {
	view := &ReminderView{Reminder: *r}
	if view.Interactions == nil {
		view.Interactions = []models.ReminderInteraction{}
	}
	md, err := openMetadata(c, r)
	if err != nil {
		log.Warn("failed to open reminder metadata", "reminder_id", r.ID, "encrypted", r.MetadataEncrypted, "error", err)
		return view
	}
	view.Metadata = md
	return view
}

// ReminderService serves tenant-scoped reminder reads
type ReminderService struct {
	store  *store
	cipher *auth.MetadataCipher
	log    *logger.Logger
	now    Clock
}

func NewReminderService(db *gorm.DB, cipher *auth.MetadataCipher, log *logger.Logger, clock Clock) *ReminderService {
	if clock == nil {
		clock = systemClock
	}
	return &ReminderService{
		store:  newStore(db),
		cipher: cipher,
		log:    log.With("component", "reminders"),
		now:    clock,
	}
}

// ListLive returns the tenant's live reminders scheduled in [from, to]. A zero
// from defaults to now and a zero to defaults to from plus a week.
func (s *ReminderService) ListLive(ctx context.Context, tenantID string, from, to time.Time) ([]*ReminderView, error) {
	if from.IsZero() {
		from = s.now()
	}
	if to.IsZero() {
		to = from.Add(DefaultListWindow)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to is before from", ErrInvalidWindow)
	}

	reminders, err := s.store.reminders.ListLiveInWindow(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	views := make([]*ReminderView, 0, len(reminders))
	for i := range reminders {
		views = append(views, newReminderView(s.cipher, s.log, &reminders[i]))
	}
	return views, nil
}

// Get returns one reminder with its interaction log
func (s *ReminderService) Get(ctx context.Context, tenantID, reminderID string) (*ReminderView, error) {
	r, err := s.store.reminders.GetByID(ctx, tenantID, reminderID)
	if err != nil {
		return nil, err
	}
	return newReminderView(s.cipher, s.log, r), nil
}

// PreferenceService reads and updates tenant reminder policy
type PreferenceService struct {
	store *store
}

func NewPreferenceService(db *gorm.DB) *PreferenceService {
	return &PreferenceService{store: newStore(db)}
}

// Get returns the tenant's preference, created with defaults on first access
func (s *PreferenceService) Get(ctx context.Context, tenantID string) (*models.ReminderPreference, error) {
	return s.store.preferences.GetOrCreate(ctx, tenantID)
}

// Update applies the allow-listed fields of req
func (s *PreferenceService) Update(ctx context.Context, tenantID string, req models.UpdatePreferenceRequest) (*models.ReminderPreference, error) {
	var out *models.ReminderPreference
	err := s.store.transaction(ctx, func(tx *store) error {
		pref, err := tx.preferences.GetOrCreate(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := applyPreferenceUpdate(pref, req); err != nil {
			return err
		}
		pref.UpdatedAt = time.Now().UTC()
		if err := tx.preferences.Save(ctx, pref); err != nil {
			return err
		}
		out = pref
		return nil
	})
	return out, err
}

func applyPreferenceUpdate(pref *models.ReminderPreference, req models.UpdatePreferenceRequest) error {
	if req.Timezone != nil {
		if *req.Timezone == "" {
			return fmt.Errorf("%w: timezone is required", ErrInvalidPreference)
		}
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidPreference, *req.Timezone)
		}
		pref.Timezone = *req.Timezone
	}
	if req.DefaultLeadMinutes != nil {
		if *req.DefaultLeadMinutes < 0 {
			return fmt.Errorf("%w: default_lead_minutes must not be negative", ErrInvalidPreference)
		}
		pref.DefaultLeadMinutes = *req.DefaultLeadMinutes
	}
	if req.InactivityThresholdHours != nil {
		if *req.InactivityThresholdHours < 1 {
			return fmt.Errorf("%w: inactivity_threshold_hours must be at least 1", ErrInvalidPreference)
		}
		pref.InactivityThresholdHours = *req.InactivityThresholdHours
	}
	if req.BehaviourLookbackDays != nil {
		if *req.BehaviourLookbackDays < 1 {
			return fmt.Errorf("%w: behaviour_lookback_days must be at least 1", ErrInvalidPreference)
		}
		pref.BehaviourLookbackDays = *req.BehaviourLookbackDays
	}
	if req.QuietHours != nil {
		q := *req.QuietHours
		if !validHour(q.StartHour) || !validHour(q.EndHour) {
			return fmt.Errorf("%w: quiet hours must be between 0 and 23", ErrInvalidPreference)
		}
		pref.QuietHours = q
	}
	if req.PreferredWeekdays != nil {
		for _, d := range req.PreferredWeekdays {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: weekday %d out of range", ErrInvalidPreference, d)
			}
		}
		pref.PreferredWeekdays = models.IntList(req.PreferredWeekdays)
	}
	if req.SnoozeDurationsMinutes != nil {
		if len(req.SnoozeDurationsMinutes) == 0 {
			return fmt.Errorf("%w: at least one snooze duration is required", ErrInvalidPreference)
		}
		for _, m := range req.SnoozeDurationsMinutes {
			if m <= 0 {
				return fmt.Errorf("%w: snooze durations must be positive", ErrInvalidPreference)
			}
		}
		pref.SnoozeDurationsMinutes = models.IntList(req.SnoozeDurationsMinutes)
	}
	if req.SmartRemindersEnabled != nil {
		pref.SmartRemindersEnabled = *req.SmartRemindersEnabled
	}
	if req.PushEnabled != nil {
		pref.PushEnabled = *req.PushEnabled
	}
	return nil
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}

// SubscriptionService manages the push endpoints of a tenant's devices
type SubscriptionService struct {
	store *store
	log   *logger.Logger
}

func NewSubscriptionService(db *gorm.DB, log *logger.Logger) *SubscriptionService {
	return &SubscriptionService{store: newStore(db), log: log.With("component", "subscriptions")}
}

// Register stores a device subscription. Registering a known endpoint again
// refreshes its keys and moves it to the calling tenant.
func (s *SubscriptionService) Register(ctx context.Context, tenantID string, req models.RegisterPushSubscriptionRequest, userAgent string) (*models.PushSubscription, error) {
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return nil, ErrInvalidSubscription
	}
	sub, err := s.store.subscriptions.Upsert(ctx, &models.PushSubscription{
		TenantID:  tenantID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: truncate(userAgent, 255),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("push subscription registered", "tenant_id", tenantID, "endpoint", sub.Endpoint)
	return sub, nil
}

// Unregister removes one of the tenant's subscriptions
func (s *SubscriptionService) Unregister(ctx context.Context, tenantID, endpoint string) error {
	if endpoint == "" {
		return ErrInvalidSubscription
	}
	n, err := s.store.subscriptions.DeleteByEndpoint(ctx, endpoint, tenantID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the tenant's subscriptions
func (s *SubscriptionService) List(ctx context.Context, tenantID string) ([]models.PushSubscription, error) {
	return s.store.subscriptions.ListByTenant(ctx, tenantID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
