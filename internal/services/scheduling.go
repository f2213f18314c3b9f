package services

import (
	"time"

	"nudge/internal/models"
)

// MinClampLead is the shortest distance from now a clamped reminder is placed
const MinClampLead = 30 * time.Minute

// ScheduleInput carries everything SuggestSchedule needs. Now is explicit so
// the computation is deterministic.
type ScheduleInput struct {
	Now             time.Time
	DueDate         *time.Time
	Preference      *models.ReminderPreference
	Analytics       *models.ReminderAnalytics
	FallbackMinutes int
}

// Schedule is the computed delivery time plus how it was reached
type Schedule struct {
	At           time.Time
	QuietShifted bool
	Clamped      bool
}

// PreferredHour is the learned hour of day, 18 until analytics exist
func PreferredHour(a *models.ReminderAnalytics) int {
	if a == nil {
		return models.DefaultPreferredHour
	}
	return clampHour(a.PreferredHourOfDay)
}

// SuggestSchedule places a reminder before its anchor at the tenant's
// preferred hour, outside quiet hours, and never in the past.
//
// With a due date the reminder must fire no later than dueDate-lead, so the
// preferred hour is taken on the same day or the day before. Without one the
// next occurrence of the preferred hour is used.
func SuggestSchedule(in ScheduleInput) Schedule {
	loc := in.Preference.Location()
	now := in.Now.In(loc)
	hour := PreferredHour(in.Analytics)

	lead := in.FallbackMinutes
	if in.Preference != nil && in.Preference.DefaultLeadMinutes > 0 {
		lead = in.Preference.DefaultLeadMinutes
	}
	leadDur := time.Duration(lead) * time.Minute

	anchor := now.Add(leadDur)
	if in.DueDate != nil {
		anchor = in.DueDate.In(loc)
	}
	naive := anchor.Add(-leadDur)

	candidate := atHour(naive, hour)
	if in.DueDate != nil {
		if candidate.After(naive) {
			candidate = candidate.AddDate(0, 0, -1)
		}
	} else if candidate.Before(naive) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	out := Schedule{}
	if in.Preference != nil {
		var shifted time.Time
		if in.DueDate != nil {
			shifted = avoidQuietHoursBefore(candidate, naive, in.Preference.QuietHours)
		} else {
			shifted = AvoidQuietHours(candidate, in.Preference.QuietHours)
		}
		out.QuietShifted = !shifted.Equal(candidate)
		candidate = shifted
	}

	if candidate.Before(now) {
		minLead := leadDur / 2
		if minLead < MinClampLead {
			minLead = MinClampLead
		}
		candidate = now.Add(minLead).Truncate(time.Second)
		out.Clamped = true
	}

	out.At = candidate.UTC()
	return out
}

// AvoidQuietHours moves t forward to the first whole hour outside the quiet
// window, starting the search at endHour+1. The result is never earlier than
// t: when the new hour is before t's hour on the clock it lands on the next day.
func AvoidQuietHours(t time.Time, quiet models.QuietHours) time.Time {
	if !quiet.Contains(t.Hour()) {
		return t
	}
	target, ok := firstHourAfterQuiet(quiet)
	if !ok {
		return t
	}

	shifted := atHour(t, target)
	if !shifted.After(t) {
		shifted = shifted.AddDate(0, 0, 1)
	}
	return shifted
}

// avoidQuietHoursBefore moves t to the first hour after the quiet window on
// the same date, stepping back a day when that would pass latest. A deadline
// reminder must never move towards its due date.
func avoidQuietHoursBefore(t, latest time.Time, quiet models.QuietHours) time.Time {
	if !quiet.Contains(t.Hour()) {
		return t
	}
	target, ok := firstHourAfterQuiet(quiet)
	if !ok {
		return t
	}

	shifted := atHour(t, target)
	if shifted.After(latest) {
		shifted = shifted.AddDate(0, 0, -1)
	}
	return shifted
}

// firstHourAfterQuiet searches from endHour+1 for an hour outside the window.
// It reports false when the window covers the whole day.
func firstHourAfterQuiet(quiet models.QuietHours) (int, bool) {
	for i := 0; i < 24; i++ {
		h := (quiet.EndHour + 1 + i) % 24
		if !quiet.Contains(h) {
			return h, true
		}
	}
	return 0, false
}

// SnapForward returns the first occurrence of hour:00 at or after t
func SnapForward(t time.Time, hour int) time.Time {
	snapped := atHour(t, clampHour(hour))
	if snapped.Before(t) {
		snapped = snapped.AddDate(0, 0, 1)
	}
	return snapped
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

func clampHour(h int) int {
	if h < 0 {
		return 0
	}
	if h > 23 {
		return 23
	}
	return h
}
