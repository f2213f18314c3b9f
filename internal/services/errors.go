package services

import (
	"errors"

	"nudge/internal/auth"
	"nudge/internal/repos"
)

var (
	// ErrNotFound means the reminder (or other entity) does not exist for the tenant
	ErrNotFound = repos.ErrNotFound
	// ErrInvalidAction means the interaction action is not one a client may record
	ErrInvalidAction = errors.New("invalid interaction action")
	// ErrInvalidTransition means the reminder's current status does not allow the action
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConcurrentUpdate means the reminder changed status while the interaction was applied
	ErrConcurrentUpdate = errors.New("reminder was modified concurrently")
	// ErrInvalidPreference means a preference update carried an unacceptable value
	ErrInvalidPreference = errors.New("invalid preference")
	// ErrInvalidSnooze means the requested snooze target is not in the future
	ErrInvalidSnooze = errors.New("invalid snooze target")
	// ErrInvalidWindow means a listing window ends before it starts
	ErrInvalidWindow = errors.New("invalid time window")
	// ErrInvalidSubscription means a push subscription is missing its endpoint or keys
	ErrInvalidSubscription = errors.New("invalid push subscription")

	// ErrTransport wraps a failed push send to one subscription
	ErrTransport = errors.New("push transport failure")
	// ErrSubscriptionGone means the push service reported the endpoint as expired
	ErrSubscriptionGone = errors.New("push subscription gone")

	// ErrDecrypt wraps a metadata blob that could not be opened
	ErrDecrypt = auth.ErrDecrypt
)
