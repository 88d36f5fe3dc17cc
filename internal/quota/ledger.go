// Package quota computes remaining upload allowances over UTC calendar windows.
//
// Only successful, visible submissions consume quota. A tier without a limit
// row for a scope yields zero remaining; a group without a tier is unlimited.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/store"
)

// ErrSubjectNotFound indicates the user or group is missing or soft-deleted.
var ErrSubjectNotFound = errors.New("quota: subject not found")

// Window names a counting period.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowMonthly Window = "monthly"
)

// ExceededError reports the first violated scope and window.
type ExceededError struct {
	Scope  models.Scope
	Window Window
}

func (e *ExceededError) Error() string {
	if e == nil {
		return "quota exceeded"
	}
	return fmt.Sprintf("%s %s upload quota exceeded", e.Scope, e.Window)
}

// Store is the persistence the ledger reads from.
type Store interface {
	ActiveUser(ctx context.Context, id string) (*models.User, error)
	ActiveGroup(ctx context.Context, id string) (*models.Group, error)
	TierLimit(ctx context.Context, tierID uint64, scope models.Scope) (*models.TierLimit, error)
	CountSuccessful(ctx context.Context, scope models.Scope, subjectID string, from, to time.Time) (int64, error)
}

// Allowance is the remaining quota of one subject in one scope.
type Allowance struct {
	Scope            models.Scope
	SubjectID        string
	TierName         string
	Unlimited        bool
	DailyLimit       int
	MonthlyLimit     int
	DailyUsed        int
	MonthlyUsed      int
	DailyRemaining   int
	MonthlyRemaining int
	DailyResetAt     time.Time
	MonthlyResetAt   time.Time
}

// Exhausted returns the first exhausted window, daily before monthly.
func (a Allowance) Exhausted() (Window, bool) {
	if a.Unlimited {
		return "", false
	}
	if a.DailyRemaining <= 0 {
		return WindowDaily, true
	}
	if a.MonthlyRemaining <= 0 {
		return WindowMonthly, true
	}
	return "", false
}

// Headroom is the number of further uploads both windows still admit.
// Unlimited allowances report -1.
func (a Allowance) Headroom() int {
	if a.Unlimited {
		return -1
	}
	return min(a.DailyRemaining, a.MonthlyRemaining)
}

// Ledger answers remaining-quota queries.
type Ledger struct {
	store Store
}

// NewLedger constructs a Ledger.
func NewLedger(s Store) *Ledger {
	return &Ledger{store: s}
}

// DayStart returns the first instant of the UTC day containing now.
func DayStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first instant of the UTC month containing now.
func MonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Remaining computes the allowance of subjectID in scope at now.
func (l *Ledger) Remaining(ctx context.Context, subjectID string, scope models.Scope, now time.Time) (Allowance, error) {
	if l == nil || l.store == nil {
		return Allowance{}, fmt.Errorf("quota: ledger not initialized")
	}
	out := Allowance{Scope: scope, SubjectID: subjectID}

	var tierID *uint64
	switch scope {
	case models.ScopeIndividual:
		user, errUser := l.store.ActiveUser(ctx, subjectID)
		if errUser != nil {
			return Allowance{}, subjectErr(errUser)
		}
		tierID = &user.TierID
		if user.Tier != nil {
			out.TierName = user.Tier.Name
		}
	case models.ScopeGroup:
		group, errGroup := l.store.ActiveGroup(ctx, subjectID)
		if errGroup != nil {
			return Allowance{}, subjectErr(errGroup)
		}
		tierID = group.TierID
		if group.Tier != nil {
			out.TierName = group.Tier.Name
		}
	default:
		return Allowance{}, fmt.Errorf("quota: unknown scope %q", scope)
	}

	dayStart := DayStart(now)
	monthStart := MonthStart(now)
	out.DailyResetAt = dayStart.AddDate(0, 0, 1)
	out.MonthlyResetAt = monthStart.AddDate(0, 1, 0)

	if tierID == nil {
		out.Unlimited = true
		return out, nil
	}

	limit, errLimit := l.store.TierLimit(ctx, *tierID, scope)
	if errLimit != nil {
		if errors.Is(errLimit, store.ErrNotFound) {
			// unconfigured tier: zero remaining
			return out, nil
		}
		return Allowance{}, fmt.Errorf("quota: load tier limit: %w", errLimit)
	}
	out.DailyLimit = limit.DailyRequestLimit
	out.MonthlyLimit = limit.MonthlyRequestLimit

	daily, errDaily := l.store.CountSuccessful(ctx, scope, subjectID, dayStart, out.DailyResetAt)
	if errDaily != nil {
		return Allowance{}, fmt.Errorf("quota: count daily: %w", errDaily)
	}
	monthly, errMonthly := l.store.CountSuccessful(ctx, scope, subjectID, monthStart, out.MonthlyResetAt)
	if errMonthly != nil {
		return Allowance{}, fmt.Errorf("quota: count monthly: %w", errMonthly)
	}
	out.DailyUsed = int(daily)
	out.MonthlyUsed = int(monthly)
	out.DailyRemaining = max(0, out.DailyLimit-out.DailyUsed)
	out.MonthlyRemaining = max(0, out.MonthlyLimit-out.MonthlyUsed)
	return out, nil
}

// Validate checks the individual scope, then the group scope when groupID is set.
// It returns the allowances it computed and an *ExceededError for the first
// exhausted window.
func (l *Ledger) Validate(ctx context.Context, userID, groupID string, now time.Time) (Allowance, *Allowance, error) {
	user, errUser := l.Remaining(ctx, userID, models.ScopeIndividual, now)
	if errUser != nil {
		return Allowance{}, nil, errUser
	}
	if window, exhausted := user.Exhausted(); exhausted {
		return user, nil, &ExceededError{Scope: models.ScopeIndividual, Window: window}
	}
	if groupID == "" {
		return user, nil, nil
	}
	group, errGroup := l.Remaining(ctx, groupID, models.ScopeGroup, now)
	if errGroup != nil {
		return user, nil, errGroup
	}
	if window, exhausted := group.Exhausted(); exhausted {
		return user, &group, &ExceededError{Scope: models.ScopeGroup, Window: window}
	}
	return user, &group, nil
}

// Snapshot builds the caller-facing quota view.
func (l *Ledger) Snapshot(ctx context.Context, userID, groupID string, now time.Time) (*Snapshot, error) {
	user, errUser := l.Remaining(ctx, userID, models.ScopeIndividual, now)
	if errUser != nil {
		return nil, errUser
	}
	snap := NewSnapshot(user, nil)
	if groupID == "" {
		return snap, nil
	}
	group, errGroup := l.Remaining(ctx, groupID, models.ScopeGroup, now)
	if errGroup != nil {
		return nil, errGroup
	}
	return NewSnapshot(user, &group), nil
}

func subjectErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrSubjectNotFound
	}
	return fmt.Errorf("quota: load subject: %w", err)
}
