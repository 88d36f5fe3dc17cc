package quota

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/db"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fixture struct {
	conn   *gorm.DB
	store  *store.Store
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "quota.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	s := store.New(conn)
	return &fixture{conn: conn, store: s, ledger: NewLedger(s)}
}

func (f *fixture) tier(t *testing.T, name string, limits ...models.TierLimit) *models.Tier {
	t.Helper()
	tier := &models.Tier{Name: name, Limits: limits}
	if err := f.conn.Create(tier).Error; err != nil {
		t.Fatalf("create tier: %v", err)
	}
	return tier
}

func (f *fixture) user(t *testing.T, tierID uint64) *models.User {
	t.Helper()
	user := &models.User{DiscordID: "u-" + uuid.NewString(), TierID: tierID}
	if err := f.conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (f *fixture) success(t *testing.T, userID string, groupID *string, at time.Time) *models.Submission {
	t.Helper()
	sub := &models.Submission{ImageHash: at.String(), UserID: userID, GroupID: groupID, Status: models.SubmissionSuccess, CreatedAt: at}
	if err := f.conn.Create(sub).Error; err != nil {
		t.Fatalf("create submission: %v", err)
	}
	return sub
}

func TestRemaining_CalendarWindows(t *testing.T) {
	f := newFixture(t)
	tier := f.tier(t, "Free", models.TierLimit{Scope: models.ScopeIndividual, DailyRequestLimit: 3, MonthlyRequestLimit: 5})
	user := f.user(t, tier.ID)
	now := time.Date(2026, 6, 10, 8, 30, 0, 0, time.UTC)

	f.success(t, user.ID, nil, now.Add(-time.Hour))                            // today
	f.success(t, user.ID, nil, time.Date(2026, 6, 9, 23, 59, 59, 0, time.UTC)) // yesterday, this month
	f.success(t, user.ID, nil, time.Date(2026, 5, 31, 23, 0, 0, 0, time.UTC))  // last month
	f.success(t, user.ID, nil, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC))   // exactly at day start

	got, err := f.ledger.Remaining(context.Background(), user.ID, models.ScopeIndividual, now)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if got.DailyRemaining != 1 {
		t.Fatalf("expected daily remaining 1, got %d", got.DailyRemaining)
	}
	if got.MonthlyRemaining != 2 {
		t.Fatalf("expected monthly remaining 2, got %d", got.MonthlyRemaining)
	}
	if got.TierName != "Free" {
		t.Fatalf("expected tier Free, got %q", got.TierName)
	}
	if !got.DailyResetAt.Equal(time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected daily reset %s", got.DailyResetAt)
	}
}

func TestRemaining_NeverNegative(t *testing.T) {
	f := newFixture(t)
	tier := f.tier(t, "Tiny", models.TierLimit{Scope: models.ScopeIndividual, DailyRequestLimit: 1, MonthlyRequestLimit: 1})
	user := f.user(t, tier.ID)
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		f.success(t, user.ID, nil, now.Add(-time.Duration(i+1)*time.Minute))
	}

	got, err := f.ledger.Remaining(context.Background(), user.ID, models.ScopeIndividual, now)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if got.DailyRemaining != 0 || got.MonthlyRemaining != 0 {
		t.Fatalf("expected clamped zero, got %d/%d", got.DailyRemaining, got.MonthlyRemaining)
	}
}

func TestRemaining_UnconfiguredTierFailsClosed(t *testing.T) {
	f := newFixture(t)
	tier := f.tier(t, "Legacy")
	user := f.user(t, tier.ID)

	got, err := f.ledger.Remaining(context.Background(), user.ID, models.ScopeIndividual, time.Now())
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if got.DailyRemaining != 0 || got.MonthlyRemaining != 0 || got.TierName != "Legacy" {
		t.Fatalf("expected 0/0 on Legacy, got %+v", got)
	}
	if window, exhausted := got.Exhausted(); !exhausted || window != WindowDaily {
		t.Fatalf("expected daily exhaustion, got %q %v", window, exhausted)
	}
}

func TestRemaining_SoftDeletedExcluded(t *testing.T) {
	f := newFixture(t)
	tier := f.tier(t, "Free", models.TierLimit{Scope: models.ScopeIndividual, DailyRequestLimit: 2, MonthlyRequestLimit: 10})
	user := f.user(t, tier.ID)
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	sub := f.success(t, user.ID, nil, now.Add(-time.Minute))

	if err := f.store.SoftDeleteSubmission(context.Background(), sub.ID, now); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	got, err := f.ledger.Remaining(context.Background(), user.ID, models.ScopeIndividual, now)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if got.DailyRemaining != 2 {
		t.Fatalf("expected soft-deleted submission ignored, got %d", got.DailyRemaining)
	}

	if errDelete := f.store.SoftDeleteUser(context.Background(), user.ID, now); errDelete != nil {
		t.Fatalf("delete user: %v", errDelete)
	}
	if _, errRemaining := f.ledger.Remaining(context.Background(), user.ID, models.ScopeIndividual, now); !errors.Is(errRemaining, ErrSubjectNotFound) {
		t.Fatalf("expected ErrSubjectNotFound, got %v", errRemaining)
	}
}

func TestValidate_GroupScope(t *testing.T) {
	f := newFixture(t)
	tier := f.tier(t, "Free",
		models.TierLimit{Scope: models.ScopeIndividual, DailyRequestLimit: 10, MonthlyRequestLimit: 100},
		models.TierLimit{Scope: models.ScopeGroup, DailyRequestLimit: 1, MonthlyRequestLimit: 100},
	)
	userA := f.user(t, tier.ID)
	userB := f.user(t, tier.ID)
	group := &models.Group{ExternalID: "srv-1", TierID: &tier.ID}
	if err := f.conn.Create(group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	untiered := &models.Group{ExternalID: "srv-2"}
	if err := f.conn.Create(untiered).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	f.success(t, userA.ID, &group.ID, now.Add(-time.Minute))

	_, _, err := f.ledger.Validate(context.Background(), userB.ID, group.ID, now)
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError, got %v", err)
	}
	if exceeded.Scope != models.ScopeGroup || exceeded.Window != WindowDaily {
		t.Fatalf("unexpected violation %+v", exceeded)
	}

	user, groupAllowance, err := f.ledger.Validate(context.Background(), userB.ID, untiered.ID, now)
	if err != nil {
		t.Fatalf("expected untiered group to pass, got %v", err)
	}
	if groupAllowance == nil || !groupAllowance.Unlimited {
		t.Fatalf("expected unlimited group allowance, got %+v", groupAllowance)
	}
	if user.DailyRemaining != 10 {
		t.Fatalf("expected userB untouched by group usage, got %d", user.DailyRemaining)
	}

	snap, err := f.ledger.Snapshot(context.Background(), userA.ID, group.ID, now)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.GroupDailyRemaining == nil || *snap.GroupDailyRemaining != 0 {
		t.Fatalf("expected group daily remaining 0, got %v", snap.GroupDailyRemaining)
	}
	if snap.DailyRemaining != 9 {
		t.Fatalf("expected individual daily remaining 9, got %d", snap.DailyRemaining)
	}
}
