package quota

import "time"

// Snapshot is the quota view returned to callers.
type Snapshot struct {
	DailyRemaining   int       `json:"dailyRemaining"`
	MonthlyRemaining int       `json:"monthlyRemaining"`
	DailyLimit       int       `json:"dailyLimit"`
	MonthlyLimit     int       `json:"monthlyLimit"`
	TierName         string    `json:"tierName"`
	DailyResetAt     time.Time `json:"dailyResetAt"`
	MonthlyResetAt   time.Time `json:"monthlyResetAt"`

	GroupDailyRemaining   *int   `json:"groupDailyRemaining,omitempty"`
	GroupMonthlyRemaining *int   `json:"groupMonthlyRemaining,omitempty"`
	GroupTierName         string `json:"groupTierName,omitempty"`
	GroupUnlimited        bool   `json:"groupUnlimited,omitempty"`
}

// NewSnapshot combines an individual allowance with an optional group allowance.
func NewSnapshot(user Allowance, group *Allowance) *Snapshot {
	snap := &Snapshot{
		DailyRemaining:   user.DailyRemaining,
		MonthlyRemaining: user.MonthlyRemaining,
		DailyLimit:       user.DailyLimit,
		MonthlyLimit:     user.MonthlyLimit,
		TierName:         user.TierName,
		DailyResetAt:     user.DailyResetAt,
		MonthlyResetAt:   user.MonthlyResetAt,
	}
	if group == nil {
		return snap
	}
	snap.GroupTierName = group.TierName
	snap.GroupUnlimited = group.Unlimited
	if !group.Unlimited {
		daily, monthly := group.DailyRemaining, group.MonthlyRemaining
		snap.GroupDailyRemaining = &daily
		snap.GroupMonthlyRemaining = &monthly
	}
	return snap
}
