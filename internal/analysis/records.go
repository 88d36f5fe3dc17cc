package analysis

import (
	"encoding/json"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"gorm.io/datatypes"
)

// ToResult converts a report into its persisted form.
func ToResult(report *Report, extractionVersion int) *models.Result {
	if report == nil {
		return nil
	}
	raw := datatypes.JSON([]byte("{}"))
	if len(report.Raw) > 0 && json.Valid(report.Raw) {
		raw = datatypes.JSON(report.Raw)
	}
	return &models.Result{
		Category:          report.BattleType,
		OccurredAt:        report.BattleDate.UTC(),
		ExtractionVersion: extractionVersion,
		RawPayload:        raw,
		Sides: []models.Side{
			toSide(models.SidePrimary, report.Player),
			toSide(models.SideOpposing, report.Enemy),
		},
	}
}

// FromSubmission rebuilds the report of a successful submission.
// It returns nil when the submission has no result.
func FromSubmission(sub *models.Submission) *Report {
	if sub == nil || sub.Result == nil {
		return nil
	}
	result := sub.Result
	report := &Report{
		ResultID:      result.ID,
		BattleType:    result.Category,
		BattleDate:    result.OccurredAt.UTC(),
		TokensUsed:    sub.TokenEstimate,
		EstimatedCost: sub.EstimatedCost,
		Raw:           json.RawMessage(result.RawPayload),
	}
	for _, side := range result.Sides {
		switch side.Role {
		case models.SidePrimary:
			report.Player = fromSide(side)
		case models.SideOpposing:
			report.Enemy = fromSide(side)
		}
	}
	return report
}

func toSide(role models.SideRole, data SideData) models.Side {
	return models.Side{
		Role:                    role,
		Username:                data.Username,
		InGamePlayerID:          data.InGamePlayerID,
		GroupTag:                data.GroupTag,
		Level:                   data.Level,
		FanCount:                data.FanCount,
		LossCount:               data.LossCount,
		InjuredCount:            data.InjuredCount,
		RemainingCount:          data.RemainingCount,
		ReinforceCount:          data.ReinforceCount,
		Sing:                    data.Sing,
		Dance:                   data.Dance,
		ActiveSkill:             data.ActiveSkill,
		BasicAttackBonus:        data.BasicAttackBonus,
		ReduceBasicAttackDamage: data.ReduceBasicAttackDamage,
		SkillBonus:              data.SkillBonus,
		SkillReduction:          data.SkillReduction,
		ExtraDamage:             data.ExtraDamage,
	}
}

func fromSide(side models.Side) SideData {
	return SideData{
		Username:                side.Username,
		InGamePlayerID:          side.InGamePlayerID,
		GroupTag:                side.GroupTag,
		Level:                   side.Level,
		FanCount:                side.FanCount,
		LossCount:               side.LossCount,
		InjuredCount:            side.InjuredCount,
		RemainingCount:          side.RemainingCount,
		ReinforceCount:          side.ReinforceCount,
		Sing:                    side.Sing,
		Dance:                   side.Dance,
		ActiveSkill:             side.ActiveSkill,
		BasicAttackBonus:        side.BasicAttackBonus,
		ReduceBasicAttackDamage: side.ReduceBasicAttackDamage,
		SkillBonus:              side.SkillBonus,
		SkillReduction:          side.SkillReduction,
		ExtraDamage:             side.ExtraDamage,
	}
}
