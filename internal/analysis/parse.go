package analysis

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var battleDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-01-2006",
}

// StripCodeFence removes a surrounding markdown code fence from model output.
func StripCodeFence(content string) string {
	out := strings.TrimSpace(content)
	if strings.HasPrefix(out, "```json") {
		out = out[len("```json"):]
	} else if strings.HasPrefix(out, "```") {
		out = out[len("```"):]
	}
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}

// ParseExtraction converts model output into an Outcome without usage data.
// now is used when the battle date is missing or unparseable.
func ParseExtraction(content string, now time.Time) (*Outcome, error) {
	cleaned := StripCodeFence(content)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}
	if !gjson.Valid(cleaned) {
		return nil, fmt.Errorf("%w: %.200s", ErrMalformedResponse, cleaned)
	}
	root := gjson.Parse(cleaned)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object", ErrMalformedResponse)
	}

	if invalid := root.Get("invalid"); invalid.Type == gjson.True {
		reason := strings.TrimSpace(root.Get("reason").String())
		if reason == "" {
			reason = DefaultInvalidReason
		}
		return &Outcome{Invalid: true, InvalidReason: reason}, nil
	}

	report := &Report{
		BattleType: strings.TrimSpace(root.Get("battleType").String()),
		BattleDate: parseBattleDate(root.Get("battleDate").String(), now),
		Player:     parseSide(root.Get("player")),
		Enemy:      parseSide(root.Get("enemy")),
		Raw:        []byte(cleaned),
	}
	return &Outcome{Report: report}, nil
}

func parseBattleDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC()
	}
	for _, layout := range battleDateLayouts {
		if parsed, errParse := time.ParseInLocation(layout, raw, time.UTC); errParse == nil {
			return parsed.UTC()
		}
	}
	log.WithField("battle_date", raw).Warn("analysis: unparseable battle date, using current time")
	return now.UTC()
}

func parseSide(node gjson.Result) SideData {
	if !node.IsObject() {
		return SideData{}
	}
	return SideData{
		Username:       strings.TrimSpace(node.Get("username").String()),
		InGamePlayerID: strings.TrimSpace(node.Get("inGamePlayerId").String()),
		GroupTag:       strings.TrimSpace(node.Get("groupTag").String()),
		Level:          optionalInt(node.Get("level")),

		FanCount:       int(node.Get("fanCount").Int()),
		LossCount:      int(node.Get("lossCount").Int()),
		InjuredCount:   int(node.Get("injuredCount").Int()),
		RemainingCount: optionalInt(node.Get("remainingCount")),
		ReinforceCount: optionalInt(node.Get("reinforceCount")),

		Sing:  int(node.Get("sing").Int()),
		Dance: int(node.Get("dance").Int()),

		ActiveSkill:             node.Get("activeSkill").Float(),
		BasicAttackBonus:        node.Get("basicAttackBonus").Float(),
		ReduceBasicAttackDamage: node.Get("reduceBasicAttackDamage").Float(),
		SkillBonus:              node.Get("skillBonus").Float(),
		SkillReduction:          node.Get("skillReduction").Float(),
		ExtraDamage:             node.Get("extraDamage").Float(),
	}
}

func optionalInt(node gjson.Result) *int {
	if node.Type != gjson.Number && node.Type != gjson.String {
		return nil
	}
	if node.Type == gjson.String && strings.TrimSpace(node.Str) == "" {
		return nil
	}
	v := int(node.Int())
	return &v
}
