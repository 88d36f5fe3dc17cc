package analysis

import (
	"errors"
	"testing"
	"time"
)

func TestParseExtraction_StripsFenceAndParsesSides(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	content := "```json\n" + `{
  "battleType": "Arena",
  "battleDate": "2026-05-30",
  "player": {"username": "alice", "level": 42, "fanCount": 1200, "lossCount": 3, "injuredCount": 4, "sing": 10, "dance": 11, "activeSkill": 12.5},
  "enemy": {"username": "bob", "fanCount": 900, "remainingCount": 7}
}` + "\n```"

	outcome, err := ParseExtraction(content, now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if outcome.Invalid || outcome.Report == nil {
		t.Fatalf("expected report, got %+v", outcome)
	}
	r := outcome.Report
	if r.BattleType != "Arena" {
		t.Fatalf("unexpected battle type %q", r.BattleType)
	}
	if !r.BattleDate.Equal(time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected battle date %s", r.BattleDate)
	}
	if r.Player.Username != "alice" || r.Player.Level == nil || *r.Player.Level != 42 {
		t.Fatalf("unexpected player %+v", r.Player)
	}
	if r.Player.ActiveSkill != 12.5 {
		t.Fatalf("expected active skill 12.5, got %v", r.Player.ActiveSkill)
	}
	if r.Enemy.Level != nil {
		t.Fatalf("expected enemy level unset, got %v", *r.Enemy.Level)
	}
	if r.Enemy.RemainingCount == nil || *r.Enemy.RemainingCount != 7 {
		t.Fatalf("unexpected enemy remaining %v", r.Enemy.RemainingCount)
	}
}

func TestParseExtraction_Invalid(t *testing.T) {
	outcome, err := ParseExtraction(`{"invalid": true, "reason": "this is a cat"}`, time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !outcome.Invalid || outcome.InvalidReason != "this is a cat" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	outcome, err = ParseExtraction(`{"invalid": true}`, time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if outcome.InvalidReason != DefaultInvalidReason {
		t.Fatalf("expected default reason, got %q", outcome.InvalidReason)
	}
}

func TestParseExtraction_Errors(t *testing.T) {
	if _, err := ParseExtraction("```json\n```", time.Now()); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if _, err := ParseExtraction("I cannot read this image.", time.Now()); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if _, err := ParseExtraction(`[1,2]`, time.Now()); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse for array, got %v", err)
	}
}

func TestParseBattleDate_Fallback(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))
	cases := map[string]time.Time{
		"05/30/2026":           time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC),
		"30 May 2026":          time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC),
		"2026-05-30T10:11:12Z": time.Date(2026, 5, 30, 10, 11, 12, 0, time.UTC),
		"yesterday":            now.UTC(),
		"":                     now.UTC(),
	}
	for raw, want := range cases {
		if got := parseBattleDate(raw, now); !got.Equal(want) {
			t.Fatalf("parseBattleDate(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestExtractionVersion(t *testing.T) {
	cases := map[string]int{"1.0": 1, "2.3": 2, "v3": 3, "": 1, "beta": 1, "0.9": 1}
	for in, want := range cases {
		if got := ExtractionVersion(in); got != want {
			t.Fatalf("ExtractionVersion(%q) = %d, want %d", in, got, want)
		}
	}
}
