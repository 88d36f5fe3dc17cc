// Package analysis extracts structured battle data from report screenshots.
//
// A Gateway call has three outcomes: a Report, an Invalid verdict when the
// image is not a battle report, or an error. Backends never persist anything.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultInvalidReason is used when the model rejects an image without a reason.
const DefaultInvalidReason = "Not a battle report screenshot"

var (
	// ErrEmptyResponse indicates the backend returned no usable content.
	ErrEmptyResponse = errors.New("analysis: empty response")
	// ErrMalformedResponse indicates the model output was not valid JSON.
	ErrMalformedResponse = errors.New("analysis: malformed response")
)

// SideData holds one participant's extracted statistics.
type SideData struct {
	Username       string `json:"username"`
	InGamePlayerID string `json:"inGamePlayerId,omitempty"`
	GroupTag       string `json:"groupTag,omitempty"`
	Level          *int   `json:"level,omitempty"`

	FanCount       int  `json:"fanCount"`
	LossCount      int  `json:"lossCount"`
	InjuredCount   int  `json:"injuredCount"`
	RemainingCount *int `json:"remainingCount,omitempty"`
	ReinforceCount *int `json:"reinforceCount,omitempty"`

	Sing  int `json:"sing"`
	Dance int `json:"dance"`

	ActiveSkill             float64 `json:"activeSkill"`
	BasicAttackBonus        float64 `json:"basicAttackBonus"`
	ReduceBasicAttackDamage float64 `json:"reduceBasicAttackDamage"`
	SkillBonus              float64 `json:"skillBonus"`
	SkillReduction          float64 `json:"skillReduction"`
	ExtraDamage             float64 `json:"extraDamage"`
}

// Report is a successful extraction.
type Report struct {
	ResultID      string          `json:"resultId,omitempty"`
	BattleType    string          `json:"battleType"`
	BattleDate    time.Time       `json:"battleDate"`
	Player        SideData        `json:"player"`
	Enemy         SideData        `json:"enemy"`
	TokensUsed    int             `json:"tokensUsed"`
	EstimatedCost float64         `json:"estimatedCost"`
	Raw           json.RawMessage `json:"-"`
}

// Usage reports token consumption of one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Outcome is the non-error result of Analyze.
type Outcome struct {
	Invalid       bool
	InvalidReason string
	Report        *Report
	Usage         Usage
	Cost          float64
	Model         string
}

// Gateway analyzes one image.
type Gateway interface {
	Analyze(ctx context.Context, image []byte) (*Outcome, error)
}
