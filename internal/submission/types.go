package submission

import (
	"github.com/apexgirl/reportanalyzer/internal/analysis"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/quota"
)

// Request is one upload to process.
type Request struct {
	UserID           string
	GroupID          string
	Image            []byte
	ContentType      string
	PrimaryInGameID  string
	OpposingInGameID string
	ChannelID        string
	MessageID        string
}

// Response is the outcome of Process.
type Response struct {
	Success          bool                    `json:"success"`
	UploadID         string                  `json:"uploadId,omitempty"`
	Status           models.SubmissionStatus `json:"status,omitempty"`
	BattleData       *analysis.Report        `json:"battleData,omitempty"`
	IsDuplicate      bool                    `json:"isDuplicate"`
	OriginalUploadID string                  `json:"originalUploadId,omitempty"`
	ExistingResultID string                  `json:"existingResultId,omitempty"`
	ErrorKind        Kind                    `json:"errorKind,omitempty"`
	ErrorMessage     string                  `json:"errorMessage,omitempty"`
	QuotaScope       models.Scope            `json:"quotaScope,omitempty"`
	QuotaWindow      quota.Window            `json:"quotaWindow,omitempty"`
	TokensUsed       int                     `json:"tokensUsed"`
	EstimatedCost    float64                 `json:"estimatedCost"`
	RemainingQuota   *quota.Snapshot         `json:"remainingQuota,omitempty"`

	Err error `json:"-"`
}
