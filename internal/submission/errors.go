package submission

import (
	"fmt"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/quota"
)

// Kind classifies a failed upload.
type Kind string

const (
	KindSubjectNotFound  Kind = "subject_not_found"
	KindQuotaExceeded    Kind = "quota_exceeded"
	KindInvalidInput     Kind = "invalid_input"
	KindGatewayError     Kind = "gateway_error"
	KindPersistenceError Kind = "persistence_error"
	KindBadRequest       Kind = "bad_request"
)

// Error is a classified processing failure.
type Error struct {
	Kind   Kind
	Scope  models.Scope
	Window quota.Window
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind == KindQuotaExceeded {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Scope, e.Window)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const (
	msgUserNotFound     = "User not found"
	msgGroupNotFound    = "Group not found"
	msgNoImage          = "No image provided"
	msgInvalidImage     = "This doesn't appear to be an Apex Girl battle report. Please upload a screenshot from the Battle Overview screen."
	msgAnalysisFailed   = "Failed to analyze screenshot. Please try again."
	msgProcessingFailed = "An unexpected error occurred during processing"
)

func quotaMessage(scope models.Scope, window quota.Window) string {
	switch {
	case scope == models.ScopeGroup && window == quota.WindowDaily:
		return "Group daily upload quota exceeded. Please try again tomorrow."
	case scope == models.ScopeGroup:
		return "Group monthly upload quota exceeded. Please upgrade the group tier or wait until next month."
	case window == quota.WindowDaily:
		return "Daily upload quota exceeded. Please try again tomorrow."
	default:
		return "Monthly upload quota exceeded. Please upgrade your tier or wait until next month."
	}
}
