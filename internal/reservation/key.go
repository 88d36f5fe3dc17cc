package reservation

import (
	"fmt"
	"strings"

	"github.com/apexgirl/reportanalyzer/internal/models"
)

// KeyFor builds a limiter key for a quota subject.
func KeyFor(scope models.Scope, subjectID string) string {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return ""
	}
	switch scope {
	case models.ScopeIndividual:
		return fmt.Sprintf("u:%s", subjectID)
	case models.ScopeGroup:
		return fmt.Sprintf("g:%s", subjectID)
	default:
		return ""
	}
}
