// Package dedupe finds earlier successful analyses of identical images.
package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/apexgirl/reportanalyzer/internal/analysis"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/store"
)

// Store is the lookup the detector needs.
type Store interface {
	FindSuccessfulByFingerprint(ctx context.Context, hash string) (*models.Submission, error)
}

// Match is an earlier submission whose result can be reused.
type Match struct {
	SubmissionID string
	ResultID     string
	Report       *analysis.Report
}

// Detector looks up prior results by fingerprint.
type Detector struct {
	store Store
}

// NewDetector constructs a Detector.
func NewDetector(s Store) *Detector {
	return &Detector{store: s}
}

// Find returns the newest visible successful match, or nil when none exists.
func (d *Detector) Find(ctx context.Context, fingerprint string) (*Match, error) {
	if d == nil || d.store == nil || fingerprint == "" {
		return nil, nil
	}
	sub, err := d.store.FindSuccessfulByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("dedupe: lookup: %w", err)
	}
	report := analysis.FromSubmission(sub)
	if report == nil {
		return nil, nil
	}
	return &Match{SubmissionID: sub.ID, ResultID: report.ResultID, Report: report}, nil
}
